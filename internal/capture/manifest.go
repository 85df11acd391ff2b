package capture

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/scenesync/internal/fsutil"
	"github.com/banshee-data/scenesync/internal/sensor"
)

// Manifest is the JSON hand-off file written by the capture collaborator.
// Payload paths are relative to the manifest's directory unless absolute.
type Manifest struct {
	Channels map[string][]sensor.RawSample `json:"channels"`
}

// LoadManifest reads a manifest into a snapshot rooted at its directory.
func LoadManifest(fsys fsutil.FileSystem, path string) (Snapshot, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("capture: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Snapshot{}, fmt.Errorf("capture: parse manifest %s: %w", path, err)
	}
	for ch, samples := range m.Channels {
		if sensor.ModalityOf(ch) == "" {
			return Snapshot{}, fmt.Errorf("capture: manifest channel %q has no known modality prefix", ch)
		}
		for i, s := range samples {
			if s.PayloadPath == "" {
				return Snapshot{}, fmt.Errorf("capture: %s sample %d has no path", ch, i)
			}
		}
	}
	return NewSnapshot(filepath.Dir(path), m.Channels), nil
}

// WriteManifest stores a snapshot as a manifest file.
func WriteManifest(fsys fsutil.FileSystem, path string, s Snapshot) error {
	data, err := json.MarshalIndent(Manifest{Channels: s.All()}, "", "  ")
	if err != nil {
		return fmt.Errorf("capture: encode manifest: %w", err)
	}
	return fsutil.WriteAtomic(fsys, path, data)
}
