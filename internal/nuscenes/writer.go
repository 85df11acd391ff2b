package nuscenes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/banshee-data/scenesync/internal/fsutil"
)

// EmptyTables are written as [] since no annotations are produced.
var EmptyTables = []string{"category", "attribute", "visibility", "sample_annotation", "instance"}

// Writer lays out the dataset tree under Root and the JSON tables under
// Root/Version. Every file is written whole through fsutil.WriteAtomic.
type Writer struct {
	FS      fsutil.FileSystem
	Root    string
	Version string
}

// NewWriter returns a Writer on the OS filesystem.
func NewWriter(root, version string) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, Root: root, Version: version}
}

// Path returns the absolute location of a dataset-relative filename.
func (w *Writer) Path(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// EnsureLayout creates samples/<ch>, sweeps/<ch>, maps and the version
// directory, and writes the placeholder map image.
func (w *Writer) EnsureLayout(channels []string) error {
	for _, name := range append([]string{w.Version}, channels...) {
		if strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
			return fmt.Errorf("nuscenes: %q is not a plain directory name", name)
		}
	}
	dirs := []string{MapsDir, w.Version}
	for _, ch := range channels {
		dirs = append(dirs, filepath.Join(SamplesDir, ch), filepath.Join(SweepsDir, ch))
	}
	for _, d := range dirs {
		if err := w.FS.MkdirAll(filepath.Join(w.Root, d), 0o755); err != nil {
			return fmt.Errorf("nuscenes: create %s: %w", d, err)
		}
	}
	img, err := placeholderMap()
	if err != nil {
		return err
	}
	return w.WriteFile(MapImage, img)
}

// WriteFile stores a payload at a dataset-relative filename.
func (w *Writer) WriteFile(rel string, data []byte) error {
	if err := checkLocal(rel); err != nil {
		return err
	}
	if err := fsutil.WriteAtomic(w.FS, w.Path(rel), data); err != nil {
		return fmt.Errorf("nuscenes: write %s: %w", rel, err)
	}
	return nil
}

// CopyFile copies src byte for byte to a dataset-relative filename.
func (w *Writer) CopyFile(src, rel string) error {
	if err := checkLocal(rel); err != nil {
		return err
	}
	if err := fsutil.CopyFile(w.FS, src, w.Path(rel)); err != nil {
		return fmt.Errorf("nuscenes: copy %s: %w", rel, err)
	}
	return nil
}

// WriteTables writes every JSON table of g, including the empty annotation
// tables.
func (w *Writer) WriteTables(g *Graph) error {
	tables := []struct {
		name string
		v    any
	}{
		{"log", nonNil(g.Logs)},
		{"scene", nonNil(g.Scenes)},
		{"sample", nonNil(g.Samples)},
		{"sample_data", nonNil(g.SampleData)},
		{"sensor", nonNil(g.Sensors)},
		{"calibrated_sensor", nonNil(g.CalibratedSensors)},
		{"ego_pose", nonNil(g.EgoPoses)},
		{"map", nonNil(g.Maps)},
	}
	for _, t := range tables {
		if err := w.writeJSON(t.name, t.v); err != nil {
			return err
		}
	}
	for _, name := range EmptyTables {
		if err := w.writeJSON(name, []struct{}{}); err != nil {
			return err
		}
	}
	return nil
}

// TablePath returns the location of a JSON table.
func (w *Writer) TablePath(name string) string {
	return filepath.Join(w.Root, w.Version, name+".json")
}

func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("nuscenes: encode %s: %w", name, err)
	}
	if err := fsutil.WriteAtomic(w.FS, w.TablePath(name), data); err != nil {
		return fmt.Errorf("nuscenes: write %s.json: %w", name, err)
	}
	return nil
}

// checkLocal rejects filenames that would land outside the dataset root.
func checkLocal(rel string) error {
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return fmt.Errorf("nuscenes: %q escapes the dataset root", rel)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// placeholderMap encodes a 1x1 black PNG.
func placeholderMap() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("nuscenes: encode map image: %w", err)
	}
	return buf.Bytes(), nil
}
