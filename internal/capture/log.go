// Package capture hands the output of the capture collaborator to the export
// as an immutable Snapshot. Samples arrive through a concurrent append-only
// Log, a JSON manifest, or a SQLite capture index.
package capture

import (
	"path/filepath"
	"slices"
	"sync"

	"github.com/banshee-data/scenesync/internal/sensor"
)

// Log is an append-only per-channel record of raw samples. Record is safe for
// concurrent callers, so one handler can serve every sensor callback.
type Log struct {
	mu       sync.Mutex
	root     string
	channels map[string][]sensor.RawSample
}

// NewLog returns an empty log. Relative payload paths are resolved against
// root by the snapshot.
func NewLog(root string) *Log {
	return &Log{root: root, channels: make(map[string][]sensor.RawSample)}
}

// Record appends one sample to channel.
func (l *Log) Record(channel string, frameID, timestampUS int64, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.channels[channel] = append(l.channels[channel], sensor.RawSample{
		Channel:     channel,
		FrameID:     frameID,
		TimestampUS: timestampUS,
		PayloadPath: path,
	})
}

// Len returns the number of recorded samples across all channels.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.channels {
		n += len(s)
	}
	return n
}

// Snapshot copies the current contents. Later Record calls do not affect it.
func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	chans := make(map[string][]sensor.RawSample, len(l.channels))
	for ch, s := range l.channels {
		chans[ch] = slices.Clone(s)
	}
	return Snapshot{Root: l.root, channels: chans}
}

// Snapshot is a quiescent view of every channel's samples.
type Snapshot struct {
	// Root is the directory relative payload paths are resolved against.
	Root     string
	channels map[string][]sensor.RawSample
}

// NewSnapshot builds a snapshot from per-channel sample lists. The lists are
// copied and each sample's Channel is set to its key.
func NewSnapshot(root string, channels map[string][]sensor.RawSample) Snapshot {
	chans := make(map[string][]sensor.RawSample, len(channels))
	for ch, samples := range channels {
		c := make([]sensor.RawSample, len(samples))
		for i, s := range samples {
			s.Channel = ch
			c[i] = s
		}
		chans[ch] = c
	}
	return Snapshot{Root: root, channels: chans}
}

// Channels returns the channel names in sorted order.
func (s Snapshot) Channels() []string {
	out := make([]string, 0, len(s.channels))
	for ch := range s.channels {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// Samples returns a copy of one channel's samples in capture order.
func (s Snapshot) Samples(channel string) []sensor.RawSample {
	return slices.Clone(s.channels[channel])
}

// All returns a copy of every channel's samples keyed by channel.
func (s Snapshot) All() map[string][]sensor.RawSample {
	out := make(map[string][]sensor.RawSample, len(s.channels))
	for ch, samples := range s.channels {
		out[ch] = slices.Clone(samples)
	}
	return out
}

// Len returns the total sample count.
func (s Snapshot) Len() int {
	n := 0
	for _, samples := range s.channels {
		n += len(samples)
	}
	return n
}

// Resolve returns the filesystem location of a payload path.
func (s Snapshot) Resolve(path string) string {
	if filepath.IsAbs(path) || s.Root == "" {
		return path
	}
	return filepath.Join(s.Root, path)
}
