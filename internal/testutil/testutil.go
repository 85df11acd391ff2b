// Package testutil provides shared test helpers and synthetic capture
// fixtures.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/banshee-data/scenesync/internal/capture"
	"github.com/banshee-data/scenesync/internal/fsutil"
	"github.com/banshee-data/scenesync/internal/pcd"
	"github.com/banshee-data/scenesync/internal/sensor"
)

// CaptureRoot is where Capture stores its payloads.
const CaptureRoot = "/capture"

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Capture is an in-memory recording: payload files on a MemoryFileSystem
// plus the capture log that references them.
type Capture struct {
	FS  *fsutil.MemoryFileSystem
	Log *capture.Log
}

// NewCapture returns an empty capture rooted at CaptureRoot.
func NewCapture() *Capture {
	return &Capture{FS: fsutil.NewMemoryFileSystem(), Log: capture.NewLog(CaptureRoot)}
}

// Add writes a payload for one frame and records it. The payload is stored
// at <channel>/<frame>.<ext> relative to CaptureRoot; the relative path is
// returned.
func (c *Capture) Add(t testing.TB, channel string, frameID, timestampUS int64, payload []byte) string {
	t.Helper()
	ext := "bin"
	if sensor.ModalityOf(channel) == sensor.ModalityCamera {
		ext = "png"
	}
	rel := fmt.Sprintf("%s/%06d.%s", channel, frameID, ext)
	err := fsutil.WriteAtomic(c.FS, filepath.Join(CaptureRoot, filepath.FromSlash(rel)), payload)
	AssertNoError(t, err)
	c.Log.Record(channel, frameID, timestampUS, rel)
	return rel
}

// AddImage records a camera frame whose bytes identify the frame.
func (c *Capture) AddImage(t testing.TB, channel string, frameID, timestampUS int64) string {
	t.Helper()
	return c.Add(t, channel, frameID, timestampUS, ImageBytes(channel, frameID))
}

// AddPoints records a radar or lidar frame of raw float32x4 records.
func (c *Capture) AddPoints(t testing.TB, channel string, frameID, timestampUS int64, recs [][4]float32) string {
	t.Helper()
	return c.Add(t, channel, frameID, timestampUS, pcd.MarshalRaw4(recs))
}

// Snapshot returns the quiescent view of everything recorded so far.
func (c *Capture) Snapshot() capture.Snapshot {
	return c.Log.Snapshot()
}

// ImageBytes is the synthetic payload AddImage writes for a frame.
func ImageBytes(channel string, frameID int64) []byte {
	return []byte(fmt.Sprintf("image %s %d", channel, frameID))
}
