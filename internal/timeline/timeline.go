// Package timeline aligns independently clocked sensor streams onto a common
// fixed-rate keyframe grid.
package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/scenesync/internal/sensor"
)

// Keyframe is one synchronisation instant on the grid.
type Keyframe struct {
	Index       int
	TimestampUS int64
}

// NoDataError reports that no channel produced a single sample, so there is
// no time origin to build a grid from.
type NoDataError struct {
	Channels int
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("timeline: no samples recorded across %d channel(s)", e.Channels)
}

// BuildKeyframes emits t0, t0+I, t0+2I, ... while <= t0 + duration, where t0
// is the earliest timestamp over every channel. The result has
// floor(duration/I)+1 entries.
func BuildKeyframes(channels map[string][]sensor.RawSample, durationSec float64, intervalUS int64) ([]Keyframe, error) {
	if intervalUS <= 0 {
		return nil, fmt.Errorf("timeline: interval must be positive, got %d us", intervalUS)
	}
	if durationSec < 0 || math.IsNaN(durationSec) || math.IsInf(durationSec, 0) {
		return nil, fmt.Errorf("timeline: invalid duration %v s", durationSec)
	}

	found := false
	var t0 int64
	for _, samples := range channels {
		for _, s := range samples {
			if !found || s.TimestampUS < t0 {
				t0 = s.TimestampUS
				found = true
			}
		}
	}
	if !found {
		return nil, &NoDataError{Channels: len(channels)}
	}

	span := durationSec * 1e6
	if span >= float64(math.MaxInt64)-float64(t0) {
		return nil, fmt.Errorf("timeline: duration %v s past t0 %d us overflows the timestamp range", durationSec, t0)
	}
	n, err := KeyframeCount(durationSec, intervalUS)
	if err != nil {
		return nil, err
	}
	keyframes := make([]Keyframe, n)
	for i := range keyframes {
		keyframes[i] = Keyframe{Index: i, TimestampUS: t0 + int64(i)*intervalUS}
	}
	return keyframes, nil
}

// MaxKeyframes bounds the grid of a single export.
const MaxKeyframes = 1 << 20

// KeyframeCount returns floor(duration/interval)+1, or an error when the
// grid would exceed MaxKeyframes.
func KeyframeCount(durationSec float64, intervalUS int64) (int, error) {
	if intervalUS <= 0 {
		return 0, fmt.Errorf("timeline: interval must be positive, got %d us", intervalUS)
	}
	if durationSec < 0 || math.IsNaN(durationSec) || math.IsInf(durationSec, 0) {
		return 0, fmt.Errorf("timeline: invalid duration %v s", durationSec)
	}
	if durationSec*1e6 >= math.MaxInt64 {
		return 0, fmt.Errorf("timeline: duration %v s overflows the timestamp range", durationSec)
	}
	steps := math.Floor(durationSec * 1e6 / float64(intervalUS))
	if steps >= MaxKeyframes {
		return 0, fmt.Errorf("timeline: %v s at %d us gives more than %d keyframes", durationSec, intervalUS, MaxKeyframes)
	}
	// Integer division keeps the count exact where the float quotient rounds.
	return int(int64(durationSec*1e6)/intervalUS) + 1, nil
}

// Timestamps returns the keyframe instants in order.
func Timestamps(keyframes []Keyframe) []int64 {
	out := make([]int64, len(keyframes))
	for i, k := range keyframes {
		out[i] = k.TimestampUS
	}
	return out
}

// Nearest returns the index of the keyframe closest to ts; ties go to the
// earlier keyframe. keyframes must be non-empty and ascending.
func Nearest(keyframes []Keyframe, ts int64) int {
	i := sort.Search(len(keyframes), func(i int) bool { return keyframes[i].TimestampUS >= ts })
	if i == len(keyframes) {
		return len(keyframes) - 1
	}
	if i > 0 && ts-keyframes[i-1].TimestampUS <= keyframes[i].TimestampUS-ts {
		return i - 1
	}
	return i
}
