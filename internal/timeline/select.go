package timeline

import (
	"slices"
	"sort"

	"github.com/banshee-data/scenesync/internal/sensor"
)

// Selection maps keyframe index to the raw sample chosen for it on one
// channel. The same sample may appear under several indices.
type Selection map[int]sensor.RawSample

// SortByTime returns a copy of samples in non-decreasing timestamp order.
// Samples with equal timestamps keep their capture order.
func SortByTime(samples []sensor.RawSample) []sensor.RawSample {
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b sensor.RawSample) int {
		switch {
		case a.TimestampUS < b.TimestampUS:
			return -1
		case a.TimestampUS > b.TimestampUS:
			return 1
		}
		return 0
	})
	return sorted
}

// SelectNearest picks, for every keyframe, the sample with the smallest
// absolute time distance. Ties go to the earliest sample in sorted order. An
// empty channel yields an empty selection.
func SelectNearest(samples []sensor.RawSample, keyframes []Keyframe) Selection {
	sel := make(Selection, len(keyframes))
	if len(samples) == 0 {
		return sel
	}
	sorted := SortByTime(samples)
	n := len(sorted)
	firstAtOrAfter := func(ts int64) int {
		return sort.Search(n, func(i int) bool { return sorted[i].TimestampUS >= ts })
	}

	for _, k := range keyframes {
		right := firstAtOrAfter(k.TimestampUS)
		var pick int
		switch {
		case right == n:
			pick = firstAtOrAfter(sorted[n-1].TimestampUS)
		case right == 0:
			pick = 0
		default:
			left := firstAtOrAfter(sorted[right-1].TimestampUS)
			if k.TimestampUS-sorted[left].TimestampUS <= sorted[right].TimestampUS-k.TimestampUS {
				pick = left
			} else {
				pick = right
			}
		}
		sel[k.Index] = sorted[pick]
	}
	return sel
}

// Indices returns the selected keyframe indices in ascending order.
func (s Selection) Indices() []int {
	idx := make([]int, 0, len(s))
	for i := range s {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	return idx
}

// Claims reports how many keyframes selected each sample.
func (s Selection) Claims() map[sensor.RawSample]int {
	claims := make(map[sensor.RawSample]int, len(s))
	for _, rs := range s {
		claims[rs]++
	}
	return claims
}

// Sweeps returns the samples no keyframe selected, in timestamp order.
func (s Selection) Sweeps(samples []sensor.RawSample) []sensor.RawSample {
	claims := s.Claims()
	var out []sensor.RawSample
	for _, rs := range SortByTime(samples) {
		if claims[rs] == 0 {
			out = append(out, rs)
		}
	}
	return out
}

// SelectAll runs SelectNearest for every channel.
func SelectAll(channels map[string][]sensor.RawSample, keyframes []Keyframe) map[string]Selection {
	out := make(map[string]Selection, len(channels))
	for ch, samples := range channels {
		out[ch] = SelectNearest(samples, keyframes)
	}
	return out
}
