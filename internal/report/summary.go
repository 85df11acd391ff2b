// Package report summarises how well each channel lines up with the
// keyframe grid and renders the result as JSON, a PNG plot and an HTML
// chart.
package report

import (
	"math"
	"slices"

	"github.com/banshee-data/scenesync/internal/sensor"
	"github.com/banshee-data/scenesync/internal/timeline"
)

// Offset is the distance from a keyframe to the sample selected for it.
// Positive values mean the sample came after the keyframe.
type Offset struct {
	Keyframe int     `json:"keyframe"`
	MS       float64 `json:"ms"`
}

// ChannelStats describes one sampled channel.
type ChannelStats struct {
	Channel string `json:"channel"`
	Samples int    `json:"samples"`
	Keys    int    `json:"keys"`
	// DistinctKeys counts raw samples claimed by at least one keyframe.
	// It is lower than Keys when a sample serves several keyframes.
	DistinctKeys    int      `json:"distinct_keys"`
	Sweeps          int      `json:"sweeps"`
	MeanAbsOffsetMS float64  `json:"mean_abs_offset_ms"`
	MaxAbsOffsetMS  float64  `json:"max_abs_offset_ms"`
	Offsets         []Offset `json:"offsets"`
}

// Summary covers every sampled channel of one export.
type Summary struct {
	Keyframes    int            `json:"keyframes"`
	FirstUS      int64          `json:"first_us"`
	LastUS       int64          `json:"last_us"`
	Channels     []ChannelStats `json:"channels"`
	WorstMS      float64        `json:"worst_abs_offset_ms"`
	WorstChannel string         `json:"worst_channel,omitempty"`
}

// Summarise computes per-channel alignment statistics. Channels without
// samples are omitted.
func Summarise(kfs []timeline.Keyframe, samples map[string][]sensor.RawSample, selections map[string]timeline.Selection) Summary {
	s := Summary{Keyframes: len(kfs)}
	if len(kfs) > 0 {
		s.FirstUS = kfs[0].TimestampUS
		s.LastUS = kfs[len(kfs)-1].TimestampUS
	}
	channels := make([]string, 0, len(samples))
	for ch, raw := range samples {
		if len(raw) > 0 {
			channels = append(channels, ch)
		}
	}
	slices.Sort(channels)

	for _, ch := range channels {
		raw := samples[ch]
		sel := selections[ch]
		if sel == nil {
			sel = timeline.SelectNearest(raw, kfs)
		}
		cs := ChannelStats{
			Channel:      ch,
			Samples:      len(raw),
			Keys:         len(sel),
			DistinctKeys: len(sel.Claims()),
			Sweeps:       len(sel.Sweeps(raw)),
		}
		var sum float64
		for _, idx := range sel.Indices() {
			ms := float64(sel[idx].TimestampUS-kfs[idx].TimestampUS) / 1000
			cs.Offsets = append(cs.Offsets, Offset{Keyframe: idx, MS: ms})
			sum += math.Abs(ms)
			cs.MaxAbsOffsetMS = max(cs.MaxAbsOffsetMS, math.Abs(ms))
		}
		if len(cs.Offsets) > 0 {
			cs.MeanAbsOffsetMS = sum / float64(len(cs.Offsets))
		}
		if cs.MaxAbsOffsetMS > s.WorstMS || s.WorstChannel == "" {
			s.WorstMS = cs.MaxAbsOffsetMS
			s.WorstChannel = ch
		}
		s.Channels = append(s.Channels, cs)
	}
	return s
}
