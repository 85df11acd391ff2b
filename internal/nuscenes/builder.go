package nuscenes

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/banshee-data/scenesync/internal/config"
	"github.com/banshee-data/scenesync/internal/sensor"
	"github.com/banshee-data/scenesync/internal/timeline"
	"github.com/banshee-data/scenesync/internal/timeutil"
)

// Fixed descriptive values of the produced log and map records.
const (
	LogFile = "eval.log"
)

// MapLayers are the layer names advertised by the placeholder map.
var MapLayers = []string{"road_segment", "lane", "stop_line"}

// IdentityRotation is the unit quaternion (w,x,y,z) of the fixed ego pose.
var IdentityRotation = [4]float64{1, 0, 0, 0}

// Input is everything the graph is derived from.
type Input struct {
	Keyframes []timeline.Keyframe

	// Calibrations lists every configured channel in output order. Each
	// channel gets sensor and calibrated_sensor records even without samples.
	Calibrations []sensor.Calibration

	Samples    map[string][]sensor.RawSample
	Selections map[string]timeline.Selection

	ImageWidth       int
	ImageHeight      int
	DurationSec      float64
	Location         string
	SceneName        string
	SceneDescription string
}

// Builder assembles a Graph with fresh tokens.
type Builder struct {
	Tokens TokenSource
	Clock  timeutil.Clock
}

// NewBuilder returns a Builder issuing UUID tokens and dating the log with the
// wall clock.
func NewBuilder() *Builder {
	return &Builder{Tokens: UUIDTokens{}, Clock: timeutil.RealClock{}}
}

type channelTokens struct {
	sensor, calibration string
}

// Build derives the full record graph. Every channel with samples must have
// a calibration; otherwise a *config.MissingCalibrationError is returned
// before any record is produced.
func (b *Builder) Build(in Input) (*Graph, error) {
	if len(in.Keyframes) == 0 {
		return nil, errors.New("nuscenes: no keyframes")
	}
	calByChannel := make(map[string]sensor.Calibration, len(in.Calibrations))
	for _, cal := range in.Calibrations {
		calByChannel[cal.Channel] = cal
	}
	for _, ch := range sortedKeys(in.Samples) {
		if _, ok := calByChannel[ch]; !ok && len(in.Samples[ch]) > 0 {
			return nil, &config.MissingCalibrationError{Channel: ch}
		}
	}

	g := &Graph{}
	logToken := b.Tokens.NewToken()
	sceneToken := b.Tokens.NewToken()
	egoToken := b.Tokens.NewToken()

	g.Samples = make([]Sample, len(in.Keyframes))
	for i, k := range in.Keyframes {
		g.Samples[i] = Sample{Token: b.Tokens.NewToken(), Timestamp: k.TimestampUS, SceneToken: sceneToken}
	}
	for i := range g.Samples {
		if i > 0 {
			g.Samples[i].Prev = g.Samples[i-1].Token
		}
		if i < len(g.Samples)-1 {
			g.Samples[i].Next = g.Samples[i+1].Token
		}
	}

	g.Logs = []Log{{
		Token:        logToken,
		Logfile:      LogFile,
		DateCaptured: b.Clock.Now().Format("2006-01-02"),
		Location:     in.Location,
		Duration:     in.DurationSec,
	}}
	g.Scenes = []Scene{{
		Token:            sceneToken,
		LogToken:         logToken,
		NbrSamples:       len(g.Samples),
		FirstSampleToken: g.Samples[0].Token,
		LastSampleToken:  g.Samples[len(g.Samples)-1].Token,
		Name:             in.SceneName,
		Description:      in.SceneDescription,
	}}
	g.EgoPoses = []EgoPose{{
		Token:     egoToken,
		Timestamp: in.Keyframes[0].TimestampUS,
		Rotation:  IdentityRotation,
	}}

	tokens := make(map[string]channelTokens, len(in.Calibrations))
	for _, cal := range in.Calibrations {
		ct := channelTokens{sensor: b.Tokens.NewToken(), calibration: b.Tokens.NewToken()}
		tokens[cal.Channel] = ct
		g.Sensors = append(g.Sensors, Sensor{
			Token:    ct.sensor,
			Channel:  cal.Channel,
			Name:     cal.Channel,
			Modality: cal.Modality,
		})
		g.CalibratedSensors = append(g.CalibratedSensors, CalibratedSensor{
			Token:           ct.calibration,
			SensorToken:     ct.sensor,
			Translation:     cal.Translation,
			Rotation:        cal.Rotation,
			CameraIntrinsic: cal.IntrinsicRows(),
		})
	}

	for _, cal := range in.Calibrations {
		records, err := b.channelRecords(cal, in, g.Samples, tokens[cal.Channel], egoToken)
		if err != nil {
			return nil, err
		}
		g.SampleData = append(g.SampleData, records...)
	}

	g.Maps = []Map{{
		Token:      b.Tokens.NewToken(),
		Filename:   MapImage,
		LogTokens:  []string{logToken},
		LayerNames: slices.Clone(MapLayers),
	}}
	return g, nil
}

// channelRecords builds one channel's key and sweep records and links them
// into a single chronological chain.
func (b *Builder) channelRecords(cal sensor.Calibration, in Input, samples []Sample, ct channelTokens, egoToken string) ([]SampleData, error) {
	ch := cal.Channel
	raw := in.Samples[ch]
	if len(raw) == 0 {
		return nil, nil
	}
	sel := in.Selections[ch]
	if sel == nil {
		sel = timeline.SelectNearest(raw, in.Keyframes)
	}

	width, height := 0, 0
	if cal.Modality == sensor.ModalityCamera {
		width, height = in.ImageWidth, in.ImageHeight
	}
	record := func(rs sensor.RawSample, sampleIdx, keyIdx int, filename string) SampleData {
		return SampleData{
			SampleToken:           samples[sampleIdx].Token,
			EgoPoseToken:          egoToken,
			CalibratedSensorToken: ct.calibration,
			SensorToken:           ct.sensor,
			Timestamp:             rs.TimestampUS,
			FileFormat:            FileFormat(ch, rs.PayloadPath),
			IsKeyFrame:            keyIdx >= 0,
			Width:                 width,
			Height:                height,
			Filename:              filename,
			Channel:               ch,
			Source:                rs,
			KeyframeIndex:         keyIdx,
		}
	}

	var out []SampleData
	owner := make(map[string]sensor.RawSample)
	claim := func(filename string, rs sensor.RawSample) error {
		if prev, ok := owner[filename]; ok && prev != rs {
			return fmt.Errorf("nuscenes: %s frames %d and %d both map to %s", ch, prev.FrameID, rs.FrameID, filename)
		}
		owner[filename] = rs
		return nil
	}

	for _, idx := range sel.Indices() {
		rs := sel[idx]
		name := KeyFilename(ch, rs.PayloadPath)
		if err := claim(name, rs); err != nil {
			return nil, err
		}
		out = append(out, record(rs, idx, idx, name))
	}
	for _, rs := range sel.Sweeps(raw) {
		name := SweepFilename(ch, rs.PayloadPath)
		if err := claim(name, rs); err != nil {
			return nil, err
		}
		out = append(out, record(rs, timeline.Nearest(in.Keyframes, rs.TimestampUS), -1, name))
	}

	// Chronological; key copies of one raw sample stay in claim order and
	// keys precede sweeps at equal timestamps.
	slices.SortStableFunc(out, func(a, b SampleData) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		if a.IsKeyFrame != b.IsKeyFrame {
			if a.IsKeyFrame {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.KeyframeIndex, b.KeyframeIndex)
	})
	for i := range out {
		out[i].Token = b.Tokens.NewToken()
	}
	for i := range out {
		if i > 0 {
			out[i].Prev = out[i-1].Token
		}
		if i < len(out)-1 {
			out[i].Next = out[i+1].Token
		}
	}
	return out, nil
}

// WalkChain follows one channel's prev/next links from its head and returns
// the visited records. It fails if the chain is broken, cyclic or does not
// cover every record of the channel.
func (g *Graph) WalkChain(channel string) ([]SampleData, error) {
	records := g.ChannelData(channel)
	if len(records) == 0 {
		return nil, nil
	}
	byToken := make(map[string]SampleData, len(records))
	var head []SampleData
	for _, sd := range records {
		byToken[sd.Token] = sd
		if sd.Prev == "" {
			head = append(head, sd)
		}
	}
	if len(head) != 1 {
		return nil, fmt.Errorf("nuscenes: %s chain has %d heads", channel, len(head))
	}

	visited := make([]SampleData, 0, len(records))
	seen := make(map[string]bool, len(records))
	for cur, ok := head[0], true; ok; cur, ok = byToken[cur.Next] {
		if seen[cur.Token] {
			return nil, fmt.Errorf("nuscenes: %s chain loops at %s", channel, cur.Token)
		}
		seen[cur.Token] = true
		visited = append(visited, cur)
		if cur.Next == "" {
			break
		}
	}
	if len(visited) != len(records) {
		return nil, fmt.Errorf("nuscenes: %s chain visits %d of %d records", channel, len(visited), len(records))
	}
	return visited, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
