package nuscenes

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scenesync/internal/config"
	"github.com/banshee-data/scenesync/internal/fsutil"
	"github.com/banshee-data/scenesync/internal/sensor"
	"github.com/banshee-data/scenesync/internal/timeline"
	"github.com/banshee-data/scenesync/internal/timeutil"
)

func testBuilder() *Builder {
	return &Builder{
		Tokens: &SequenceTokens{Prefix: "tok"},
		Clock:  timeutil.NewMockClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)),
	}
}

func raw(ch string, frame, ts int64, path string) sensor.RawSample {
	return sensor.RawSample{Channel: ch, FrameID: frame, TimestampUS: ts, PayloadPath: path}
}

// exampleInput is the camera + radar scenario: keyframes at 0, 0.5 s and 1 s;
// the radar sample at 0.9 s is nearest to both later keyframes.
func exampleInput(t *testing.T) Input {
	t.Helper()
	samples := map[string][]sensor.RawSample{
		"CAM_FRONT": {
			raw("CAM_FRONT", 1, 0, "sweeps/CAM_FRONT/CAM_FRONT_1.png"),
			raw("CAM_FRONT", 2, 500_000, "sweeps/CAM_FRONT/CAM_FRONT_2.png"),
			raw("CAM_FRONT", 3, 1_000_000, "sweeps/CAM_FRONT/CAM_FRONT_3.png"),
		},
		"RADAR_FRONT": {
			raw("RADAR_FRONT", 7, 0, "sweeps/RADAR_FRONT/RADAR_FRONT_7.bin"),
			raw("RADAR_FRONT", 8, 900_000, "sweeps/RADAR_FRONT/RADAR_FRONT_8.bin"),
		},
	}
	kfs, err := timeline.BuildKeyframes(samples, 1, 500_000)
	require.NoError(t, err)

	cfg := config.Default()
	cam, err := cfg.Calibration("CAM_FRONT")
	require.NoError(t, err)
	radar, err := cfg.Calibration("RADAR_FRONT")
	require.NoError(t, err)
	lidar, err := cfg.Calibration("LIDAR_TOP")
	require.NoError(t, err)

	return Input{
		Keyframes:        kfs,
		Calibrations:     []sensor.Calibration{cam, radar, lidar},
		Samples:          samples,
		Selections:       timeline.SelectAll(samples, kfs),
		ImageWidth:       1600,
		ImageHeight:      900,
		DurationSec:      1,
		Location:         "eval",
		SceneName:        "scene_1",
		SceneDescription: "Evaluation scene",
	}
}

func TestBuildExampleGraph(t *testing.T) {
	g, err := testBuilder().Build(exampleInput(t))
	require.NoError(t, err)

	require.Len(t, g.Samples, 3)
	assert.Equal(t, "", g.Samples[0].Prev)
	assert.Equal(t, g.Samples[1].Token, g.Samples[0].Next)
	assert.Equal(t, g.Samples[1].Token, g.Samples[2].Prev)
	assert.Equal(t, "", g.Samples[2].Next)

	require.Len(t, g.Scenes, 1)
	assert.Equal(t, 3, g.Scenes[0].NbrSamples)
	assert.Equal(t, g.Samples[0].Token, g.Scenes[0].FirstSampleToken)
	assert.Equal(t, g.Samples[2].Token, g.Scenes[0].LastSampleToken)
	assert.Equal(t, "2026-05-04", g.Logs[0].DateCaptured)
	assert.Equal(t, g.Logs[0].Token, g.Maps[0].LogTokens[0])
	assert.Equal(t, int64(0), g.EgoPoses[0].Timestamp)
	assert.Equal(t, IdentityRotation, g.EgoPoses[0].Rotation)

	// Every configured channel has sensor records, even LIDAR_TOP without samples.
	require.Len(t, g.Sensors, 3)
	require.Len(t, g.CalibratedSensors, 3)
	assert.Equal(t, sensor.ModalityLidar, g.Sensors[2].Modality)
	assert.Equal(t, [][]float64{}, g.CalibratedSensors[1].CameraIntrinsic)
	assert.Len(t, g.CalibratedSensors[0].CameraIntrinsic, 3)
	assert.Empty(t, g.ChannelData("LIDAR_TOP"))

	cam := g.ChannelData("CAM_FRONT")
	require.Len(t, cam, 3)
	for i, sd := range cam {
		assert.True(t, sd.IsKeyFrame)
		assert.Equal(t, g.Samples[i].Token, sd.SampleToken)
		assert.Equal(t, "png", sd.FileFormat)
		assert.Equal(t, 1600, sd.Width)
		assert.Equal(t, 900, sd.Height)
	}
	assert.Equal(t, "samples/CAM_FRONT/CAM_FRONT_2.png", cam[1].Filename)

	radar := g.ChannelData("RADAR_FRONT")
	require.Len(t, radar, 3, "the 0.9 s detection set is claimed twice")
	assert.Equal(t, int64(7), radar[0].Source.FrameID)
	assert.Equal(t, int64(8), radar[1].Source.FrameID)
	assert.Equal(t, int64(8), radar[2].Source.FrameID)
	assert.Equal(t, g.Samples[1].Token, radar[1].SampleToken)
	assert.Equal(t, g.Samples[2].Token, radar[2].SampleToken)
	assert.NotEqual(t, radar[1].Token, radar[2].Token)
	assert.Equal(t, "samples/RADAR_FRONT/RADAR_FRONT_8.pcd", radar[1].Filename)
	assert.Equal(t, radar[1].Filename, radar[2].Filename)
	for _, sd := range radar {
		assert.Equal(t, PointCloudFormat, sd.FileFormat)
		assert.Zero(t, sd.Width)
		assert.Zero(t, sd.Height)
	}

	assert.Equal(t, 6, g.KeyCount())
}

func TestBuildSweepsAndChains(t *testing.T) {
	samples := map[string][]sensor.RawSample{
		"CAM_FRONT": {
			raw("CAM_FRONT", 4, 400_000, "cap/CAM_FRONT_4.jpg"),
			raw("CAM_FRONT", 1, 0, "cap/CAM_FRONT_1.jpg"),
			raw("CAM_FRONT", 2, 130_000, "cap/CAM_FRONT_2.jpg"),
			raw("CAM_FRONT", 3, 270_000, "cap/CAM_FRONT_3.jpg"),
			raw("CAM_FRONT", 5, 530_000, "cap/CAM_FRONT_5.jpg"),
		},
		"LIDAR_TOP": {
			raw("LIDAR_TOP", 1, 10_000, "cap/LIDAR_TOP_1.pcd.bin"),
			raw("LIDAR_TOP", 2, 260_000, "cap/LIDAR_TOP_2.pcd.bin"),
			raw("LIDAR_TOP", 3, 510_000, "cap/LIDAR_TOP_3.pcd.bin"),
		},
	}
	kfs, err := timeline.BuildKeyframes(samples, 0.5, 500_000)
	require.NoError(t, err)
	cfg := config.Default()
	cals, err := cfg.Calibrations()
	require.NoError(t, err)

	g, err := testBuilder().Build(Input{
		Keyframes:    kfs,
		Calibrations: cals,
		Samples:      samples,
		ImageWidth:   1600,
		ImageHeight:  900,
	})
	require.NoError(t, err)
	require.Len(t, g.Sensors, 12)

	cam, err := g.WalkChain("CAM_FRONT")
	require.NoError(t, err)
	require.Len(t, cam, 5)
	var frames []int64
	for i, sd := range cam {
		frames = append(frames, sd.Source.FrameID)
		if i > 0 {
			assert.GreaterOrEqual(t, sd.Timestamp, cam[i-1].Timestamp)
		}
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, frames)

	byFrame := map[int64]SampleData{}
	for _, sd := range cam {
		byFrame[sd.Source.FrameID] = sd
	}
	assert.True(t, byFrame[1].IsKeyFrame)
	assert.True(t, byFrame[5].IsKeyFrame)
	assert.False(t, byFrame[2].IsKeyFrame)
	assert.Equal(t, "sweeps/CAM_FRONT/CAM_FRONT_2.jpg", byFrame[2].Filename)
	assert.Equal(t, "jpg", byFrame[2].FileFormat)
	assert.Equal(t, -1, byFrame[2].KeyframeIndex)
	// 270 ms is nearer the 500 ms keyframe; 130 ms is nearer 0.
	assert.Equal(t, g.Samples[0].Token, byFrame[2].SampleToken)
	assert.Equal(t, g.Samples[1].Token, byFrame[3].SampleToken)

	lidar, err := g.WalkChain("LIDAR_TOP")
	require.NoError(t, err)
	require.Len(t, lidar, 3)
	assert.Equal(t, "samples/LIDAR_TOP/LIDAR_TOP_1.pcd", lidar[0].Filename)
	assert.Equal(t, "sweeps/LIDAR_TOP/LIDAR_TOP_2.pcd", lidar[1].Filename)
	assert.Equal(t, "samples/LIDAR_TOP/LIDAR_TOP_3.pcd", lidar[2].Filename)

	// Chains never cross channels.
	for _, sd := range cam {
		for _, l := range lidar {
			assert.NotEqual(t, sd.Token, l.Prev)
			assert.NotEqual(t, sd.Token, l.Next)
		}
	}
}

func TestBuildIsStructurallyIdempotent(t *testing.T) {
	a, err := testBuilder().Build(exampleInput(t))
	require.NoError(t, err)
	b, err := (&Builder{Tokens: &SequenceTokens{Prefix: "other"}, Clock: timeutil.NewMockClock(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC))}).Build(exampleInput(t))
	require.NoError(t, err)

	ignoreTokens := cmpopts.IgnoreFields(SampleData{}, "Token", "SampleToken", "EgoPoseToken", "CalibratedSensorToken", "SensorToken", "Prev", "Next")
	if diff := cmp.Diff(a.SampleData, b.SampleData, ignoreTokens); diff != "" {
		t.Errorf("rebuild differs beyond tokens (-a +b):\n%s", diff)
	}
}

func TestBuildMissingCalibration(t *testing.T) {
	in := exampleInput(t)
	in.Calibrations = in.Calibrations[:1]
	_, err := testBuilder().Build(in)
	var mce *config.MissingCalibrationError
	require.True(t, errors.As(err, &mce), "got %v", err)
	assert.Equal(t, "RADAR_FRONT", mce.Channel)
}

func TestBuildRejectsFilenameCollision(t *testing.T) {
	samples := map[string][]sensor.RawSample{
		"RADAR_FRONT": {
			raw("RADAR_FRONT", 1, 0, "a/RADAR_FRONT_1.bin"),
			raw("RADAR_FRONT", 2, 500_000, "b/RADAR_FRONT_1.bin"),
		},
	}
	kfs, err := timeline.BuildKeyframes(samples, 0.5, 500_000)
	require.NoError(t, err)
	cal, err := config.Default().Calibration("RADAR_FRONT")
	require.NoError(t, err)

	_, err = testBuilder().Build(Input{Keyframes: kfs, Calibrations: []sensor.Calibration{cal}, Samples: samples})
	assert.ErrorContains(t, err, "both map to")
}

func TestBuildNoKeyframes(t *testing.T) {
	_, err := testBuilder().Build(Input{})
	assert.Error(t, err)
}

func TestWalkChainDetectsBreaks(t *testing.T) {
	g := &Graph{SampleData: []SampleData{
		{Token: "a", Next: "b", Channel: "C"},
		{Token: "b", Prev: "a", Next: "missing", Channel: "C"},
		{Token: "c", Prev: "b", Channel: "C"},
	}}
	_, err := g.WalkChain("C")
	assert.Error(t, err)

	g.SampleData[1].Next = "c"
	chain, err := g.WalkChain("C")
	require.NoError(t, err)
	assert.Len(t, chain, 3)
}

func TestFilenamePolicy(t *testing.T) {
	cases := []struct {
		channel, payload, key, sweep, format string
	}{
		{"CAM_FRONT", "/cap/sweeps/CAM_FRONT/CAM_FRONT_12.png", "samples/CAM_FRONT/CAM_FRONT_12.png", "sweeps/CAM_FRONT/CAM_FRONT_12.png", "png"},
		{"CAM_BACK", "x/CAM_BACK_3.JPG", "samples/CAM_BACK/CAM_BACK_3.JPG", "sweeps/CAM_BACK/CAM_BACK_3.JPG", "jpg"},
		{"RADAR_FRONT", "sweeps/RADAR_FRONT/RADAR_FRONT_5.bin", "samples/RADAR_FRONT/RADAR_FRONT_5.pcd", "sweeps/RADAR_FRONT/RADAR_FRONT_5.pcd", "pcd"},
		{"LIDAR_TOP", "sweeps/LIDAR_TOP/LIDAR_TOP_9.pcd.bin", "samples/LIDAR_TOP/LIDAR_TOP_9.pcd", "sweeps/LIDAR_TOP/LIDAR_TOP_9.pcd", "pcd"},
		{"LIDAR_TOP", "raw/LIDAR_TOP_9", "samples/LIDAR_TOP/LIDAR_TOP_9.pcd", "sweeps/LIDAR_TOP/LIDAR_TOP_9.pcd", "pcd"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.key, KeyFilename(tc.channel, tc.payload))
		assert.Equal(t, tc.sweep, SweepFilename(tc.channel, tc.payload))
		assert.Equal(t, tc.format, FileFormat(tc.channel, tc.payload))
	}
}

func TestWriterTables(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: fsys, Root: "/out", Version: "v1.0-test"}
	require.NoError(t, w.EnsureLayout([]string{"CAM_FRONT", "RADAR_FRONT"}))
	assert.True(t, fsys.Exists("/out/samples/CAM_FRONT"))
	assert.True(t, fsys.Exists("/out/sweeps/RADAR_FRONT"))

	img, err := fsys.ReadFile("/out/maps/eval_map.png")
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.Bounds().Dx())
	assert.Equal(t, 1, decoded.Bounds().Dy())
	r, gr, b, _ := decoded.At(0, 0).RGBA()
	assert.Zero(t, r+gr+b)

	g, err := testBuilder().Build(exampleInput(t))
	require.NoError(t, err)
	require.NoError(t, w.WriteTables(g))

	files := fsys.Files("/out/v1.0-test")
	assert.Len(t, files, 13)

	for _, name := range EmptyTables {
		data, err := fsys.ReadFile(w.TablePath(name))
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	}

	data, err := fsys.ReadFile(w.TablePath("sample_data"))
	require.NoError(t, err)
	var sds []map[string]any
	require.NoError(t, json.Unmarshal(data, &sds))
	require.Len(t, sds, 6)
	assert.NotContains(t, sds[0], "Channel")
	for _, key := range []string{"token", "sample_token", "ego_pose_token", "calibrated_sensor_token", "filename", "fileformat", "is_key_frame", "timestamp", "width", "height", "prev", "next"} {
		assert.Contains(t, sds[0], key)
	}

	data, err = fsys.ReadFile(w.TablePath("calibrated_sensor"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"camera_intrinsic": []`)
	assert.Contains(t, string(data), "\n  {\n    \"token\"")
}

func TestWriterEmptyGraphWritesEmptyArrays(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: fsys, Root: "/out", Version: "v"}
	require.NoError(t, w.WriteTables(&Graph{}))
	data, err := fsys.ReadFile(w.TablePath("sample_data"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestWriterCopyFile(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsutil.WriteAtomic(fsys, "/cap/a.png", []byte("png-bytes")))
	w := &Writer{FS: fsys, Root: "/out", Version: "v"}
	require.NoError(t, w.CopyFile("/cap/a.png", "samples/CAM_FRONT/a.png"))
	got, err := fsys.ReadFile("/out/samples/CAM_FRONT/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)

	assert.Error(t, w.CopyFile("/cap/missing.png", "samples/CAM_FRONT/b.png"))
}

func TestWriterRejectsEscapingFilenames(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: fsys, Root: "/out", Version: "v"}
	assert.Error(t, w.WriteFile("../etc/x.pcd", []byte("x")))
	assert.Error(t, w.WriteFile("/abs.pcd", []byte("x")))
	assert.Error(t, w.CopyFile("/cap/a.png", "samples/../../a.png"))
	assert.False(t, fsys.Exists("/etc/x.pcd"))
	assert.False(t, fsys.Exists("/out/abs.pcd"))
}

func TestEnsureLayoutRejectsEscapingNames(t *testing.T) {
	for _, tc := range []struct {
		version  string
		channels []string
	}{
		{"v1.0-test", []string{"CAM_FRONT", "CAM_../../x"}},
		{"v1.0-test", []string{`RADAR_a\b`}},
		{"..", []string{"CAM_FRONT"}},
	} {
		fsys := fsutil.NewMemoryFileSystem()
		w := &Writer{FS: fsys, Root: "/data/out", Version: tc.version}
		assert.Error(t, w.EnsureLayout(tc.channels), "%v %v", tc.version, tc.channels)
		assert.False(t, fsys.Exists("/data/out"))
		assert.False(t, fsys.Exists("/data/x"))
	}
}
