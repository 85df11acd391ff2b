package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/scenesync/internal/monitoring"
	"github.com/banshee-data/scenesync/internal/sensor"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Version != "v1.0-test" {
		t.Errorf("Version = %q, want v1.0-test", cfg.Version)
	}
	if cfg.SampleIntervalUS != 500_000 {
		t.Errorf("SampleIntervalUS = %d, want 500000", cfg.SampleIntervalUS)
	}
	if cfg.DurationSec != 20 {
		t.Errorf("DurationSec = %v, want 20", cfg.DurationSec)
	}
	if cfg.ImageWidth != 1600 || cfg.ImageHeight != 900 {
		t.Errorf("image = %dx%d, want 1600x900", cfg.ImageWidth, cfg.ImageHeight)
	}

	chans := cfg.Channels()
	if len(chans) != 12 {
		t.Fatalf("len(Channels()) = %d, want 12", len(chans))
	}
	if chans[0] != "CAM_BACK" || chans[6] != "RADAR_BACK_LEFT" || chans[11] != "LIDAR_TOP" {
		t.Errorf("Channels() order = %v", chans)
	}
}

func TestCalibration(t *testing.T) {
	cfg := Default()

	cam, err := cfg.Calibration("CAM_FRONT")
	if err != nil {
		t.Fatalf("Calibration(CAM_FRONT) error: %v", err)
	}
	if cam.Modality != sensor.ModalityCamera {
		t.Errorf("Modality = %q, want camera", cam.Modality)
	}
	if !cam.HasIntrinsic() || cam.Intrinsic[0][0] != 1252.8131021185304 {
		t.Errorf("Intrinsic = %v", cam.Intrinsic)
	}

	// The returned intrinsic must not alias the config table.
	cam.Intrinsic[0][0] = 1
	if cfg.Sensors["CAM_FRONT"].Intrinsic[0][0] == 1 {
		t.Error("Calibration shares its intrinsic with the config")
	}

	radar, err := cfg.Calibration("RADAR_FRONT")
	if err != nil {
		t.Fatalf("Calibration(RADAR_FRONT) error: %v", err)
	}
	if radar.HasIntrinsic() {
		t.Error("radar should have no intrinsic")
	}
	if rows := radar.IntrinsicRows(); rows == nil || len(rows) != 0 {
		t.Errorf("IntrinsicRows() = %v, want empty non-nil", rows)
	}
}

func TestCalibrationMissing(t *testing.T) {
	_, err := Default().Calibration("CAM_ROOF")
	var mce *MissingCalibrationError
	if !errors.As(err, &mce) {
		t.Fatalf("expected MissingCalibrationError, got %v", err)
	}
	if mce.Channel != "CAM_ROOF" {
		t.Errorf("Channel = %q, want CAM_ROOF", mce.Channel)
	}
}

func TestCalibrationRenormalises(t *testing.T) {
	var logged []string
	orig := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })
	defer monitoring.SetLogger(orig)

	cfg := Default()
	cfg.Sensors = map[string]SensorConfig{"RADAR_FRONT": {RotationWXYZ: [4]float64{0, 0, 0, 2}}}
	cal, err := cfg.Calibration("RADAR_FRONT")
	if err != nil {
		t.Fatalf("Calibration error: %v", err)
	}
	if cal.Rotation != [4]float64{0, 0, 0, 1} {
		t.Errorf("Rotation = %v, want unit yaw-180", cal.Rotation)
	}
	if len(logged) != 1 {
		t.Errorf("expected one renormalisation log line, got %d", len(logged))
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := `version: v1.0-mini
duration_sec: 1
sample_interval_us: 250000
sensors:
  CAM_FRONT:
    translation: [1.7, 0.0, 1.5]
    rotation_wxyz: [0.5, -0.5, 0.5, -0.5]
    intrinsic:
      - [1000, 0, 800]
      - [0, 1000, 450]
      - [0, 0, 1]
  LIDAR_TOP:
    translation: [1, 0, 1.8]
    rotation_wxyz: [1, 0, 0, 0]
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != "v1.0-mini" || cfg.DurationSec != 1 || cfg.SampleIntervalUS != 250_000 {
		t.Errorf("run params not applied: %+v", cfg)
	}
	if cfg.ImageWidth != 1600 {
		t.Errorf("ImageWidth = %d, want default 1600", cfg.ImageWidth)
	}
	if got := cfg.Channels(); len(got) != 2 || got[0] != "CAM_FRONT" || got[1] != "LIDAR_TOP" {
		t.Errorf("Channels() = %v, want [CAM_FRONT LIDAR_TOP]", got)
	}
	if k := cfg.Sensors["CAM_FRONT"].Intrinsic; k == nil || k[1][2] != 450 {
		t.Errorf("intrinsic = %v", k)
	}
}

func TestLoadJSONKeepsDefaultSensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte(`{"image_width": 800, "image_height": 450}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ImageWidth != 800 || cfg.ImageHeight != 450 {
		t.Errorf("image = %dx%d", cfg.ImageWidth, cfg.ImageHeight)
	}
	if len(cfg.Sensors) != 12 {
		t.Errorf("len(Sensors) = %d, want 12 defaults", len(cfg.Sensors))
	}
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return p
	}

	cases := map[string]string{
		"bad extension":   write("run.toml", "version = 1"),
		"missing file":    filepath.Join(dir, "absent.yaml"),
		"too large":       write("big.yaml", "# "+strings.Repeat("x", maxFileSize)),
		"bad yaml":        write("bad.yaml", "version: [unterminated"),
		"zero interval":   write("interval.yaml", "sample_interval_us: 0"),
		"path version":    write("version.yaml", "version: ../escape"),
		"unknown prefix":  write("prefix.yaml", "sensors:\n  SONAR_FRONT:\n    rotation_wxyz: [1, 0, 0, 0]\n"),
		"zero rotation":   write("rot.yaml", "sensors:\n  RADAR_FRONT:\n    rotation_wxyz: [0, 0, 0, 0]\n"),
		"radar intrinsic": write("k.json", `{"sensors": {"RADAR_FRONT": {"rotation_wxyz": [1,0,0,0], "intrinsic": [[1,0,0],[0,1,0],[0,0,1]]}}}`),
		"wide fov":        write("fov.json", `{"camera_default_fov": 180}`),
		"huge duration":   write("huge.yaml", "duration_sec: 1e15"),
		"dense grid":      write("dense.yaml", "duration_sec: 1000000\nsample_interval_us: 1"),
		"channel path":    write("chan.yaml", "sensors:\n  CAM_../../x:\n    rotation_wxyz: [1, 0, 0, 0]\n"),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%s) succeeded, want error", filepath.Base(path))
			}
		})
	}
}
