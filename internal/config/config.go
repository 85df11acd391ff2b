// Package config holds the single immutable configuration object of an
// export run: run parameters plus the static calibration table.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/scenesync/internal/monitoring"
	"github.com/banshee-data/scenesync/internal/sensor"
	"github.com/banshee-data/scenesync/internal/timeline"
	"github.com/banshee-data/scenesync/internal/transform"
)

// maxFileSize caps config files at 1MB.
const maxFileSize = 1 * 1024 * 1024

// SensorConfig is one calibration table entry, in dataset axes.
type SensorConfig struct {
	Translation  [3]float64     `json:"translation" yaml:"translation"`
	RotationWXYZ [4]float64     `json:"rotation_wxyz" yaml:"rotation_wxyz"`
	Intrinsic    *[3][3]float64 `json:"intrinsic,omitempty" yaml:"intrinsic,omitempty"`
}

// Config is the root configuration of an export run.
type Config struct {
	// Version names the output subdirectory holding the JSON tables.
	Version string `json:"version" yaml:"version"`

	DurationSec      float64 `json:"duration_sec" yaml:"duration_sec"`
	SampleIntervalUS int64   `json:"sample_interval_us" yaml:"sample_interval_us"`

	ImageWidth       int     `json:"image_width" yaml:"image_width"`
	ImageHeight      int     `json:"image_height" yaml:"image_height"`
	CameraDefaultFOV float64 `json:"camera_default_fov" yaml:"camera_default_fov"`

	Location         string `json:"location" yaml:"location"`
	SceneName        string `json:"scene_name" yaml:"scene_name"`
	SceneDescription string `json:"scene_description" yaml:"scene_description"`

	// Sensors replaces the default calibration table when present in a file.
	Sensors map[string]SensorConfig `json:"sensors" yaml:"sensors"`
}

// MissingCalibrationError reports a channel with no calibration entry.
type MissingCalibrationError struct {
	Channel string
}

func (e *MissingCalibrationError) Error() string {
	return fmt.Sprintf("config: no calibration for channel %s", e.Channel)
}

// Load reads a YAML (.yaml/.yml) or JSON (.json) config file. Fields the file
// omits keep their Default values.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, ext == ".json")
}

// Parse decodes config bytes over Default and validates the result.
func Parse(data []byte, isJSON bool) (*Config, error) {
	cfg := Default()
	defaults := cfg.Sensors
	cfg.Sensors = nil

	if isJSON {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if cfg.Sensors == nil {
		cfg.Sensors = defaults
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks run parameters and every calibration entry.
func (c *Config) Validate() error {
	if c.Version == "" || strings.ContainsAny(c.Version, `/\`) || c.Version == "." || c.Version == ".." {
		return fmt.Errorf("version must be a plain directory name, got %q", c.Version)
	}
	if c.DurationSec < 0 || math.IsNaN(c.DurationSec) || math.IsInf(c.DurationSec, 0) {
		return fmt.Errorf("duration_sec must be a non-negative number, got %v", c.DurationSec)
	}
	if c.SampleIntervalUS <= 0 {
		return fmt.Errorf("sample_interval_us must be positive, got %d", c.SampleIntervalUS)
	}
	if _, err := timeline.KeyframeCount(c.DurationSec, c.SampleIntervalUS); err != nil {
		return fmt.Errorf("duration_sec/sample_interval_us: %w", err)
	}
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", c.ImageWidth, c.ImageHeight)
	}
	if c.CameraDefaultFOV <= 0 || c.CameraDefaultFOV >= 180 {
		return fmt.Errorf("camera_default_fov must be in (0, 180), got %v", c.CameraDefaultFOV)
	}
	if len(c.Sensors) == 0 {
		return fmt.Errorf("sensors table is empty")
	}
	for ch, s := range c.Sensors {
		if sensor.ModalityOf(ch) == "" {
			return fmt.Errorf("sensor %q: channel must start with CAM_, RADAR_ or LIDAR_", ch)
		}
		if strings.ContainsAny(ch, `/\`) || !filepath.IsLocal(ch) {
			return fmt.Errorf("sensor %q: channel must be a plain directory name", ch)
		}
		if _, _, err := transform.NormalizeQuaternion(s.RotationWXYZ); err != nil {
			return fmt.Errorf("sensor %s: %w", ch, err)
		}
		if s.Intrinsic != nil && sensor.ModalityOf(ch) != sensor.ModalityCamera {
			return fmt.Errorf("sensor %s: intrinsic is only valid for cameras", ch)
		}
	}
	return nil
}

// Channels returns every configured channel: cameras, then radars, then
// lidars, each group in name order.
func (c *Config) Channels() []string {
	rank := map[sensor.Modality]int{sensor.ModalityCamera: 0, sensor.ModalityRadar: 1, sensor.ModalityLidar: 2}
	out := make([]string, 0, len(c.Sensors))
	for ch := range c.Sensors {
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b string) int {
		if d := rank[sensor.ModalityOf(a)] - rank[sensor.ModalityOf(b)]; d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	return out
}

// Calibration returns the channel's calibration with its quaternion
// renormalised to unit length.
func (c *Config) Calibration(channel string) (sensor.Calibration, error) {
	s, ok := c.Sensors[channel]
	if !ok {
		return sensor.Calibration{}, &MissingCalibrationError{Channel: channel}
	}
	q, changed, err := transform.NormalizeQuaternion(s.RotationWXYZ)
	if err != nil {
		return sensor.Calibration{}, fmt.Errorf("config: %s: %w", channel, err)
	}
	if changed {
		monitoring.Logf("config: %s rotation %v renormalised to %v", channel, s.RotationWXYZ, q)
	}
	cal := sensor.Calibration{
		Channel:     channel,
		Modality:    sensor.ModalityOf(channel),
		Translation: s.Translation,
		Rotation:    q,
	}
	if s.Intrinsic != nil {
		k := *s.Intrinsic
		cal.Intrinsic = &k
	}
	return cal, nil
}

// Calibrations returns every channel's calibration in Channels order.
func (c *Config) Calibrations() ([]sensor.Calibration, error) {
	chans := c.Channels()
	out := make([]sensor.Calibration, 0, len(chans))
	for _, ch := range chans {
		cal, err := c.Calibration(ch)
		if err != nil {
			return nil, err
		}
		out = append(out, cal)
	}
	return out, nil
}
