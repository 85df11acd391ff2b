// Package nuscenes assembles and writes the relational record graph of the
// output dataset: log, scene, sample, sample_data, sensor,
// calibrated_sensor, ego_pose and map tables, plus the binary payload tree.
package nuscenes

import "github.com/banshee-data/scenesync/internal/sensor"

// Log describes the recording session.
type Log struct {
	Token        string  `json:"token"`
	Logfile      string  `json:"logfile"`
	DateCaptured string  `json:"date_captured"`
	Location     string  `json:"location"`
	Duration     float64 `json:"duration"`
}

// Scene is the single continuous sequence covered by an export.
type Scene struct {
	Token            string `json:"token"`
	LogToken         string `json:"log_token"`
	NbrSamples       int    `json:"nbr_samples"`
	FirstSampleToken string `json:"first_sample_token"`
	LastSampleToken  string `json:"last_sample_token"`
	Name             string `json:"name"`
	Description      string `json:"description"`
}

// Sample is one keyframe.
type Sample struct {
	Token      string `json:"token"`
	Timestamp  int64  `json:"timestamp"`
	Prev       string `json:"prev"`
	Next       string `json:"next"`
	SceneToken string `json:"scene_token"`
}

// SampleData is one materialised sensor reading, key or sweep.
type SampleData struct {
	Token                 string `json:"token"`
	SampleToken           string `json:"sample_token"`
	EgoPoseToken          string `json:"ego_pose_token"`
	CalibratedSensorToken string `json:"calibrated_sensor_token"`
	SensorToken           string `json:"sensor_token"`
	Timestamp             int64  `json:"timestamp"`
	FileFormat            string `json:"fileformat"`
	IsKeyFrame            bool   `json:"is_key_frame"`
	Height                int    `json:"height"`
	Width                 int    `json:"width"`
	Filename              string `json:"filename"`
	Prev                  string `json:"prev"`
	Next                  string `json:"next"`

	// Channel and Source drive payload materialisation. KeyframeIndex is the
	// claiming keyframe for key records and -1 for sweeps.
	Channel       string           `json:"-"`
	Source        sensor.RawSample `json:"-"`
	KeyframeIndex int              `json:"-"`
}

// Sensor is one channel of the rig.
type Sensor struct {
	Token    string          `json:"token"`
	Channel  string          `json:"channel"`
	Name     string          `json:"name"`
	Modality sensor.Modality `json:"modality"`
}

// CalibratedSensor is a channel's mounting pose in vehicle axes.
type CalibratedSensor struct {
	Token           string      `json:"token"`
	SensorToken     string      `json:"sensor_token"`
	Translation     [3]float64  `json:"translation"`
	Rotation        [4]float64  `json:"rotation"`
	CameraIntrinsic [][]float64 `json:"camera_intrinsic"`
}

// EgoPose is the vehicle pose in the global frame.
type EgoPose struct {
	Token       string     `json:"token"`
	Timestamp   int64      `json:"timestamp"`
	Rotation    [4]float64 `json:"rotation"`
	Translation [3]float64 `json:"translation"`
}

// Map is a semantic map layer set attached to the log.
type Map struct {
	Token      string   `json:"token"`
	Filename   string   `json:"filename"`
	LogTokens  []string `json:"log_tokens"`
	LayerNames []string `json:"layer_names"`
}

// Graph is the complete record set of one export.
type Graph struct {
	Logs              []Log
	Scenes            []Scene
	Samples           []Sample
	SampleData        []SampleData
	Sensors           []Sensor
	CalibratedSensors []CalibratedSensor
	EgoPoses          []EgoPose
	Maps              []Map
}

// ChannelData returns the sample_data records of one channel in graph order.
func (g *Graph) ChannelData(channel string) []SampleData {
	var out []SampleData
	for _, sd := range g.SampleData {
		if sd.Channel == channel {
			out = append(out, sd)
		}
	}
	return out
}

// KeyCount returns the number of key sample_data records.
func (g *Graph) KeyCount() int {
	n := 0
	for _, sd := range g.SampleData {
		if sd.IsKeyFrame {
			n++
		}
	}
	return n
}
