// Package sensor holds the value types shared by every stage of the export:
// channel modality, raw capture samples and static calibration.
package sensor

import "strings"

// Modality identifies the kind of sensor behind a channel.
type Modality string

const (
	ModalityCamera Modality = "camera"
	ModalityRadar  Modality = "radar"
	ModalityLidar  Modality = "lidar"
)

// ModalityOf derives a channel's modality from its name prefix
// (CAM_*, RADAR_*, LIDAR_*). Unknown prefixes return "".
func ModalityOf(channel string) Modality {
	switch {
	case strings.HasPrefix(channel, "CAM_"):
		return ModalityCamera
	case strings.HasPrefix(channel, "RADAR_"):
		return ModalityRadar
	case strings.HasPrefix(channel, "LIDAR_"):
		return ModalityLidar
	default:
		return ""
	}
}

// RawSample is one reading produced by the capture collaborator.
// PayloadPath points at an image file (camera) or a float32x4 binary
// (radar detections or lidar points). Immutable once recorded.
type RawSample struct {
	Channel     string `json:"channel"`
	FrameID     int64  `json:"frame_id"`
	TimestampUS int64  `json:"timestamp_us"`
	PayloadPath string `json:"path"`
}

// Calibration is the static mounting pose of a channel, in dataset axes
// (x forward, y left, z up). Rotation is a unit quaternion in w,x,y,z order.
// Intrinsic is only set for cameras.
type Calibration struct {
	Channel     string
	Modality    Modality
	Translation [3]float64
	Rotation    [4]float64
	Intrinsic   *[3][3]float64
}

// HasIntrinsic reports whether a camera matrix was configured.
func (c Calibration) HasIntrinsic() bool {
	return c.Intrinsic != nil
}

// IntrinsicRows returns the camera matrix as nested rows, or an empty
// (non-nil) slice when no intrinsic is configured.
func (c Calibration) IntrinsicRows() [][]float64 {
	if c.Intrinsic == nil {
		return [][]float64{}
	}
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = []float64{c.Intrinsic[i][0], c.Intrinsic[i][1], c.Intrinsic[i][2]}
	}
	return rows
}
