// Package transform converts between the dataset's axis convention
// (x forward, y left, z up) and the simulator's (x forward, y right, z up).
//
// Calibration poses are converted once, into the simulator placement the
// external sensor spawner needs. Point payloads are converted per capture,
// into dataset-convention records ready for the PCD codec.
package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/scenesync/internal/sensor"
)

// UnitTolerance is how far a quaternion norm may drift from 1 before it is
// renormalised.
const UnitTolerance = 1e-6

// Placement is a sensor pose in simulator terms: location in metres relative
// to the vehicle origin and extrinsic roll/pitch/yaw in degrees.
type Placement struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

var (
	// flipY mirrors the y axis; it is its own inverse.
	flipY = mat.NewDiagDense(3, []float64{1, -1, 1})

	// cameraAxes maps dataset camera-local (x right, y down, z forward) to
	// simulator camera-local (x forward, y right, z up): (x,y,z) -> (z,x,-y).
	cameraAxes = mat.NewDense(3, 3, []float64{
		0, 0, 1,
		1, 0, 0,
		0, -1, 0,
	})
)

// NormalizeQuaternion returns q (w,x,y,z) scaled to unit norm. The bool
// reports whether q was off-unit by more than UnitTolerance. Zero and
// non-finite quaternions cannot describe a rotation and are rejected.
func NormalizeQuaternion(q [4]float64) ([4]float64, bool, error) {
	n := quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
	if quat.IsNaN(n) || quat.IsInf(n) {
		return q, false, fmt.Errorf("quaternion %v is not finite", q)
	}
	norm := quat.Abs(n)
	if norm == 0 {
		return q, false, fmt.Errorf("quaternion %v has zero norm", q)
	}
	if math.Abs(norm-1) <= UnitTolerance {
		return q, false, nil
	}
	u := quat.Scale(1/norm, n)
	return [4]float64{u.Real, u.Imag, u.Jmag, u.Kmag}, true, nil
}

// RotationMatrix builds the 3x3 rotation matrix of a unit quaternion (w,x,y,z).
func RotationMatrix(q [4]float64) *mat.Dense {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// SimulatorRotation converts a dataset sensor-to-vehicle rotation into the
// simulator frame. Radar and lidar local axes follow the vehicle, so only the
// y mirror applies on both sides (S·R·S). Camera local axes differ, so the
// right-hand side re-expresses the simulator camera axes first (S·R·Cᵗ).
func SimulatorRotation(r mat.Matrix, modality sensor.Modality) *mat.Dense {
	var left, out mat.Dense
	left.Mul(flipY, r)
	if modality == sensor.ModalityCamera {
		out.Mul(&left, cameraAxes.T())
	} else {
		out.Mul(&left, flipY)
	}
	return &out
}

// EulerDegrees decomposes r into the simulator's extrinsic roll/pitch/yaw.
func EulerDegrees(r mat.Matrix) (roll, pitch, yaw float64) {
	// Clamp so rounding noise at gimbal lock cannot push asin out of domain.
	s := math.Max(-1, math.Min(1, -r.At(2, 0)))
	pitch = math.Asin(s)
	roll = math.Atan2(r.At(2, 1), r.At(2, 2))
	yaw = math.Atan2(r.At(1, 0), r.At(0, 0))
	return radToDeg(roll), radToDeg(pitch), radToDeg(yaw)
}

// PlacementFor converts a calibration record into a simulator placement.
// The quaternion is renormalised first; see NormalizeQuaternion.
func PlacementFor(cal sensor.Calibration) (Placement, error) {
	q, _, err := NormalizeQuaternion(cal.Rotation)
	if err != nil {
		return Placement{}, fmt.Errorf("%s: %w", cal.Channel, err)
	}
	roll, pitch, yaw := EulerDegrees(SimulatorRotation(RotationMatrix(q), cal.Modality))
	return Placement{
		X:     cal.Translation[0],
		Y:     -cal.Translation[1],
		Z:     cal.Translation[2],
		Roll:  roll,
		Pitch: pitch,
		Yaw:   yaw,
	}, nil
}

// HorizontalFOV derives a camera's horizontal field of view in degrees from
// its focal length: 2·atan(W / 2fx). Without an intrinsic, or with a
// non-positive focal length, defaultFOV is returned.
func HorizontalFOV(cal sensor.Calibration, imageWidth int, defaultFOV float64) float64 {
	if cal.Intrinsic == nil {
		return defaultFOV
	}
	fx := cal.Intrinsic[0][0]
	if fx <= 0 || imageWidth <= 0 {
		return defaultFOV
	}
	return radToDeg(2 * math.Atan(float64(imageWidth)/(2*fx)))
}

func radToDeg(r float64) float64 {
	return r * 180.0 / math.Pi
}
