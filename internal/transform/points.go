package transform

import (
	"math"

	"github.com/banshee-data/scenesync/internal/pcd"
)

// LidarToDataset converts simulator lidar points (x, y, z, intensity) to the
// dataset's 5-field layout: y is mirrored and a zero ring index is appended.
func LidarToDataset(raw [][4]float32) []pcd.LidarPoint {
	out := make([]pcd.LidarPoint, len(raw))
	for i, p := range raw {
		out[i] = pcd.LidarPoint{
			X:         p[0],
			Y:         -p[1],
			Z:         p[2],
			Intensity: p[3],
		}
	}
	return out
}

// RadarToDataset converts simulator radar detections (range m, azimuth rad,
// elevation rad, radial velocity m/s) to dataset-convention radar points.
// Compensated velocity equals the raw projection since ego motion is not
// modelled. The id field is the detection's index within the sweep.
func RadarToDataset(raw [][4]float32) []pcd.RadarPoint {
	out := make([]pcd.RadarPoint, len(raw))
	for i, d := range raw {
		rng, az, el, vel := float64(d[0]), float64(d[1]), float64(d[2]), float64(d[3])
		cosEl, sinEl := math.Cos(el), math.Sin(el)
		cosAz, sinAz := math.Cos(az), math.Sin(az)

		vx := float32(vel * cosAz * cosEl)
		vy := float32(-vel * sinAz * cosEl)
		out[i] = pcd.RadarPoint{
			X:      float32(rng * cosEl * cosAz),
			Y:      float32(-rng * cosEl * sinAz),
			Z:      float32(rng * sinEl),
			ID:     int16(i),
			VX:     vx,
			VY:     vy,
			VXComp: vx,
			VYComp: vy,
		}
	}
	return out
}
