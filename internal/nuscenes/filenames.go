package nuscenes

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/banshee-data/scenesync/internal/sensor"
)

// Output tree directories, relative to the dataset root.
const (
	SamplesDir = "samples"
	SweepsDir  = "sweeps"
	MapsDir    = "maps"
	MapImage   = "maps/eval_map.png"
)

// PointCloudFormat is the fileformat of radar and lidar records.
const PointCloudFormat = "pcd"

// FileFormat returns the fileformat of a channel's payload: the image
// extension for cameras and PointCloudFormat for radar and lidar.
func FileFormat(channel, payloadPath string) string {
	if sensor.ModalityOf(channel) != sensor.ModalityCamera {
		return PointCloudFormat
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filepath.ToSlash(payloadPath))), ".")
	if ext == "" {
		return "png"
	}
	return ext
}

// outputBase is the payload's file name inside the output tree. Point cloud
// payloads are re-encoded, so ".bin" and ".pcd.bin" become ".pcd".
func outputBase(channel, payloadPath string) string {
	base := path.Base(filepath.ToSlash(payloadPath))
	if FileFormat(channel, payloadPath) != PointCloudFormat {
		return base
	}
	base = strings.TrimSuffix(base, ".bin")
	if !strings.HasSuffix(base, "."+PointCloudFormat) {
		base = strings.TrimSuffix(base, path.Ext(base)) + "." + PointCloudFormat
	}
	return base
}

// KeyFilename is where a key record's payload is stored.
func KeyFilename(channel, payloadPath string) string {
	return path.Join(SamplesDir, channel, outputBase(channel, payloadPath))
}

// SweepFilename is where a sweep record's payload is stored.
func SweepFilename(channel, payloadPath string) string {
	return path.Join(SweepsDir, channel, outputBase(channel, payloadPath))
}
