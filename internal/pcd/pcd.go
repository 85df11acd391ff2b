// Package pcd encodes and decodes point clouds in the binary PCD v0.7 layout
// read by nuScenes tooling.
//
// Two layouts are supported:
//
//	radar: 18 fields, 43 bytes per point (x y z dyn_prop id rcs vx vy vx_comp
//	       vy_comp is_quality_valid ambig_state x_rms y_rms invalid_state pdh0
//	       vx_rms vy_rms)
//	lidar: 5 float32 fields, 20 bytes per point (x y z intensity ring)
//
// Every file is an ASCII header followed by little-endian point records and a
// single trailing '\n' byte, which the downstream reader expects at EOF.
package pcd

import (
	"fmt"
	"strconv"
	"strings"
)

// Trailer is appended after the last point record.
const Trailer byte = '\n'

// Layout describes the per-point fields of a PCD file.
type Layout struct {
	Name   string
	Fields []string
	Sizes  []int
	Types  []string
}

// PointSize is the byte size of one point record.
func (l Layout) PointSize() int {
	n := 0
	for _, s := range l.Sizes {
		n += s
	}
	return n
}

// RadarLayout is the 18-field nuScenes radar layout.
var RadarLayout = Layout{
	Name: "radar",
	Fields: []string{
		"x", "y", "z", "dyn_prop", "id", "rcs", "vx", "vy", "vx_comp", "vy_comp",
		"is_quality_valid", "ambig_state", "x_rms", "y_rms", "invalid_state", "pdh0", "vx_rms", "vy_rms",
	},
	Sizes: []int{4, 4, 4, 1, 2, 4, 4, 4, 4, 4, 1, 1, 1, 1, 1, 1, 1, 1},
	// nuScenes radar files declare the integer columns as signed (I), not U.
	Types: []string{"F", "F", "F", "I", "I", "F", "F", "F", "F", "F", "I", "I", "I", "I", "I", "I", "I", "I"},
}

// LidarLayout is the 5-field lidar layout.
var LidarLayout = Layout{
	Name:   "lidar",
	Fields: []string{"x", "y", "z", "intensity", "ring"},
	Sizes:  []int{4, 4, 4, 4, 4},
	Types:  []string{"F", "F", "F", "F", "F"},
}

// Record sizes in bytes.
const (
	RadarPointSize = 43
	LidarPointSize = 20
)

// RadarPoint is one radar detection in dataset axes.
type RadarPoint struct {
	X, Y, Z        float32
	DynProp        int8
	ID             int16
	RCS            float32
	VX, VY         float32
	VXComp, VYComp float32
	IsQualityValid int8
	AmbigState     int8
	XRMS, YRMS     int8
	InvalidState   int8
	PDH0           int8
	VXRMS, VYRMS   int8
}

// LidarPoint is one lidar return in dataset axes.
type LidarPoint struct {
	X, Y, Z   float32
	Intensity float32
	Ring      float32
}

// Header is the parsed ASCII preamble of a PCD file.
type Header struct {
	Version   string
	Fields    []string
	Sizes     []int
	Types     []string
	Counts    []int
	Width     int
	Height    int
	Viewpoint string
	Points    int
	Data      string
}

// HeaderText renders the fixed header for n points of layout l.
func HeaderText(l Layout, n int) string {
	var b strings.Builder
	b.WriteString("# .PCD v0.7 - Point Cloud Data file format\n")
	b.WriteString("VERSION 0.7\n")
	b.WriteString("FIELDS " + strings.Join(l.Fields, " ") + "\n")
	b.WriteString("SIZE " + joinInts(l.Sizes) + "\n")
	b.WriteString("TYPE " + strings.Join(l.Types, " ") + "\n")
	counts := make([]int, len(l.Fields))
	for i := range counts {
		counts[i] = 1
	}
	b.WriteString("COUNT " + joinInts(counts) + "\n")
	fmt.Fprintf(&b, "WIDTH %d\n", n)
	b.WriteString("HEIGHT 1\n")
	b.WriteString("VIEWPOINT 0 0 0 1 0 0 0\n")
	fmt.Fprintf(&b, "POINTS %d\n", n)
	b.WriteString("DATA binary\n")
	return b.String()
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

// FormatError reports a raw payload or PCD file that cannot be decoded
// without dropping or inventing data.
type FormatError struct {
	Channel string
	Path    string
	Reason  string
}

func (e *FormatError) Error() string {
	where := e.Path
	if e.Channel != "" {
		where = e.Channel + " " + e.Path
	}
	if where == "" {
		return "pcd: malformed payload: " + e.Reason
	}
	return fmt.Sprintf("pcd: malformed payload %s: %s", strings.TrimSpace(where), e.Reason)
}
