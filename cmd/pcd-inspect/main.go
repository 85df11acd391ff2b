// Command pcd-inspect prints the header and leading points of a radar or
// lidar PCD file.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/scenesync/internal/pcd"
)

var count = flag.Int("n", 10, "Number of points to print")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-n N] FILE.pcd\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to read %s: %v", flag.Arg(0), err)
	}
	if err := inspect(os.Stdout, data, *count); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

// inspect picks the layout from the FIELDS line and prints up to n points.
func inspect(w io.Writer, data []byte, n int) error {
	h, err := pcd.ReadHeader(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return err
	}
	l, ok := pcd.LayoutOf(h)
	if !ok {
		return fmt.Errorf("unknown layout with fields %v", h.Fields)
	}
	fmt.Fprintf(w, "layout: %s\nversion: %s\npoints: %d (%d bytes each)\ndata: %s\n", l.Name, h.Version, h.Points, l.PointSize(), h.Data)

	switch l.Name {
	case pcd.RadarLayout.Name:
		pts, err := pcd.UnmarshalRadar(data)
		if err != nil {
			return err
		}
		for i, p := range pts[:min(n, len(pts))] {
			fmt.Fprintf(w, "%4d  x=%.3f y=%.3f z=%.3f id=%d vx=%.3f vy=%.3f\n", i, p.X, p.Y, p.Z, p.ID, p.VX, p.VY)
		}
	case pcd.LidarLayout.Name:
		pts, err := pcd.UnmarshalLidar(data)
		if err != nil {
			return err
		}
		for i, p := range pts[:min(n, len(pts))] {
			fmt.Fprintf(w, "%4d  x=%.3f y=%.3f z=%.3f intensity=%.3f ring=%.0f\n", i, p.X, p.Y, p.Z, p.Intensity, p.Ring)
		}
	}
	return nil
}
