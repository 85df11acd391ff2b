package pcd

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
)

// maxHeaderLines bounds header parsing so a binary file without a DATA line
// fails fast instead of being scanned to EOF.
const maxHeaderLines = 32

// ReadHeader parses the ASCII header up to and including the DATA line.
func ReadHeader(br *bufio.Reader) (Header, error) {
	var h Header
	for i := 0; i < maxHeaderLines; i++ {
		line, err := br.ReadString('\n')
		if err != nil {
			return h, fmt.Errorf("pcd: read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, rest, _ := strings.Cut(line, " ")
		vals := strings.Fields(rest)
		switch key {
		case "VERSION":
			h.Version = rest
		case "FIELDS":
			h.Fields = vals
		case "SIZE":
			if h.Sizes, err = atoiAll(vals); err != nil {
				return h, err
			}
		case "TYPE":
			h.Types = vals
		case "COUNT":
			if h.Counts, err = atoiAll(vals); err != nil {
				return h, err
			}
		case "WIDTH":
			if h.Width, err = atoiOne(key, vals); err != nil {
				return h, err
			}
		case "HEIGHT":
			if h.Height, err = atoiOne(key, vals); err != nil {
				return h, err
			}
		case "VIEWPOINT":
			h.Viewpoint = rest
		case "POINTS":
			if h.Points, err = atoiOne(key, vals); err != nil {
				return h, err
			}
		case "DATA":
			h.Data = rest
			return h, nil
		default:
			return h, &FormatError{Reason: fmt.Sprintf("unknown header key %q", key)}
		}
	}
	return h, &FormatError{Reason: "header has no DATA line"}
}

func atoiAll(vals []string) ([]int, error) {
	out := make([]int, len(vals))
	for i, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("bad integer %q in header", v)}
		}
		out[i] = n
	}
	return out, nil
}

func atoiOne(key string, vals []string) (int, error) {
	if len(vals) != 1 {
		return 0, &FormatError{Reason: fmt.Sprintf("%s expects one value, got %d", key, len(vals))}
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil || n < 0 {
		return 0, &FormatError{Reason: fmt.Sprintf("bad %s value %q", key, vals[0])}
	}
	return n, nil
}

// LayoutOf returns the known layout matching the header's field list.
func LayoutOf(h Header) (Layout, bool) {
	for _, l := range []Layout{RadarLayout, LidarLayout} {
		if slices.Equal(h.Fields, l.Fields) && slices.Equal(h.Sizes, l.Sizes) && slices.Equal(h.Types, l.Types) {
			return l, true
		}
	}
	return Layout{}, false
}

// readBody validates the header against want and returns exactly
// Points*PointSize record bytes. At most one trailing byte is tolerated.
func readBody(r io.Reader, want Layout) (Header, []byte, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return h, nil, err
	}
	if h.Data != "binary" {
		return h, nil, &FormatError{Reason: fmt.Sprintf("unsupported DATA %q", h.Data)}
	}
	if l, ok := LayoutOf(h); !ok || l.Name != want.Name {
		return h, nil, &FormatError{Reason: fmt.Sprintf("fields %v do not match the %s layout", h.Fields, want.Name)}
	}
	if h.Width < 0 || h.Height < 0 || h.Points < 0 {
		return h, nil, &FormatError{Reason: fmt.Sprintf("negative size WIDTH %d HEIGHT %d POINTS %d", h.Width, h.Height, h.Points)}
	}
	if h.Height != 0 && h.Width > math.MaxInt/h.Height {
		return h, nil, &FormatError{Reason: fmt.Sprintf("WIDTH %d * HEIGHT %d overflows", h.Width, h.Height)}
	}
	if h.Points != h.Width*h.Height {
		return h, nil, &FormatError{Reason: fmt.Sprintf("POINTS %d != WIDTH*HEIGHT %d", h.Points, h.Width*h.Height)}
	}
	if h.Points > (math.MaxInt-1)/want.PointSize() {
		return h, nil, &FormatError{Reason: fmt.Sprintf("POINTS %d is too large", h.Points)}
	}
	// The buffer grows with the data actually present, so a header that
	// overstates POINTS fails as short data instead of allocating up front.
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, br, int64(h.Points*want.PointSize())); err != nil {
		return h, nil, &FormatError{Reason: fmt.Sprintf("short point data: %v", err)}
	}
	body := buf.Bytes()
	rest, err := io.ReadAll(br)
	if err != nil {
		return h, nil, fmt.Errorf("pcd: read trailer: %w", err)
	}
	if len(rest) > 1 {
		return h, nil, &FormatError{Reason: fmt.Sprintf("%d unexpected bytes after point data", len(rest))}
	}
	return h, body, nil
}

// DecodeRadar reads a radar PCD file produced by EncodeRadar.
func DecodeRadar(r io.Reader) (Header, []RadarPoint, error) {
	h, body, err := readBody(r, RadarLayout)
	if err != nil {
		return h, nil, err
	}
	pts := make([]RadarPoint, h.Points)
	for i := range pts {
		pts[i] = getRadar(body[i*RadarPointSize:])
	}
	return h, pts, nil
}

// DecodeLidar reads a lidar PCD file produced by EncodeLidar.
func DecodeLidar(r io.Reader) (Header, []LidarPoint, error) {
	h, body, err := readBody(r, LidarLayout)
	if err != nil {
		return h, nil, err
	}
	pts := make([]LidarPoint, h.Points)
	le := binary.LittleEndian
	for i := range pts {
		b := body[i*LidarPointSize:]
		pts[i] = LidarPoint{
			X:         math.Float32frombits(le.Uint32(b[0:])),
			Y:         math.Float32frombits(le.Uint32(b[4:])),
			Z:         math.Float32frombits(le.Uint32(b[8:])),
			Intensity: math.Float32frombits(le.Uint32(b[12:])),
			Ring:      math.Float32frombits(le.Uint32(b[16:])),
		}
	}
	return h, pts, nil
}

// UnmarshalRadar decodes an in-memory radar PCD file.
func UnmarshalRadar(data []byte) ([]RadarPoint, error) {
	_, pts, err := DecodeRadar(bytes.NewReader(data))
	return pts, err
}

// UnmarshalLidar decodes an in-memory lidar PCD file.
func UnmarshalLidar(data []byte) ([]LidarPoint, error) {
	_, pts, err := DecodeLidar(bytes.NewReader(data))
	return pts, err
}

func getRadar(b []byte) RadarPoint {
	le := binary.LittleEndian
	f := func(off int) float32 { return math.Float32frombits(le.Uint32(b[off:])) }
	return RadarPoint{
		X:              f(0),
		Y:              f(4),
		Z:              f(8),
		DynProp:        int8(b[12]),
		ID:             int16(le.Uint16(b[13:])),
		RCS:            f(15),
		VX:             f(19),
		VY:             f(23),
		VXComp:         f(27),
		VYComp:         f(31),
		IsQualityValid: int8(b[35]),
		AmbigState:     int8(b[36]),
		XRMS:           int8(b[37]),
		YRMS:           int8(b[38]),
		InvalidState:   int8(b[39]),
		PDH0:           int8(b[40]),
		VXRMS:          int8(b[41]),
		VYRMS:          int8(b[42]),
	}
}
