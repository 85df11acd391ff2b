package pcd

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MarshalRadar encodes pts as a complete radar PCD file.
func MarshalRadar(pts []RadarPoint) []byte {
	header := HeaderText(RadarLayout, len(pts))
	buf := make([]byte, len(header), len(header)+len(pts)*RadarPointSize+1)
	copy(buf, header)

	var rec [RadarPointSize]byte
	for _, p := range pts {
		putRadar(rec[:], p)
		buf = append(buf, rec[:]...)
	}
	return append(buf, Trailer)
}

// MarshalLidar encodes pts as a complete lidar PCD file.
func MarshalLidar(pts []LidarPoint) []byte {
	header := HeaderText(LidarLayout, len(pts))
	buf := make([]byte, len(header), len(header)+len(pts)*LidarPointSize+1)
	copy(buf, header)

	var rec [LidarPointSize]byte
	for _, p := range pts {
		putLidar(rec[:], p)
		buf = append(buf, rec[:]...)
	}
	return append(buf, Trailer)
}

// EncodeRadar writes a radar PCD file to w.
func EncodeRadar(w io.Writer, pts []RadarPoint) error {
	_, err := w.Write(MarshalRadar(pts))
	return err
}

// EncodeLidar writes a lidar PCD file to w.
func EncodeLidar(w io.Writer, pts []LidarPoint) error {
	_, err := w.Write(MarshalLidar(pts))
	return err
}

// putRadar packs p into b using the '<fff b h fffff bbbbbbbb' record.
func putRadar(b []byte, p RadarPoint) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], math.Float32bits(p.X))
	le.PutUint32(b[4:], math.Float32bits(p.Y))
	le.PutUint32(b[8:], math.Float32bits(p.Z))
	b[12] = byte(p.DynProp)
	le.PutUint16(b[13:], uint16(p.ID))
	le.PutUint32(b[15:], math.Float32bits(p.RCS))
	le.PutUint32(b[19:], math.Float32bits(p.VX))
	le.PutUint32(b[23:], math.Float32bits(p.VY))
	le.PutUint32(b[27:], math.Float32bits(p.VXComp))
	le.PutUint32(b[31:], math.Float32bits(p.VYComp))
	b[35] = byte(p.IsQualityValid)
	b[36] = byte(p.AmbigState)
	b[37] = byte(p.XRMS)
	b[38] = byte(p.YRMS)
	b[39] = byte(p.InvalidState)
	b[40] = byte(p.PDH0)
	b[41] = byte(p.VXRMS)
	b[42] = byte(p.VYRMS)
}

func putLidar(b []byte, p LidarPoint) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], math.Float32bits(p.X))
	le.PutUint32(b[4:], math.Float32bits(p.Y))
	le.PutUint32(b[8:], math.Float32bits(p.Z))
	le.PutUint32(b[12:], math.Float32bits(p.Intensity))
	le.PutUint32(b[16:], math.Float32bits(p.Ring))
}

// ParseRaw4 splits a raw little-endian float32 payload into 4-value records,
// as produced by the simulator for radar (range, azimuth, elevation,
// velocity) and lidar (x, y, z, intensity). A byte length that is not a whole
// number of records is a FormatError; nothing is truncated.
func ParseRaw4(data []byte) ([][4]float32, error) {
	if len(data)%4 != 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("byte length %d is not a whole number of float32 values", len(data))}
	}
	count := len(data) / 4
	if count%4 != 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("%d float32 values is not divisible by 4", count)}
	}
	out := make([][4]float32, count/4)
	le := binary.LittleEndian
	for i := range out {
		off := i * 16
		out[i] = [4]float32{
			math.Float32frombits(le.Uint32(data[off:])),
			math.Float32frombits(le.Uint32(data[off+4:])),
			math.Float32frombits(le.Uint32(data[off+8:])),
			math.Float32frombits(le.Uint32(data[off+12:])),
		}
	}
	return out, nil
}

// MarshalRaw4 is the inverse of ParseRaw4, used to build capture fixtures.
func MarshalRaw4(recs [][4]float32) []byte {
	out := make([]byte, len(recs)*16)
	le := binary.LittleEndian
	for i, r := range recs {
		for j, v := range r {
			le.PutUint32(out[i*16+j*4:], math.Float32bits(v))
		}
	}
	return out
}
