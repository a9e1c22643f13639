package render

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

// Binary STL layout: an 80 byte header and a little endian triangle count,
// then one record per triangle holding the normal, three vertices and an
// unused attribute word.
const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
)

var (
	ErrEmptyModel = errors.New("render: no triangles to write")
	ErrNonFinite  = errors.New("render: inf/NaN triangle vertex")
)

// CreateSTL writes model to a binary STL file at path.
func CreateSTL(path string, model []Triangle3) error {
	if len(model) == 0 {
		return ErrEmptyModel
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSTL(file, model); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteSTL writes model triangles to w in binary STL format. Triangles are
// written with their vertex order unchanged so outward facing surfaces keep
// outward normals. Degenerate triangles get a zero normal.
func WriteSTL(w io.Writer, model []Triangle3) error {
	if len(model) == 0 {
		return ErrEmptyModel
	}
	if uint64(len(model)) > math.MaxUint32 {
		return fmt.Errorf("render: %d triangles exceed STL triangle count", len(model))
	}
	bw := bufio.NewWriter(w)
	var header [stlHeaderSize]byte
	binary.LittleEndian.PutUint32(header[80:], uint32(len(model)))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	var rec [stlTriangleSize]byte
	for i, t := range model {
		if err := putTriangle(rec[:], t); err != nil {
			return fmt.Errorf("triangle %d: %w", i, err)
		}
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func putTriangle(b []byte, t Triangle3) error {
	_ = b[stlTriangleSize-1] // early bounds check
	for i, v := range t.V {
		f := vec32(v)
		if bad3F32(f) {
			return ErrNonFinite
		}
		put3F32(b[12*(i+1):], f)
	}
	n := vec32(t.Normal())
	if bad3F32(n) {
		n = [3]float32{}
	}
	put3F32(b, n)
	binary.LittleEndian.PutUint16(b[48:], 0)
	return nil
}

func vec32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}
