package render_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/dxa/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// tetrahedron returns a closed unit tetrahedron with outward winding.
func tetrahedron() []render.Triangle3 {
	a, b, c, d := r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}
	return []render.Triangle3{
		{V: [3]r3.Vec{a, c, b}},
		{V: [3]r3.Vec{a, b, d}},
		{V: [3]r3.Vec{a, d, c}},
		{V: [3]r3.Vec{b, c, d}},
	}
}

func get3F32(b []byte) [3]float32 {
	return [3]float32{
		math.Float32frombits(binary.LittleEndian.Uint32(b)),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func TestWriteSTLLayout(t *testing.T) {
	model := tetrahedron()
	var buf bytes.Buffer
	if err := render.WriteSTL(&buf, model); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if len(b) != 84+50*len(model) {
		t.Fatalf("unexpected STL size %d", len(b))
	}
	if n := binary.LittleEndian.Uint32(b[80:]); n != uint32(len(model)) {
		t.Fatalf("header triangle count %d, want %d", n, len(model))
	}
	for i, tri := range model {
		rec := b[84+50*i:]
		n := tri.Normal()
		want := [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
		if got := get3F32(rec); got != want {
			t.Errorf("triangle %d normal %v, want %v", i, got, want)
		}
		for j, v := range tri.V {
			want := [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
			if got := get3F32(rec[12*(j+1):]); got != want {
				t.Errorf("triangle %d vertex %d = %v, want %v", i, j, got, want)
			}
		}
		if attr := binary.LittleEndian.Uint16(rec[48:]); attr != 0 {
			t.Errorf("triangle %d attribute %d", i, attr)
		}
	}
	// First face lies in the z=0 plane and faces away from the tetrahedron.
	if got := get3F32(b[84:]); got != [3]float32{0, 0, -1} {
		t.Errorf("bottom face normal %v", got)
	}
}

func TestWriteSTLDegenerate(t *testing.T) {
	p := r3.Vec{X: 1, Y: 2, Z: 3}
	model := []render.Triangle3{{V: [3]r3.Vec{p, p, {X: 4}}}}
	var buf bytes.Buffer
	if err := render.WriteSTL(&buf, model); err != nil {
		t.Fatal(err)
	}
	if got := get3F32(buf.Bytes()[84:]); got != [3]float32{} {
		t.Errorf("degenerate triangle normal %v, want zero", got)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSTLErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := render.WriteSTL(&buf, nil); !errors.Is(err, render.ErrEmptyModel) {
		t.Errorf("expected ErrEmptyModel, got %v", err)
	}
	model := tetrahedron()
	model[2].V[1].Y = math.NaN()
	if err := render.WriteSTL(&buf, model); !errors.Is(err, render.ErrNonFinite) {
		t.Errorf("expected ErrNonFinite, got %v", err)
	}
	model[2].V[1].Y = math.Inf(1)
	if err := render.WriteSTL(&buf, model); !errors.Is(err, render.ErrNonFinite) {
		t.Errorf("expected ErrNonFinite for inf, got %v", err)
	}
	if err := render.WriteSTL(failWriter{}, tetrahedron()); err == nil {
		t.Error("expected writer error to propagate")
	}
}

func TestCreateSTL(t *testing.T) {
	model := tetrahedron()
	path := filepath.Join(t.TempDir(), "tet.stl")
	err := render.CreateSTL(path, model)
	if err != nil {
		t.Fatal(err)
	}
	bfile, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = render.WriteSTL(&buf, model)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), bfile) {
		t.Fatal("WriteSTL and CreateSTL output mismatch")
	}

	empty := filepath.Join(t.TempDir(), "empty.stl")
	if err := render.CreateSTL(empty, nil); !errors.Is(err, render.ErrEmptyModel) {
		t.Errorf("expected ErrEmptyModel, got %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("empty model must not create a file")
	}
}
