package surface

import (
	"context"
	"testing"

	"github.com/soypat/dxa/simcell"
	"github.com/soypat/dxa/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func lattice(n int, skip func(x, y, z int) bool) []r3.Vec {
	var pts []r3.Vec
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				if skip != nil && skip(x, y, z) {
					continue
				}
				pts = append(pts, r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)})
			}
		}
	}
	return pts
}

func cubicCell(size float64, periodic bool) simcell.Cell {
	return simcell.Orthorhombic(r3.Vec{X: size, Y: size, Z: size}, [3]bool{periodic, periodic, periodic})
}

func TestConstructValidation(t *testing.T) {
	pts := lattice(2, nil)
	for _, test := range []struct {
		name string
		pts  []r3.Vec
		cell simcell.Cell
		sel  []bool
		p    Params
		want error
	}{
		{"zero radius", pts, cubicCell(10, false), nil, Params{}, ErrInvalidRadius},
		{"negative radius", pts, cubicCell(10, false), nil, Params{Radius: -1}, ErrInvalidRadius},
		{"degenerate cell", pts, simcell.Cell{}, nil, Params{Radius: 1}, ErrDegenerateCell},
		{"cell too small", pts, cubicCell(4, true), nil, Params{Radius: 1.5}, ErrCellTooSmall},
		{"too few points", pts[:3], cubicCell(10, false), nil, Params{Radius: 1}, ErrTooFewPoints},
		{"too few selected", pts, cubicCell(10, false), []bool{true, true, true, false, false, false, false, false}, Params{Radius: 1}, ErrTooFewPoints},
		{"selection size", pts, cubicCell(10, false), []bool{true}, Params{Radius: 1}, ErrSelectionSize},
		{"duplicates", []r3.Vec{{}, {X: 1}, {Y: 1}, {Y: 1}}, cubicCell(10, false), nil, Params{Radius: 1}, ErrTooFewPoints},
	} {
		t.Run(test.name, func(t *testing.T) {
			res, err := Construct(test.pts, test.cell, test.sel, test.p, nil)
			assert.ErrorIs(t, err, test.want)
			assert.Nil(t, res)
		})
	}
	// Non-periodic axes do not limit the radius.
	_, err := Construct(pts, cubicCell(1, false), nil, Params{Radius: 5}, nil)
	assert.NoError(t, err)
}

func TestConstructLatticeBlock(t *testing.T) {
	for _, radius := range []float64{1.2, 10} {
		res, err := Construct(lattice(4, nil), cubicCell(100, false), nil, Params{Radius: radius, SelectSurfaceParticles: true}, nil)
		require.NoError(t, err)
		assert.InDelta(t, 27, res.SolidVolume, 1e-8)
		assert.InDelta(t, 54, res.SurfaceArea, 1e-6)
		m := res.Mesh
		require.True(t, m.IsClosed())
		assert.Equal(t, 2, m.EulerCharacteristic())
		assert.Zero(t, res.DuplicatedVertices)

		require.Len(t, res.SurfaceParticles, 64)
		idx := func(x, y, z int) int { return 16*x + 4*y + z }
		for _, c := range [][3]int{{0, 0, 0}, {3, 0, 0}, {0, 3, 3}, {3, 3, 3}} {
			assert.True(t, res.SurfaceParticles[idx(c[0], c[1], c[2])], "corner %v", c)
		}
		for x := 1; x < 3; x++ {
			for y := 1; y < 3; y++ {
				for z := 1; z < 3; z++ {
					assert.False(t, res.SurfaceParticles[idx(x, y, z)])
				}
			}
		}
	}
}

func TestConstructSmoothing(t *testing.T) {
	var areas []float64
	for level := 0; level < 3; level++ {
		res, err := Construct(lattice(4, nil), cubicCell(100, false), nil, Params{Radius: 10, SmoothingLevel: level}, nil)
		require.NoError(t, err)
		require.True(t, res.Mesh.IsClosed())
		assert.InDelta(t, 27, res.SolidVolume, 1e-8)
		areas = append(areas, res.SurfaceArea)
	}
	assert.InDelta(t, 54, areas[0], 1e-6)
	assert.Less(t, areas[1], areas[0])
	assert.Less(t, areas[2], areas[1])
	assert.Greater(t, areas[2], 40.0)
}

func TestConstructPeriodicFilled(t *testing.T) {
	res, err := Construct(lattice(4, nil), cubicCell(4, true), nil, Params{Radius: 1.2, SelectSurfaceParticles: true}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 64, res.SolidVolume, 1e-8)
	assert.Zero(t, res.Mesh.NumFaces())
	assert.Zero(t, res.SurfaceArea)
	assert.NotContains(t, res.SurfaceParticles, true)
}

func TestConstructPeriodicVoid(t *testing.T) {
	cell := cubicCell(6, true)
	block := func(a, b int) func(x, y, z int) bool {
		in := func(c int) bool { return c == a || c == b }
		return func(x, y, z int) bool { return in(x) && in(y) && in(z) }
	}
	params := Params{Radius: 1.2, SelectSurfaceParticles: true}
	inner, err := Construct(lattice(6, block(2, 3)), cell, nil, params, nil)
	require.NoError(t, err)
	// Same vacancy cluster split across the periodic boundaries.
	split, err := Construct(lattice(6, block(5, 0)), cell, nil, params, nil)
	require.NoError(t, err)

	for _, res := range []*Result{inner, split} {
		assert.Less(t, res.SolidVolume, 216.0-8)
		assert.Greater(t, res.SolidVolume, 216.0-27)
		assert.Greater(t, res.Mesh.NumFaces(), 0)
		require.True(t, res.Mesh.IsClosed())
		assert.Equal(t, 2, res.Mesh.EulerCharacteristic())
		n := 0
		for _, s := range res.SurfaceParticles {
			if s {
				n++
			}
		}
		assert.Equal(t, len(res.Mesh.Vertices)-res.DuplicatedVertices, n)
	}
	assert.InDelta(t, inner.SolidVolume, split.SolidVolume, 1e-8)
	assert.InDelta(t, inner.SurfaceArea, split.SurfaceArea, 1e-8)
	assert.Equal(t, inner.Mesh.NumFaces(), split.Mesh.NumFaces())
}

func TestConstructCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Construct(lattice(4, nil), cubicCell(100, false), nil, Params{Radius: 2}, task.New(ctx))
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestConstructProgress(t *testing.T) {
	var fractions []float64
	tk := task.New(context.Background(), task.WithProgress(func(f float64) {
		fractions = append(fractions, f)
	}))
	_, err := Construct(lattice(4, nil), cubicCell(100, false), nil, Params{Radius: 2}, tk)
	require.NoError(t, err)
	require.NotEmpty(t, fractions)
	var max float64
	for _, f := range fractions {
		if f > max {
			max = f
		}
	}
	assert.GreaterOrEqual(t, max, 44.0/46-1e-12)
	assert.LessOrEqual(t, max, 1.0)
}
