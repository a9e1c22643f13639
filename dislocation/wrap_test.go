package dislocation

import (
	"testing"

	"github.com/soypat/dxa/simcell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type piece struct {
	p1, p2  r3.Vec
	initial bool
}

func collectPieces(cell simcell.Cell, line []r3.Vec) []piece {
	var pieces []piece
	WrapLine(cell, line, func(p1, p2 r3.Vec, initial bool) {
		pieces = append(pieces, piece{p1, p2, initial})
	})
	return pieces
}

func TestWrapLineCrossing(t *testing.T) {
	cell := simcell.Orthorhombic(r3.Vec{X: 10, Y: 10, Z: 10}, [3]bool{true, true, true})
	pieces := collectPieces(cell, []r3.Vec{{X: 8, Y: 5, Z: 5}, {X: 12, Y: 5, Z: 5}, {X: 13, Y: 5, Z: 5}})
	require.Len(t, pieces, 3)
	want := []piece{
		{r3.Vec{X: 8, Y: 5, Z: 5}, r3.Vec{X: 10, Y: 5, Z: 5}, true},
		{r3.Vec{X: 0, Y: 5, Z: 5}, r3.Vec{X: 2, Y: 5, Z: 5}, true},
		{r3.Vec{X: 2, Y: 5, Z: 5}, r3.Vec{X: 3, Y: 5, Z: 5}, false},
	}
	for i := range want {
		assert.InDelta(t, want[i].p1.X, pieces[i].p1.X, 1e-12)
		assert.InDelta(t, want[i].p2.X, pieces[i].p2.X, 1e-12)
		assert.InDelta(t, 5, pieces[i].p1.Y, 1e-12)
		assert.Equal(t, want[i].initial, pieces[i].initial)
	}
}

func TestWrapLineShiftedStart(t *testing.T) {
	cell := simcell.Orthorhombic(r3.Vec{X: 10, Y: 10, Z: 10}, [3]bool{true, false, false})
	pieces := collectPieces(cell, []r3.Vec{{X: -3, Y: 20}, {X: -1, Y: 20}})
	require.Len(t, pieces, 1)
	assert.InDelta(t, 7, pieces[0].p1.X, 1e-12)
	assert.InDelta(t, 9, pieces[0].p2.X, 1e-12)
	assert.InDelta(t, 20, pieces[0].p2.Y, 1e-12)
}

func TestWrapLineNonPeriodic(t *testing.T) {
	cell := simcell.Orthorhombic(r3.Vec{X: 1, Y: 1, Z: 1}, [3]bool{})
	line := collinear(5)
	pieces := collectPieces(cell, line)
	require.Len(t, pieces, 4)
	for i, p := range pieces {
		assert.Equal(t, i == 0, p.initial)
		assert.InDelta(t, float64(i), p.p1.X, 1e-12)
	}
	assert.Empty(t, collectPieces(cell, line[:1]))
}
