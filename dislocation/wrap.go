package dislocation

import (
	"math"

	"github.com/soypat/dxa/internal/d3"
	"github.com/soypat/dxa/simcell"
	"gonum.org/v1/gonum/spatial/r3"
)

// WrapLine splits an unwrapped line into pieces that lie within the primary
// image of the periodic cell and calls fn for every piece. isInitialSegment is
// true for the first piece and for every piece that starts on a cell boundary.
func WrapLine(cell simcell.Cell, line []r3.Vec, fn func(p1, p2 r3.Vec, isInitialSegment bool)) {
	if len(line) < 2 {
		return
	}
	initial := true
	emit := func(p1, p2 r3.Vec) {
		fn(p1, p2, initial)
		initial = false
	}

	rp1 := cell.AbsoluteToReduced(line[0])
	var shift r3.Vec
	for dim := 0; dim < 3; dim++ {
		if cell.HasPBC(dim) {
			s := -math.Floor(d3.Component(rp1, dim))
			rp1 = d3.SetComponent(rp1, dim, d3.Component(rp1, dim)+s)
			shift = d3.SetComponent(shift, dim, s)
		}
	}
	for _, p := range line[1:] {
		rp2 := r3.Add(cell.AbsoluteToReduced(p), shift)
		var clipped [3]bool
		for {
			smallestT := math.MaxFloat64
			crossDim, crossDir := -1, 0.0
			for dim := 0; dim < 3; dim++ {
				if !cell.HasPBC(dim) || clipped[dim] {
					continue
				}
				c1, c2 := d3.Component(rp1, dim), d3.Component(rp2, dim)
				d := int(math.Floor(c2)) - int(math.Floor(c1))
				if d == 0 {
					continue
				}
				var t float64
				if d > 0 {
					t = (math.Ceil(c1) - c1) / (c2 - c1)
				} else {
					t = (math.Floor(c1) - c1) / (c2 - c1)
				}
				if t >= 0 && t < smallestT {
					smallestT = t
					crossDim = dim
					crossDir = math.Copysign(1, float64(d))
				}
			}
			if crossDim < 0 {
				break
			}
			clipped[crossDim] = true
			intersection := r3.Add(rp1, r3.Scale(smallestT, r3.Sub(rp2, rp1)))
			intersection = d3.SetComponent(intersection, crossDim, math.Floor(d3.Component(intersection, crossDim)+0.5))
			a, b := cell.ReducedToAbsolute(rp1), cell.ReducedToAbsolute(intersection)
			if !d3.EqualWithin(a, b, simcell.Epsilon) {
				emit(a, b)
			}
			shift = d3.SetComponent(shift, crossDim, d3.Component(shift, crossDim)-crossDir)
			rp1 = d3.SetComponent(intersection, crossDim, d3.Component(intersection, crossDim)-crossDir)
			rp2 = d3.SetComponent(rp2, crossDim, d3.Component(rp2, crossDim)-crossDir)
			initial = true
		}
		emit(cell.ReducedToAbsolute(rp1), cell.ReducedToAbsolute(rp2))
		rp1 = rp2
	}
}
