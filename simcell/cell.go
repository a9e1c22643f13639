// Package simcell implements the periodic simulation cell used to interpret
// particle positions and dislocation lines under periodic boundary conditions.
package simcell

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/dxa/internal/d3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the length scale below which cell dimensions are considered zero.
const Epsilon = 1e-12

// ErrSingular is returned by New when the cell vectors are linearly dependent.
var ErrSingular = errors.New("simulation cell matrix is singular")

// Cell is an immutable parallelepiped spanned by three cell vectors
// anchored at an origin, with a periodic boundary flag per axis.
// The zero value is a degenerate non-periodic cell.
type Cell struct {
	vectors [3]r3.Vec
	origin  r3.Vec
	pbc     [3]bool
	// inv maps absolute vectors to reduced coordinates (row major).
	inv [9]float64
}

// New creates a cell from its three edge vectors and origin. Degenerate cells
// are returned together with ErrSingular so callers may still inspect them.
func New(a, b, c, origin r3.Vec, pbc [3]bool) (Cell, error) {
	cell := Cell{
		vectors: [3]r3.Vec{a, b, c},
		origin:  origin,
		pbc:     pbc,
	}
	m := mat.NewDense(3, 3, []float64{
		a.X, b.X, c.X,
		a.Y, b.Y, c.Y,
		a.Z, b.Z, c.Z,
	})
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return cell, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cell.inv[i*3+j] = inv.At(i, j)
		}
	}
	return cell, nil
}

// Orthorhombic returns an axis aligned cell of the given size with origin at zero.
// It panics if any size component is not positive.
func Orthorhombic(size r3.Vec, pbc [3]bool) Cell {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		panic("orthorhombic cell size must be positive")
	}
	cell, err := New(r3.Vec{X: size.X}, r3.Vec{Y: size.Y}, r3.Vec{Z: size.Z}, r3.Vec{}, pbc)
	if err != nil {
		panic("bug: " + err.Error())
	}
	return cell
}

// Vector returns the cell vector along axis dim.
func (c Cell) Vector(dim int) r3.Vec { return c.vectors[dim] }

// Origin returns the corner of the cell.
func (c Cell) Origin() r3.Vec { return c.origin }

// HasPBC reports whether axis dim is periodic.
func (c Cell) HasPBC(dim int) bool { return c.pbc[dim] }

// PBC returns the periodic boundary flags of all three axes.
func (c Cell) PBC() [3]bool { return c.pbc }

// IsPeriodic reports whether any axis is periodic.
func (c Cell) IsPeriodic() bool { return c.pbc[0] || c.pbc[1] || c.pbc[2] }

// Volume returns the volume of the cell.
func (c Cell) Volume() float64 {
	return math.Abs(r3.Dot(c.vectors[0], r3.Cross(c.vectors[1], c.vectors[2])))
}

// IsDegenerate reports whether the cell has (nearly) zero volume.
func (c Cell) IsDegenerate() bool {
	return c.Volume() <= Epsilon*Epsilon*Epsilon
}

// AbsoluteToReducedVector converts a vector to cell-relative coordinates.
func (c Cell) AbsoluteToReducedVector(v r3.Vec) r3.Vec {
	m := &c.inv
	return r3.Vec{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// ReducedToAbsoluteVector converts cell-relative coordinates of a vector to an absolute vector.
func (c Cell) ReducedToAbsoluteVector(r r3.Vec) r3.Vec {
	v := r3.Scale(r.X, c.vectors[0])
	v = r3.Add(v, r3.Scale(r.Y, c.vectors[1]))
	return r3.Add(v, r3.Scale(r.Z, c.vectors[2]))
}

// AbsoluteToReduced converts a point to reduced cell coordinates, where the
// cell occupies [0,1) along each axis.
func (c Cell) AbsoluteToReduced(p r3.Vec) r3.Vec {
	return c.AbsoluteToReducedVector(r3.Sub(p, c.origin))
}

// ReducedToAbsolute converts reduced cell coordinates to an absolute point.
func (c Cell) ReducedToAbsolute(r r3.Vec) r3.Vec {
	return r3.Add(c.origin, c.ReducedToAbsoluteVector(r))
}

// WrapPoint maps a point back into the primary cell image along periodic axes.
func (c Cell) WrapPoint(p r3.Vec) r3.Vec {
	r := c.AbsoluteToReduced(p)
	var shift r3.Vec
	for dim := 0; dim < 3; dim++ {
		if !c.pbc[dim] {
			continue
		}
		if s := math.Floor(d3.Component(r, dim)); s != 0 {
			shift = d3.SetComponent(shift, dim, -s)
		}
	}
	if shift == (r3.Vec{}) {
		return p
	}
	return r3.Add(p, c.ReducedToAbsoluteVector(shift))
}

// WrapVector returns the minimum image of v under the periodic boundary conditions.
func (c Cell) WrapVector(v r3.Vec) r3.Vec {
	r := c.AbsoluteToReducedVector(v)
	var shift r3.Vec
	for dim := 0; dim < 3; dim++ {
		if !c.pbc[dim] {
			continue
		}
		if s := math.Floor(d3.Component(r, dim) + 0.5); s != 0 {
			shift = d3.SetComponent(shift, dim, -s)
		}
	}
	if shift == (r3.Vec{}) {
		return v
	}
	return r3.Add(v, c.ReducedToAbsoluteVector(shift))
}

// IsWrappedVector reports whether v spans more than half the cell along a
// periodic axis, i.e. whether it is not its own minimum image.
func (c Cell) IsWrappedVector(v r3.Vec) bool {
	r := c.AbsoluteToReducedVector(v)
	for dim := 0; dim < 3; dim++ {
		if c.pbc[dim] && math.Abs(d3.Component(r, dim)) >= 0.5 {
			return true
		}
	}
	return false
}

// FaceNormal returns the unit normal of the pair of cell faces not spanned by
// cell vector dim. The normal points along the positive side of that vector.
func (c Cell) FaceNormal(dim int) r3.Vec {
	n := r3.Cross(c.vectors[(dim+1)%3], c.vectors[(dim+2)%3])
	if r3.Dot(n, c.vectors[dim]) < 0 {
		n = r3.Scale(-1, n)
	}
	norm := r3.Norm(n)
	if norm == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/norm, n)
}

// FaceDistance returns the perpendicular distance between the two cell faces
// normal to axis dim.
func (c Cell) FaceDistance(dim int) float64 {
	return r3.Dot(c.vectors[dim], c.FaceNormal(dim))
}
