package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// R3 vector helpers shared by the line and mesh packages.

// EqualWithin returns true if a and b differ by at most tol in every component.
func EqualWithin(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

// MinElem return a vector with the minimum components of two vectors.
func MinElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// MaxElem return a vector with the maximum components of two vectors.
func MaxElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// Component returns the dim'th component of v (0=X, 1=Y, 2=Z).
func Component(v r3.Vec, dim int) float64 {
	switch dim {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic("bad dimension")
}

// SetComponent returns v with its dim'th component replaced by c.
func SetComponent(v r3.Vec, dim int, c float64) r3.Vec {
	switch dim {
	case 0:
		v.X = c
	case 1:
		v.Y = c
	case 2:
		v.Z = c
	default:
		panic("bad dimension")
	}
	return v
}

// PolylineLength returns the sum of distances between consecutive points.
func PolylineLength(pts []r3.Vec) (length float64) {
	for i := 1; i < len(pts); i++ {
		length += r3.Norm(r3.Sub(pts[i], pts[i-1]))
	}
	return length
}

type Set []r3.Vec

// Min return the minimum components of a set of vectors.
func (a Set) Min() r3.Vec {
	vmin := a[0]
	for _, v := range a[1:] {
		vmin = MinElem(vmin, v)
	}
	return vmin
}

// Max return the maximum components of a set of vectors.
func (a Set) Max() r3.Vec {
	vmax := a[0]
	for _, v := range a[1:] {
		vmax = MaxElem(vmax, v)
	}
	return vmax
}

// Bounds returns the bounding box of the set.
func (a Set) Bounds() Box {
	return Box{Min: a.Min(), Max: a.Max()}
}
