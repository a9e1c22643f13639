// Package render exports triangle meshes, such as constructed surfaces,
// to the binary STL format.
package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle3 is a triangle in 3D space. Vertices are ordered
// counter-clockwise when viewed from the side the normal points to.
type Triangle3 struct {
	V [3]r3.Vec
}

// Normal returns the unit normal of the triangle.
func (t Triangle3) Normal() r3.Vec {
	e1 := r3.Sub(t.V[1], t.V[0])
	e2 := r3.Sub(t.V[2], t.V[0])
	return r3.Unit(r3.Cross(e1, e2))
}

// Area returns the area of the triangle.
func (t Triangle3) Area() float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0])))
}
