package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vector is a vector expressed in the lattice frame of a cluster.
// A nil Cluster means the vector is given in the spatial frame.
type Vector struct {
	Vec     r3.Vec
	Cluster *Cluster
}

// NewVector returns v expressed in the frame of c.
func NewVector(v r3.Vec, c *Cluster) Vector {
	return Vector{Vec: v, Cluster: c}
}

// IsZero reports whether the local vector is exactly zero.
func (v Vector) IsZero() bool { return v.Vec == r3.Vec{} }

// Negate returns the vector with opposite direction in the same frame.
func (v Vector) Negate() Vector {
	return Vector{Vec: r3.Scale(-1, v.Vec), Cluster: v.Cluster}
}

// Equals reports whether v and w share a frame and agree within tol per component.
func (v Vector) Equals(w Vector, tol float64) bool {
	return v.Cluster == w.Cluster &&
		math.Abs(v.Vec.X-w.Vec.X) <= tol &&
		math.Abs(v.Vec.Y-w.Vec.Y) <= tol &&
		math.Abs(v.Vec.Z-w.Vec.Z) <= tol
}

// ToSpatial converts the vector to the spatial frame using the cluster orientation.
func (v Vector) ToSpatial() r3.Vec {
	if v.Cluster == nil {
		return v.Vec
	}
	return mulVec(v.Cluster.Orientation, v.Vec)
}

// TransformTo maps the vector across transition t. It panics if t does not
// start at the vector's cluster.
func (v Vector) TransformTo(t *Transition) Vector {
	if t.Cluster1 != v.Cluster {
		panic("bug: transition does not start at vector cluster")
	}
	return Vector{Vec: mulVec(t.TM, v.Vec), Cluster: t.Cluster2}
}

func mulVec(m mat.Matrix, v r3.Vec) r3.Vec {
	var dst mat.VecDense
	dst.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: dst.AtVec(0), Y: dst.AtVec(1), Z: dst.AtVec(2)}
}
