package delaunay

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kdtree.Interface = kdPoints{}
	_ kdtree.Bounder   = kdPoints{}
)

// kdPoint is a point tagged with its index in the input list.
type kdPoint struct {
	r3.Vec
	index int
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a kdPoint) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a.Vec, b.(kdPoint).Vec, int(d))
}

// Dims returns the number of dimensions described in the Comparable.
func (a kdPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (a kdPoint) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.Vec, b.(kdPoint).Vec))
}

type kdPoints []kdPoint

func (k kdPoints) Index(i int) kdtree.Comparable { return k[i] }

// Len returns the length of the list.
func (k kdPoints) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdPoints) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), points: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (k kdPoints) Slice(start, end int) kdtree.Interface { return k[start:end] }

func (k kdPoints) Bounds() *kdtree.Bounding {
	min := r3.Vec{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	max := r3.Scale(-1, min)
	for _, p := range k {
		min = r3.Vec{X: math.Min(min.X, p.X), Y: math.Min(min.Y, p.Y), Z: math.Min(min.Z, p.Z)}
		max = r3.Vec{X: math.Max(max.X, p.X), Y: math.Max(max.Y, p.Y), Z: math.Max(max.Z, p.Z)}
	}
	return &kdtree.Bounding{Min: kdPoint{Vec: min}, Max: kdPoint{Vec: max}}
}

// c = a.dim - b.dim
func kdComp(a, b r3.Vec, dim int) (c float64) {
	switch dim {
	case 0:
		c = a.X - b.X
	case 1:
		c = a.Y - b.Y
	case 2:
		c = a.Z - b.Z
	}
	return c
}

type kdPlane struct {
	dim    int
	points kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.points[i].Vec, p.points[j].Vec, p.dim) < 0
}
func (p kdPlane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}
func (p kdPlane) Len() int {
	return len(p.points)
}
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}

// duplicates reports for each point whether a point with a lower index lies
// within distance tol of it.
func duplicates(pts []r3.Vec, tol float64) []bool {
	list := make(kdPoints, len(pts))
	for i, p := range pts {
		list[i] = kdPoint{Vec: p, index: i}
	}
	tree := kdtree.New(list, true)
	dup := make([]bool, len(pts))
	for i, p := range pts {
		keep := kdtree.NewDistKeeper(tol * tol)
		tree.NearestSet(keep, kdPoint{Vec: p, index: i})
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue // sentinel
			}
			if c.Comparable.(kdPoint).index < i {
				dup[i] = true
				break
			}
		}
	}
	return dup
}
