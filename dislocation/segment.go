package dislocation

import (
	"image/color"
	"slices"

	"github.com/soypat/dxa/cluster"
	"github.com/soypat/dxa/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// AtomVectorEpsilon is the tolerance used when comparing line points,
// such as the first and last point of a closed loop.
const AtomVectorEpsilon = 1e-4

// SegmentRef is a generation-checked reference to a segment of a Network.
type SegmentRef handle

// IsZero reports whether r is the zero reference, which never refers to a segment.
func (r SegmentRef) IsZero() bool { return r.gen == 0 }

// Segment is a piecewise linear dislocation line with a constant Burgers vector.
type Segment struct {
	// ID is a stable identifier assigned in creation order.
	ID int
	// Line holds the sample points of the line, from forward to backward node.
	Line []r3.Vec
	// CoreSize holds one core thickness indicator per point in Line.
	CoreSize []int
	// Burgers is the Burgers vector in the frame of its cluster.
	Burgers cluster.Vector
	// Nodes holds the forward (0) and backward (1) node.
	Nodes [2]NodeRef
	// ReplacedWith points to the segment that absorbed this one after a merge.
	ReplacedWith SegmentRef
	// CustomColor overrides the display color when not nil.
	CustomColor color.Color

	ref SegmentRef
}

// Ref returns the reference of s within its network.
func (s *Segment) Ref() SegmentRef { return s.ref }

// IsDegenerate reports whether the line has fewer than two points.
func (s *Segment) IsDegenerate() bool { return len(s.Line) <= 1 }

// FlipOrientation reverses the direction of the segment. The Burgers vector is
// negated, node roles are swapped and Line and CoreSize are reversed in place.
func (s *Segment) FlipOrientation() {
	s.Burgers = s.Burgers.Negate()
	s.Nodes[0], s.Nodes[1] = s.Nodes[1], s.Nodes[0]
	slices.Reverse(s.Line)
	slices.Reverse(s.CoreSize)
}

// Length returns the length of the line. It panics on a degenerate segment.
func (s *Segment) Length() float64 {
	if s.IsDegenerate() {
		panic("bug: length of degenerate dislocation segment")
	}
	return d3.PolylineLength(s.Line)
}

// PointOnLine returns the point at arc length fraction t of the line.
// t is clamped to [0,1].
func (s *Segment) PointOnLine(t float64) r3.Vec {
	if len(s.Line) == 0 {
		return r3.Vec{}
	}
	if t <= 0 || len(s.Line) == 1 {
		return s.Line[0]
	}
	if t >= 1 {
		return s.Line[len(s.Line)-1]
	}
	remaining := t * s.Length()
	for i := 1; i < len(s.Line); i++ {
		delta := r3.Sub(s.Line[i], s.Line[i-1])
		dlen := r3.Norm(delta)
		if dlen > remaining {
			return r3.Add(s.Line[i-1], r3.Scale(remaining/dlen, delta))
		}
		remaining -= dlen
	}
	return s.Line[len(s.Line)-1]
}

// AppendPoint adds a sample point at the backward end of the line.
func (s *Segment) AppendPoint(p r3.Vec, coreSize int) {
	s.Line = append(s.Line, p)
	s.CoreSize = append(s.CoreSize, coreSize)
}

// PrependPoint adds a sample point at the forward end of the line.
func (s *Segment) PrependPoint(p r3.Vec, coreSize int) {
	s.Line = slices.Insert(s.Line, 0, p)
	s.CoreSize = slices.Insert(s.CoreSize, 0, coreSize)
}
