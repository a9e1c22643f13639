package dislocation

import (
	"context"
	"math"
	"testing"

	"github.com/soypat/dxa/cluster"
	"github.com/soypat/dxa/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newTestNetwork() (*Network, cluster.Vector) {
	graph := cluster.NewGraph()
	cl := graph.CreateCluster(1, nil)
	return NewNetwork(graph), cluster.NewVector(r3.Vec{X: 1}, cl)
}

func addSegment(nw *Network, b cluster.Vector, pts []r3.Vec) *Segment {
	seg := nw.CreateSegment(b)
	for _, p := range pts {
		seg.AppendPoint(p, 1)
	}
	return seg
}

func collinear(n int) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i := range pts {
		pts[i] = r3.Vec{X: float64(i)}
	}
	return pts
}

// circle returns n distinct points on a circle followed by a copy of the first point.
func circle(n int, radius float64) []r3.Vec {
	pts := make([]r3.Vec, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = r3.Vec{X: radius * math.Cos(a), Y: radius * math.Sin(a)}
	}
	pts[n] = pts[0]
	return pts
}

func TestCreateSegment(t *testing.T) {
	nw, b := newTestNetwork()
	s0 := nw.CreateSegment(b)
	s1 := nw.CreateSegment(b.Negate())
	assert.Equal(t, 0, s0.ID)
	assert.Equal(t, 1, s1.ID)
	assert.Equal(t, []*Segment{s0, s1}, nw.Segments())
	assert.Same(t, s1, nw.Segment(s1.Ref()))

	for _, seg := range nw.Segments() {
		for i, r := range seg.Nodes {
			n := nw.Node(r)
			require.NotNil(t, n)
			assert.Equal(t, seg.Ref(), n.Segment())
			assert.Equal(t, seg.Nodes[1-i], n.Opposite())
			assert.True(t, nw.IsDangling(r))
		}
		assert.True(t, nw.IsForwardNode(seg.Nodes[0]))
		assert.True(t, nw.IsBackwardNode(seg.Nodes[1]))
		assert.False(t, nw.IsClosedLoop(seg.Ref()))
	}
	assert.Panics(t, func() { nw.CreateSegment(cluster.Vector{}) })
}

func TestDiscardSegment(t *testing.T) {
	nw, b := newTestNetwork()
	s0 := addSegment(nw, b, collinear(3))
	s1 := addSegment(nw, b, collinear(3))
	s2 := addSegment(nw, b, collinear(3))
	a, c, d := s0.Nodes[1], s1.Nodes[0], s2.Nodes[0]
	require.NoError(t, nw.ConnectNodes(a, c))
	require.NoError(t, nw.ConnectNodes(a, d))
	require.Equal(t, 3, nw.CountJunctionArms(a))

	ref := s1.Ref()
	require.NoError(t, nw.DiscardSegment(ref))
	assert.Equal(t, []*Segment{s0, s2}, nw.Segments())
	assert.Nil(t, nw.Segment(ref))
	assert.Nil(t, nw.Node(c))
	assert.Equal(t, 2, nw.CountJunctionArms(a))
	assert.True(t, nw.FormsJunctionWith(d, a))
	assertRing(t, nw, a)
	assertRing(t, nw, d)

	assert.ErrorIs(t, nw.DiscardSegment(ref), ErrStaleRef)
	assert.ErrorIs(t, nw.ConnectNodes(a, c), ErrStaleRef)
	assert.ErrorIs(t, nw.DissolveJunction(c), ErrStaleRef)

	// Released slots are reused with a new generation.
	s3 := nw.CreateSegment(b)
	assert.Nil(t, nw.Segment(ref))
	assert.Equal(t, 3, s3.ID)

	loop := addSegment(nw, b, circle(6, 1))
	require.NoError(t, nw.ConnectNodes(loop.Nodes[0], loop.Nodes[1]))
	require.True(t, nw.IsClosedLoop(loop.Ref()))
	require.NoError(t, nw.DiscardSegment(loop.Ref()))
	assert.Len(t, nw.Segments(), 3)
}

func TestClosedAndInfiniteLines(t *testing.T) {
	nw, b := newTestNetwork()
	loop := addSegment(nw, b, circle(8, 2))
	line := addSegment(nw, b, collinear(5))
	require.NoError(t, nw.ConnectNodes(loop.Nodes[0], loop.Nodes[1]))
	require.NoError(t, nw.ConnectNodes(line.Nodes[0], line.Nodes[1]))

	assert.True(t, nw.IsClosedLoop(loop.Ref()))
	assert.False(t, nw.IsInfiniteLine(loop.Ref()))
	assert.True(t, nw.IsClosedLoop(line.Ref()))
	assert.True(t, nw.IsInfiniteLine(line.Ref()))

	other := addSegment(nw, b, collinear(2))
	require.NoError(t, nw.ConnectNodes(line.Nodes[0], other.Nodes[0]))
	assert.False(t, nw.IsClosedLoop(line.Ref()))
	assert.False(t, nw.IsInfiniteLine(line.Ref()))
}

func TestClone(t *testing.T) {
	nw, b := newTestNetwork()
	s0 := addSegment(nw, b, collinear(4))
	s1 := addSegment(nw, b, collinear(4))
	require.NoError(t, nw.ConnectNodes(s0.Nodes[1], s1.Nodes[0]))

	c := nw.Clone()
	assert.Same(t, nw.ClusterGraph(), c.ClusterGraph())
	require.Len(t, c.Segments(), 2)
	cs0 := c.Segment(s0.Ref())
	require.NotNil(t, cs0)
	assert.NotSame(t, s0, cs0)
	assert.Equal(t, s0.Line, cs0.Line)
	assert.True(t, c.FormsJunctionWith(s0.Nodes[1], s1.Nodes[0]))

	cs0.Line[0] = r3.Vec{X: -1}
	require.NoError(t, c.DissolveJunction(s0.Nodes[1]))
	c.CreateSegment(b)
	assert.Equal(t, r3.Vec{}, s0.Line[0])
	assert.True(t, nw.FormsJunctionWith(s0.Nodes[1], s1.Nodes[0]))
	assert.Len(t, nw.Segments(), 2)
	assert.Len(t, c.Segments(), 3)
}

func TestSmoothDisabled(t *testing.T) {
	nw, b := newTestNetwork()
	seg := addSegment(nw, b, collinear(10))
	want := append([]r3.Vec(nil), seg.Line...)
	require.True(t, nw.SmoothDislocationLines(task.New(context.Background()), 0, 0))
	assert.Equal(t, want, seg.Line)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, seg.CoreSize)
}

func TestSmoothCoarsenCollinear(t *testing.T) {
	nw, b := newTestNetwork()
	seg := addSegment(nw, b, collinear(10))
	require.True(t, nw.SmoothDislocationLines(nil, 0, 100))
	require.GreaterOrEqual(t, len(seg.Line), 2)
	assert.Less(t, len(seg.Line), 10)
	assert.Len(t, seg.CoreSize, len(seg.Line))
	assert.Equal(t, r3.Vec{}, seg.Line[0])
	assert.Equal(t, r3.Vec{X: 9}, seg.Line[len(seg.Line)-1])
	for _, p := range seg.Line[1 : len(seg.Line)-1] {
		assert.Zero(t, p.Y)
		assert.Zero(t, p.Z)
		assert.Greater(t, p.X, 0.0)
		assert.Less(t, p.X, 9.0)
	}
}

func TestSmoothClosedLoop(t *testing.T) {
	nw, b := newTestNetwork()
	seg := addSegment(nw, b, circle(12, 3))
	require.NoError(t, nw.ConnectNodes(seg.Nodes[0], seg.Nodes[1]))
	before := append([]r3.Vec(nil), seg.Line...)

	require.True(t, nw.SmoothDislocationLines(nil, 3, 0))
	assert.True(t, nw.IsClosedLoop(seg.Ref()))
	assert.Equal(t, seg.Line[0], seg.Line[len(seg.Line)-1])
	assert.Len(t, seg.Line, len(before))
	assert.NotEqual(t, before, seg.Line)
}

func TestSmoothCanceled(t *testing.T) {
	nw, b := newTestNetwork()
	for i := 0; i < 4; i++ {
		addSegment(nw, b, collinear(10))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var tk *task.Task
	tk = task.New(ctx, task.WithProgress(func(float64) {
		if tk.Value() >= 2 {
			cancel()
		}
	}))

	assert.False(t, nw.SmoothDislocationLines(tk, 0, 100))
	segs := nw.Segments()
	assert.Less(t, len(segs[0].Line), 10)
	assert.Less(t, len(segs[1].Line), 10)
	assert.Len(t, segs[2].Line, 10)
	assert.Len(t, segs[3].Line, 10)

	// A task canceled up front leaves everything untouched.
	assert.False(t, nw.SmoothDislocationLines(tk, 0, 100))
	assert.Len(t, segs[2].Line, 10)
}
