// Package dislocation implements the dislocation line network: segments with
// Burgers vectors joined at junctions, and the post-processing of their lines.
package dislocation

import (
	"slices"

	"github.com/soypat/dxa/cluster"
	"github.com/soypat/dxa/internal/d3"
	"github.com/soypat/dxa/task"
	"go.uber.org/zap"
)

// Network owns the nodes and segments of a dislocation network.
// Pointers returned by Segments and Segment remain valid until the segment
// is discarded.
type Network struct {
	graph    *cluster.Graph
	segments []*Segment
	nodePool pool[Node]
	segPool  pool[Segment]
	nextID   int
	log      *zap.Logger
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger used for post-processing diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(nw *Network) { nw.log = log }
}

// NewNetwork returns an empty network whose Burgers vectors live in the
// frames of graph. The graph is shared and must not be modified afterwards.
func NewNetwork(graph *cluster.Graph, opts ...Option) *Network {
	nw := &Network{graph: graph, log: zap.NewNop()}
	for _, opt := range opts {
		opt(nw)
	}
	return nw
}

// ClusterGraph returns the cluster graph shared by the network.
func (nw *Network) ClusterGraph() *cluster.Graph { return nw.graph }

// Segments returns the live segments in creation order. The slice must not be modified.
func (nw *Network) Segments() []*Segment { return nw.segments }

// Segment returns the segment addressed by r or nil if r is stale.
func (nw *Network) Segment(r SegmentRef) *Segment { return nw.segPool.get(handle(r)) }

func (nw *Network) mustSegment(r SegmentRef) *Segment {
	s := nw.segPool.get(handle(r))
	if s == nil {
		panic("bug: stale dislocation segment reference")
	}
	return s
}

// CreateSegment allocates a segment with two dangling nodes and appends it to
// the network. The caller fills in Line and CoreSize.
// It panics if b is the zero vector.
func (nw *Network) CreateSegment(b cluster.Vector) *Segment {
	if b.IsZero() {
		panic("bug: dislocation segment with zero Burgers vector")
	}
	fwdRef, fwd := nw.nodePool.alloc()
	bwdRef, bwd := nw.nodePool.alloc()
	sref, seg := nw.segPool.alloc()
	*seg = Segment{
		ID:      nw.nextID,
		Burgers: b,
		Nodes:   [2]NodeRef{NodeRef(fwdRef), NodeRef(bwdRef)},
		ref:     SegmentRef(sref),
	}
	*fwd = Node{segment: seg.ref, opposite: NodeRef(bwdRef), junction: NodeRef(fwdRef)}
	*bwd = Node{segment: seg.ref, opposite: NodeRef(fwdRef), junction: NodeRef(bwdRef)}
	nw.nextID++
	nw.segments = append(nw.segments, seg)
	return seg
}

// DiscardSegment removes the segment from the network. Its nodes are first
// detached from their junctions, so the remaining arms stay joined, and the
// storage is released so that later use of r or its node references is detected.
func (nw *Network) DiscardSegment(r SegmentRef) error {
	seg := nw.Segment(r)
	if seg == nil {
		return ErrStaleRef
	}
	nodes := seg.Nodes
	nw.detachNode(nodes[0])
	nw.detachNode(nodes[1])
	i := slices.Index(nw.segments, seg)
	if i < 0 {
		panic("bug: live segment missing from segment list")
	}
	nw.segments = slices.Delete(nw.segments, i, i+1)
	nw.nodePool.release(handle(nodes[0]))
	nw.nodePool.release(handle(nodes[1]))
	nw.segPool.release(handle(r))
	return nil
}

// IsClosedLoop reports whether the two nodes of the segment form a
// two-arm junction with each other.
func (nw *Network) IsClosedLoop(r SegmentRef) bool {
	seg := nw.mustSegment(r)
	n0, n1 := nw.mustNode(seg.Nodes[0]), nw.mustNode(seg.Nodes[1])
	return n0.junction == seg.Nodes[1] && n1.junction == seg.Nodes[0]
}

// IsInfiniteLine reports whether the segment is a closed loop whose end
// points do not coincide, i.e. a line passing through a periodic boundary.
func (nw *Network) IsInfiniteLine(r SegmentRef) bool {
	if !nw.IsClosedLoop(r) {
		return false
	}
	line := nw.mustSegment(r).Line
	return len(line) > 0 && !d3.EqualWithin(line[0], line[len(line)-1], AtomVectorEpsilon)
}

// Clone returns a deep copy of the network sharing the cluster graph.
// References of the original are valid in the copy.
func (nw *Network) Clone() *Network {
	c := &Network{
		graph:    nw.graph,
		segments: make([]*Segment, len(nw.segments)),
		nodePool: nw.nodePool.clone(),
		segPool:  nw.segPool.clone(),
		nextID:   nw.nextID,
		log:      nw.log,
	}
	for i, seg := range nw.segments {
		cs := c.segPool.get(handle(seg.ref))
		cs.Line = slices.Clone(seg.Line)
		cs.CoreSize = slices.Clone(seg.CoreSize)
		c.segments[i] = cs
	}
	return c
}

// SmoothDislocationLines coarsens and then smooths the line of every segment.
// Segments without core size information are left untouched.
// It returns false if t was canceled, in which case segments processed before
// the cancellation keep their new lines.
func (nw *Network) SmoothDislocationLines(t *task.Task, lineSmoothingLevel int, linePointInterval float64) bool {
	t.SetMaximum(len(nw.segments))
	before, after := 0, 0
	for i, seg := range nw.segments {
		if !t.SetValue(i) {
			nw.log.Debug("line smoothing canceled", zap.Int("processed", i), zap.Int("segments", len(nw.segments)))
			return false
		}
		if len(seg.CoreSize) == 0 {
			continue
		}
		closed := nw.IsClosedLoop(seg.ref)
		infinite := closed && !d3.EqualWithin(seg.Line[0], seg.Line[len(seg.Line)-1], AtomVectorEpsilon)
		line, coreSize := CoarsenLine(linePointInterval, seg.Line, seg.CoreSize, closed, infinite)
		SmoothLine(lineSmoothingLevel, line, closed)
		before += len(seg.Line)
		after += len(line)
		seg.Line, seg.CoreSize = line, coreSize
	}
	nw.log.Debug("smoothed dislocation lines",
		zap.Int("segments", len(nw.segments)),
		zap.Int("pointsBefore", before),
		zap.Int("pointsAfter", after),
	)
	return t.SetValue(len(nw.segments))
}
