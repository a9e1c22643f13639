package dislocation

import (
	"github.com/soypat/dxa/cluster"
	"gonum.org/v1/gonum/spatial/r3"
)

// NodeRef is a generation-checked reference to a node of a Network.
type NodeRef handle

// IsZero reports whether r is the zero reference, which never refers to a node.
func (r NodeRef) IsZero() bool { return r.gen == 0 }

// Node is one end of a segment. Nodes meeting at the same physical junction
// form a circular ring; a node whose ring points back to itself is dangling.
type Node struct {
	segment  SegmentRef
	opposite NodeRef
	junction NodeRef
}

// Segment returns the segment the node terminates.
func (n *Node) Segment() SegmentRef { return n.segment }

// Opposite returns the node at the other end of the segment.
func (n *Node) Opposite() NodeRef { return n.opposite }

// Junction returns the next node of the junction ring.
func (n *Node) Junction() NodeRef { return n.junction }

// Node returns the node addressed by r or nil if r is stale.
func (nw *Network) Node(r NodeRef) *Node { return nw.nodePool.get(handle(r)) }

func (nw *Network) mustNode(r NodeRef) *Node {
	n := nw.nodePool.get(handle(r))
	if n == nil {
		panic("bug: stale dislocation node reference")
	}
	return n
}

// IsDangling reports whether the node is not part of any junction.
func (nw *Network) IsDangling(r NodeRef) bool {
	return nw.mustNode(r).junction == r
}

// FormsJunctionWith reports whether other is reachable from r by following
// the junction ring. A node always forms a junction with itself.
func (nw *Network) FormsJunctionWith(r, other NodeRef) bool {
	start := nw.mustNode(r).junction
	n := start
	for {
		if n == other {
			return true
		}
		n = nw.mustNode(n).junction
		if n == start {
			return false
		}
	}
}

// ConnectNodes merges the junctions of a and b into one by swapping their
// ring successors. It fails with ErrAlreadyJoined if a and b already share
// a junction.
func (nw *Network) ConnectNodes(a, b NodeRef) error {
	na, nb := nw.nodePool.get(handle(a)), nw.nodePool.get(handle(b))
	if na == nil || nb == nil {
		return ErrStaleRef
	}
	if nw.FormsJunctionWith(a, b) {
		return ErrAlreadyJoined
	}
	na.junction, nb.junction = nb.junction, na.junction
	return nil
}

// DissolveJunction resets every member of the junction containing r to dangling.
func (nw *Network) DissolveJunction(r NodeRef) error {
	if nw.Node(r) == nil {
		return ErrStaleRef
	}
	cur := r
	for {
		n := nw.mustNode(cur)
		next := n.junction
		n.junction = cur
		if next == r {
			return nil
		}
		cur = next
	}
}

// CountJunctionArms returns the number of nodes in the junction ring of r.
// A dangling node counts as one arm.
func (nw *Network) CountJunctionArms(r NodeRef) int {
	count := 1
	for n := nw.mustNode(r).junction; n != r; n = nw.mustNode(n).junction {
		count++
	}
	return count
}

// detachNode removes r from its junction ring, leaving the other members joined.
func (nw *Network) detachNode(r NodeRef) {
	n := nw.mustNode(r)
	if n.junction == r {
		return
	}
	prev := n.junction
	for {
		p := nw.mustNode(prev)
		if p.junction == r {
			p.junction = n.junction
			break
		}
		prev = p.junction
	}
	n.junction = r
}

// IsForwardNode reports whether r is the head of its segment.
func (nw *Network) IsForwardNode(r NodeRef) bool {
	seg := nw.mustSegment(nw.mustNode(r).segment)
	return seg.Nodes[0] == r
}

// IsBackwardNode reports whether r is the tail of its segment.
func (nw *Network) IsBackwardNode(r NodeRef) bool {
	seg := nw.mustSegment(nw.mustNode(r).segment)
	return seg.Nodes[1] == r
}

// NodePosition returns the line point at the end of the segment terminated by r.
// It returns the zero vector for a segment without points.
func (nw *Network) NodePosition(r NodeRef) r3.Vec {
	seg := nw.mustSegment(nw.mustNode(r).segment)
	if len(seg.Line) == 0 {
		return r3.Vec{}
	}
	if seg.Nodes[1] == r {
		return seg.Line[len(seg.Line)-1]
	}
	return seg.Line[0]
}

// NodeBurgersVector returns the Burgers vector of the segment as seen from r:
// negated for the backward node.
func (nw *Network) NodeBurgersVector(r NodeRef) cluster.Vector {
	seg := nw.mustSegment(nw.mustNode(r).segment)
	if seg.Nodes[1] == r {
		return seg.Burgers.Negate()
	}
	return seg.Burgers
}
