package dislocation

import (
	"fmt"

	"github.com/soypat/dxa/cluster"
	"github.com/soypat/dxa/simcell"
	"gonum.org/v1/gonum/spatial/r3"
)

// defaultCoreSize is the core size assigned to points of lines built from an edge graph.
const defaultCoreSize = 3

// Edge is an undirected dislocation edge between two vertices of an EdgeGraph.
// Burgers is the Burgers vector for the direction V1 to V2 in the frame of the
// cluster with ID Cluster.
type Edge struct {
	V1, V2  int
	Burgers r3.Vec
	Cluster int
}

// EdgeGraph is a graph of short dislocation edges, as produced by an interface
// mesh based line extraction. Vertex positions may be wrapped into the cell.
type EdgeGraph struct {
	Vertices []r3.Vec
	Edges    []Edge
}

// halfEdge 2k runs along edge k from V1 to V2 and 2k+1 runs back.
type halfEdge int

func (h halfEdge) opposite() halfEdge { return h ^ 1 }

// BuildFromEdges converts an edge graph into a dislocation network. Chains of
// vertices with exactly two arms become continuous lines, unwrapped with the
// minimum image convention of cell; chains that return to their start become
// closed loops; lines meeting at vertices with three or more arms are joined
// into junctions.
func BuildFromEdges(cell simcell.Cell, graph *cluster.Graph, g EdgeGraph, opts ...Option) (*Network, error) {
	adjacency := make([][]halfEdge, len(g.Vertices))
	for k, e := range g.Edges {
		if e.V1 < 0 || e.V1 >= len(g.Vertices) || e.V2 < 0 || e.V2 >= len(g.Vertices) {
			return nil, fmt.Errorf("%w: edge %d references missing vertex", ErrInvalidTopology, k)
		}
		if e.V1 == e.V2 {
			return nil, fmt.Errorf("%w: edge %d starts and ends at vertex %d", ErrInvalidTopology, k, e.V1)
		}
		if e.Burgers == (r3.Vec{}) {
			return nil, fmt.Errorf("%w: edge %d has zero Burgers vector", ErrInvalidTopology, k)
		}
		adjacency[e.V1] = append(adjacency[e.V1], halfEdge(2*k))
		adjacency[e.V2] = append(adjacency[e.V2], halfEdge(2*k+1))
	}
	source := func(h halfEdge) int {
		e := g.Edges[h/2]
		if h&1 == 0 {
			return e.V1
		}
		return e.V2
	}
	target := func(h halfEdge) int { return source(h.opposite()) }
	// nextArm returns the arm count at the target of h and the arm leaving it other than h's reverse.
	nextArm := func(h halfEdge) (next halfEdge, arms int) {
		next = -1
		for _, e := range adjacency[target(h)] {
			arms++
			if e != h.opposite() {
				next = e
			}
		}
		return next, arms
	}

	nw := NewNetwork(graph, opts...)
	// visited maps a half-edge to the signed line number (ID+1) it was
	// converted to. Negative values mean the line runs against the half-edge.
	visited := make(map[halfEdge]int)
	for start := halfEdge(0); int(start) < 2*len(g.Edges); start++ {
		if _, ok := visited[start]; ok {
			continue
		}
		e := g.Edges[start/2]
		cl := graph.FindCluster(e.Cluster)
		if cl == nil {
			return nil, fmt.Errorf("%w: edge %d references unknown cluster %d", ErrInvalidTopology, start/2, e.Cluster)
		}
		b := e.Burgers
		if start&1 != 0 {
			b = r3.Scale(-1, b)
		}
		seg := nw.CreateSegment(cluster.NewVector(b, cl))
		id := seg.ID + 1
		seg.AppendPoint(g.Vertices[source(start)], defaultCoreSize)

		// Extend forward until a junction, a dead end or the start is reached.
		for cur := start; ; {
			back := seg.Line[len(seg.Line)-1]
			seg.AppendPoint(r3.Add(back, cell.WrapVector(r3.Sub(g.Vertices[target(cur)], back))), defaultCoreSize)
			visited[cur] = id
			visited[cur.opposite()] = -id
			next, arms := nextArm(cur)
			if arms != 2 {
				break
			}
			if info, ok := visited[next]; ok {
				if info != id {
					return nil, fmt.Errorf("%w: line %d runs into line %d", ErrInvalidTopology, id-1, abs(info)-1)
				}
				if err := nw.ConnectNodes(seg.Nodes[0], seg.Nodes[1]); err != nil {
					return nil, fmt.Errorf("%w: closing loop %d: %v", ErrInvalidTopology, id-1, err)
				}
				break
			}
			cur = next
		}

		// Extend backward from the start vertex.
		for cur := start.opposite(); ; {
			next, arms := nextArm(cur)
			if arms != 2 {
				break
			}
			if info, ok := visited[next]; ok {
				if info != -id {
					return nil, fmt.Errorf("%w: line %d runs into line %d", ErrInvalidTopology, id-1, abs(info)-1)
				}
				break
			}
			cur = next
			front := seg.Line[0]
			seg.PrependPoint(r3.Add(front, cell.WrapVector(r3.Sub(g.Vertices[target(cur)], front))), defaultCoreSize)
			visited[cur] = -id
			visited[cur.opposite()] = id
		}
	}

	// Join lines at vertices with three or more arms.
	for v, arms := range adjacency {
		if len(arms) < 3 {
			continue
		}
		var head NodeRef
		for _, h := range arms {
			info := visited[h]
			var node NodeRef
			if info > 0 {
				node = nw.segments[info-1].Nodes[0]
			} else {
				node = nw.segments[-info-1].Nodes[1]
			}
			if head.IsZero() {
				head = node
				continue
			}
			if err := nw.ConnectNodes(head, node); err != nil {
				return nil, fmt.Errorf("%w: junction at vertex %d: %v", ErrInvalidTopology, v, err)
			}
		}
	}
	return nw, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
