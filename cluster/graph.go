// Package cluster models crystal clusters, the local lattice frames in which
// Burgers vectors are expressed, and the transitions that relate them.
package cluster

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingularTransition is returned when a transition matrix cannot be inverted.
	ErrSingularTransition = errors.New("cluster transition matrix is singular")
	// ErrForeignCluster is returned when a cluster does not belong to the graph.
	ErrForeignCluster = errors.New("cluster belongs to another graph")
)

// Cluster is a group of atoms sharing one crystal lattice frame.
type Cluster struct {
	// ID is unique within the owning graph. Zero is never assigned.
	ID int
	// Structure is the crystal structure type identifier.
	Structure int
	// Orientation maps lattice vectors to spatial vectors.
	Orientation *mat.Dense

	graph       *Graph
	transitions []*Transition
}

// Transitions returns the transitions leaving the cluster.
func (c *Cluster) Transitions() []*Transition { return c.transitions }

// Transition relates the lattice frames of two neighboring clusters.
type Transition struct {
	Cluster1, Cluster2 *Cluster
	// TM maps vectors from the frame of Cluster1 to the frame of Cluster2.
	TM *mat.Dense
	// Reverse is the transition in the opposite direction.
	Reverse *Transition
	// Distance is the number of cluster graph hops this transition spans.
	Distance int
}

// IsSelfTransition reports whether the transition maps a cluster onto itself.
func (t *Transition) IsSelfTransition() bool { return t.Cluster1 == t.Cluster2 }

// Graph is the collection of clusters and their transitions. It is built once
// and treated as read-only afterwards, so it may be shared between networks.
type Graph struct {
	clusters []*Cluster
	byID     map[int]*Cluster
}

// NewGraph returns an empty cluster graph.
func NewGraph() *Graph {
	return &Graph{byID: make(map[int]*Cluster)}
}

// Clusters returns the clusters in creation order.
func (g *Graph) Clusters() []*Cluster { return g.clusters }

// CreateCluster adds a cluster to the graph. A nil orientation means the
// lattice frame coincides with the spatial frame.
func (g *Graph) CreateCluster(structure int, orientation *mat.Dense) *Cluster {
	if orientation == nil {
		orientation = identity()
	} else if r, c := orientation.Dims(); r != 3 || c != 3 {
		panic("cluster orientation must be a 3x3 matrix")
	}
	cl := &Cluster{
		ID:          len(g.clusters) + 1,
		Structure:   structure,
		Orientation: orientation,
		graph:       g,
	}
	g.clusters = append(g.clusters, cl)
	g.byID[cl.ID] = cl
	return cl
}

// FindCluster looks up a cluster by ID. It returns nil if there is none.
func (g *Graph) FindCluster(id int) *Cluster { return g.byID[id] }

// CreateTransition registers a transition from c1 to c2 together with its reverse.
// An existing transition between the two clusters is returned unchanged.
func (g *Graph) CreateTransition(c1, c2 *Cluster, tm *mat.Dense) (*Transition, error) {
	if c1.graph != g || c2.graph != g {
		return nil, ErrForeignCluster
	}
	if t := g.FindTransition(c1, c2); t != nil {
		return t, nil
	}
	var inv mat.Dense
	if err := inv.Inverse(tm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularTransition, err)
	}
	forward := &Transition{Cluster1: c1, Cluster2: c2, TM: mat.DenseCopyOf(tm), Distance: 1}
	if c1 == c2 {
		forward.Distance = 0
		forward.Reverse = forward
		c1.transitions = append(c1.transitions, forward)
		return forward, nil
	}
	reverse := &Transition{Cluster1: c2, Cluster2: c1, TM: &inv, Distance: 1}
	forward.Reverse = reverse
	reverse.Reverse = forward
	c1.transitions = append(c1.transitions, forward)
	c2.transitions = append(c2.transitions, reverse)
	return forward, nil
}

// FindTransition returns the direct transition from c1 to c2, or nil.
func (g *Graph) FindTransition(c1, c2 *Cluster) *Transition {
	for _, t := range c1.transitions {
		if t.Cluster2 == c2 {
			return t
		}
	}
	return nil
}

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
