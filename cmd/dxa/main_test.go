package main

import (
	"math/rand"
	"testing"

	"github.com/soypat/dxa/cluster"
	"github.com/soypat/dxa/dislocation"
	"github.com/soypat/dxa/simcell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestFCCCrystal(t *testing.T) {
	atoms, cell := fccCrystal(3, 0)
	assert.Len(t, atoms, 4*27)
	assert.InDelta(t, 27*fccLatticeConstant*fccLatticeConstant*fccLatticeConstant, cell.Volume(), 1e-9)

	holed, _ := fccCrystal(3, fccLatticeConstant)
	assert.Less(t, len(holed), len(atoms))
}

func TestNoisyLoopBuildsClosedLoop(t *testing.T) {
	cell := simcell.Orthorhombic(r3.Vec{X: 60, Y: 60, Z: 60}, [3]bool{true, true, true})
	graph := cluster.NewGraph()
	graph.CreateCluster(1, nil)
	g := noisyLoop(cell, 20, 200, rand.New(rand.NewSource(3)))
	nw, err := dislocation.BuildFromEdges(cell, graph, g)
	require.NoError(t, err)
	require.Len(t, nw.Segments(), 1)
	seg := nw.Segments()[0]
	assert.True(t, nw.IsClosedLoop(seg.Ref()))
	assert.Greater(t, seg.Length(), 2*3.14*20*0.9)
}
