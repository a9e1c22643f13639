package dislocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGenerations(t *testing.T) {
	var p pool[int]
	assert.Nil(t, p.get(handle{}))

	h1, v1 := p.alloc()
	*v1 = 7
	require.NotNil(t, p.get(h1))
	assert.Equal(t, 7, *p.get(h1))

	require.True(t, p.release(h1))
	assert.False(t, p.release(h1))
	assert.Nil(t, p.get(h1))

	h2, v2 := p.alloc()
	assert.Equal(t, h1.index, h2.index)
	assert.NotEqual(t, h1.gen, h2.gen)
	assert.Zero(t, *v2)
	assert.Nil(t, p.get(h1))
	assert.Equal(t, 1, p.live)
}

func TestPoolStablePointers(t *testing.T) {
	var p pool[int]
	first, ptr := p.alloc()
	*ptr = 42
	for i := 0; i < 3*pageSize; i++ {
		p.alloc()
	}
	assert.Same(t, ptr, p.get(first))
	assert.Len(t, p.pages, 4)

	c := p.clone()
	assert.Equal(t, 42, *c.get(first))
	*c.get(first) = 1
	assert.Equal(t, 42, *p.get(first))
}
