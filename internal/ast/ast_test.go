package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocIncreasingIndices(t *testing.T) {
	p := NewPool()
	var last NodeIndex
	for i := 0; i < 100; i++ {
		idx, err := p.Alloc(KindNumber, NumberPayload{Value: int64(i)})
		require.NoError(t, err)
		require.Greater(t, idx, last)
		last = idx
	}
	assert.Equal(t, 101, p.Len()) // 100 allocs plus the reserved root slot
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool()
	for i := 0; i < MaxNodes-1; i++ {
		_, err := p.Alloc(KindNumber, NumberPayload{})
		require.NoError(t, err)
	}
	_, err := p.Alloc(KindNumber, NumberPayload{})
	require.ErrorIs(t, err, ErrPoolExhausted)
}

func TestPoolGetOutOfRangePanics(t *testing.T) {
	p := NewPool()
	assert.Panics(t, func() { p.Get(NodeIndex(5)) })
}

func TestSiblingsTerminateAtZero(t *testing.T) {
	p := NewPool()
	a, _ := p.Alloc(KindNumber, NumberPayload{Value: 1})
	b, _ := p.Alloc(KindNumber, NumberPayload{Value: 2})
	c, _ := p.Alloc(KindNumber, NumberPayload{Value: 3})
	p.SetSibling(a, b)
	p.SetSibling(b, c)

	assert.Equal(t, []NodeIndex{a, b, c}, p.Siblings(a))
	assert.Nil(t, p.Siblings(InvalidNode))
}

func TestSiblingsDefendAgainstBackwardLinks(t *testing.T) {
	// A sibling link that does not strictly increase is treated as
	// end-of-chain, so a malformed self-loop cannot hang the walk.
	p := NewPool()
	a, _ := p.Alloc(KindNumber, NumberPayload{})
	b, _ := p.Alloc(KindNumber, NumberPayload{})
	p.SetSibling(a, b)
	p.SetSibling(b, a) // backward

	assert.Equal(t, []NodeIndex{a, b}, p.Siblings(a))
}

func TestSetPayloadKeepsKindAndSibling(t *testing.T) {
	p := NewPool()
	a, _ := p.Alloc(KindNumber, NumberPayload{Value: 1})
	b, _ := p.Alloc(KindNumber, NumberPayload{Value: 2})
	p.SetSibling(a, b)
	p.SetPayload(a, NumberPayload{Value: 9})

	n := p.Get(a)
	assert.Equal(t, KindNumber, n.Kind)
	assert.Equal(t, b, n.Sibling)
	assert.Equal(t, NumberPayload{Value: 9}, n.Payload)
}

func TestStringPoolNULTermination(t *testing.T) {
	sp := NewStringPool()
	off1, len1 := sp.Put("hello")
	off2, len2 := sp.Put("x")

	assert.Equal(t, "hello", sp.Get(off1, len1))
	assert.Equal(t, "x", sp.Get(off2, len2))
	// Each entry is followed by a NUL byte the length excludes.
	assert.Equal(t, byte(0), sp.Bytes()[off1+len1])
	assert.Equal(t, byte(0), sp.Bytes()[off2+len2])
	assert.Equal(t, uint32(6), off2)
}
