package conservgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikePtr(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	// raise the high watermark so the base address is in bounds.
	_, ok := h.arena.Allocate(8)
	require.True(t, ok)

	assert.False(t, h.looksLikePtr(uint32(h.arena.Base())+1)) // misaligned
	assert.True(t, h.looksLikePtr(uint32(h.arena.Base())))
	assert.False(t, h.looksLikePtr(uint32(h.arena.Base())+uint32(h.arena.HeapSize())+1000))
}

func TestLooksLikePtrBatch(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})

	base := uint32(h.arena.Base())
	words := [4]uint32{base, base + 1, base + 8, 0xFFFFFFFF}
	mask := h.looksLikePtrBatch(words)

	assert.Equal(t, h.looksLikePtr(words[0]), mask&1 != 0)
	assert.Equal(t, h.looksLikePtr(words[1]), mask&2 != 0)
	assert.Equal(t, h.looksLikePtr(words[2]), mask&4 != 0)
	assert.Equal(t, h.looksLikePtr(words[3]), mask&8 != 0)
}

func TestTryMarkAndScanAllocation(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	outer, ok := h.Malloc(fence, 64)
	require.True(t, ok)
	inner, ok := h.Malloc(fence, 64)
	require.True(t, ok)
	h.WriteWord(outer, uint32(inner))

	h.allocLock.Lock()
	h.tryMark(uint32(outer))
	h.allocLock.Unlock()

	idxOuter, _ := h.table.find(outer)
	idxInner, _ := h.table.find(inner)
	assert.True(t, h.table.mark.test(idxOuter))
	assert.True(t, h.table.mark.test(idxInner), "scanning outer should have marked inner too")
}

func TestTryMarkSkipsLeaf(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	p, ok := h.Malloc(fence, 64)
	require.True(t, ok)
	h.MakeLeaf(fence, p)

	inner, ok := h.Malloc(fence, 64)
	require.True(t, ok)
	h.WriteWord(p, uint32(inner))

	h.allocLock.Lock()
	h.tryMark(uint32(p))
	h.allocLock.Unlock()

	idxInner, _ := h.table.find(inner)
	assert.False(t, h.table.mark.test(idxInner))
}

func TestMarkWords(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	p, ok := h.Malloc(fence, 32)
	require.True(t, ok)

	h.allocLock.Lock()
	h.markWords([]Ptr{p})
	h.allocLock.Unlock()

	idx, _ := h.table.find(p)
	assert.True(t, h.table.mark.test(idx))
}
