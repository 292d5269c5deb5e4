package conservgc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMallocFreeRoundTrip(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	p, ok := h.Malloc(fence, 32)
	require.True(t, ok)
	assert.True(t, h.IsPtr(p))

	h.Free(fence, p)
	assert.False(t, h.IsPtr(p))
}

func TestFreeOfNullAndUnknownPointerIsNoop(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	assert.NotPanics(t, func() { h.Free(fence, Null) })
	assert.NotPanics(t, func() { h.Free(fence, Ptr(0xDEADBEEF)) })
}

func TestMallocRootRegistersRoot(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	p, ok := h.MallocRoot(fence, 32)
	require.True(t, ok)

	_, inRoots := h.roots.find(p)
	assert.True(t, inRoots)

	h.UnmakeRoot(fence, p)
	_, inRoots = h.roots.find(p)
	assert.False(t, inRoots)
}

func TestMallocLeafSetsLeafFlag(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	p, ok := h.MallocLeaf(fence, 32)
	require.True(t, ok)

	idx, ok := h.table.find(p)
	require.True(t, ok)
	assert.True(t, h.table.hasFlag(idx, flagLeaf))

	h.UnmakeLeaf(fence, p)
	assert.False(t, h.table.hasFlag(idx, flagLeaf))
}

func TestMakeLeafOnUnknownPointerIsNoop(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	assert.NotPanics(t, func() { h.MakeLeaf(fence, Ptr(0xDEADBEEF)) })
}

func TestRegisterFinalizerSetsFlagOnceAndUpdatesFunc(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	p, ok := h.Malloc(fence, 32)
	require.True(t, ok)

	calls := 0
	h.RegisterFinalizer(fence, p, func(Ptr) { calls = 1 })
	h.RegisterFinalizer(fence, p, func(Ptr) { calls = 2 })

	idx, _ := h.table.find(p)
	assert.True(t, h.table.hasFlag(idx, flagFinalizer))
	assert.Equal(t, uint32(1), h.finalizer.count)

	h.finalizer.funcFor(p)(p)
	assert.Equal(t, 2, calls)
}

func TestWriteReadWordAndBytes(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	p, ok := h.Malloc(fence, 32)
	require.True(t, ok)

	h.WriteWord(p, 0xCAFEBABE)
	assert.Equal(t, uint32(0xCAFEBABE), h.ReadWord(p))

	buf := h.Bytes(p, 4)
	assert.Len(t, buf, 4)
}

func TestIsPtrFalseForUnknown(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	assert.False(t, h.IsPtr(Ptr(0xDEADBEEF)))
	assert.False(t, h.IsPtr(Null))
}

func TestStatsReflectsLiveAllocations(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	_, ok := h.Malloc(fence, 32)
	require.True(t, ok)
	_, ok = h.Malloc(fence, 32)
	require.True(t, ok)

	stats := h.Stats()
	assert.Equal(t, uint32(2), stats.NumAllocs)
}
