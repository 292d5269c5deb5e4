package conservgc

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTemporarilyLeaveAndReturnToFenceBookkeeping(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	assert.Equal(t, int64(1), h.threadsInFence.load())

	fence.Push(8)
	fence.TemporarilyLeaveFence()

	assert.Equal(t, int64(0), h.threadsInFence.load())
	assert.Len(t, h.orphaned, 1)
	assert.Equal(t, 0, fence.orphanIdx)

	fence.ReturnToFence()

	assert.Equal(t, int64(1), h.threadsInFence.load())
	assert.Len(t, h.orphaned, 0)
	assert.Equal(t, -1, fence.orphanIdx)
}

func TestOrphanedListSwapRemoveFixesUpSurvivorIndex(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})

	f1 := h.NewFence()
	f1.Enter()
	defer f1.Exit()
	f2 := h.NewFence()
	f2.Enter()
	defer f2.Exit()

	f1.TemporarilyLeaveFence()
	f2.TemporarilyLeaveFence()
	assert.Len(t, h.orphaned, 2)
	assert.Equal(t, 0, f1.orphanIdx)
	assert.Equal(t, 1, f2.orphanIdx)

	// Removing the first entry swaps in the last (f2's), which must have
	// its remembered index corrected to 0.
	f1.ReturnToFence()
	assert.Len(t, h.orphaned, 1)
	assert.Equal(t, 0, f2.orphanIdx)

	f2.ReturnToFence()
	assert.Len(t, h.orphaned, 0)
}

func TestWait32ReturnsNotEqualImmediately(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	var v uint32 = 7
	res := fence.Wait32(&v, 9, time.Second)
	assert.Equal(t, WaitNotEqual, res)
}

func TestWait32TimesOut(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	var v uint32 = 7
	res := fence.Wait32(&v, 7, 10*time.Millisecond)
	assert.Equal(t, WaitTimedOut, res)
}

func TestWait32ObservesConcurrentChange(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	var v uint32 = 7
	go func() {
		time.Sleep(5 * time.Millisecond)
		atomic.StoreUint32(&v, 8)
	}()

	res := fence.Wait32(&v, 7, time.Second)
	assert.Equal(t, WaitNotEqual, res)
}

func TestWait32OrphansAboveThreshold(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	var v uint32 = 7
	go func() {
		time.Sleep(5 * time.Millisecond)
		atomic.StoreUint32(&v, 8)
	}()

	// timeout exceeds orphanThreshold, so this wait donates the shadow
	// stack for its duration and un-donates it on return.
	res := fence.Wait32(&v, 7, time.Second)
	assert.Equal(t, WaitNotEqual, res)
	assert.Equal(t, -1, fence.orphanIdx)
	assert.Len(t, h.orphaned, 0)
}

func TestSleepOrphansAboveThreshold(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	fence.Sleep(150 * time.Microsecond)
	assert.Equal(t, -1, fence.orphanIdx)
	assert.Equal(t, int64(1), h.threadsInFence.load())
}

func TestSleepDoesNotOrphanBelowThreshold(t *testing.T) {
	h := New(Config{HeapCapacity: 1 << 16, Fenced: false})
	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	fence.Sleep(10 * time.Microsecond)
	assert.Equal(t, -1, fence.orphanIdx)
	assert.Len(t, h.orphaned, 0)
}
