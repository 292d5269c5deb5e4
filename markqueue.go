package conservgc

import "sync/atomic"

// atomicRing is the mark queue: a bounded, single-shared,
// multi-producer-multi-consumer ring. Producers reserve a
// slot with an atomic increment of producerHead, write into it, then
// publish it by advancing consumerHead with a CAS-until-matched loop so
// consumers only ever observe a contiguous, fully-written prefix.
// Consumers claim a slot to drain by CAS'ing queueTail forward.
//
// Adapted from the index-arithmetic shape of catrate's ringBuffer (see
// DESIGN.md), generalized from sequential mutation under a single mutex
// to lock-free atomic counters, since this ring is shared by every
// participant of a concurrent mark phase rather than owned by one
// goroutine.
type atomicRing struct {
	buf  []Ptr
	mask uint64

	producerHead atomic.Uint64
	consumerHead atomic.Uint64 // one past the highest index whose write has been published
	queueTail    atomic.Uint64 // next index a consumer will claim
}

func (q *atomicRing) init(capacity uint32) {
	q.buf = make([]Ptr, capacity)
	q.mask = uint64(capacity) - 1
}

// tryPush attempts to enqueue p, returning false if the ring is full, at
// which point the caller falls back to recursive synchronous marking on
// its own stack.
func (q *atomicRing) tryPush(p Ptr) bool {
	for {
		head := q.producerHead.Load()
		if head-q.queueTail.Load() >= uint64(len(q.buf)) {
			return false
		}
		if q.producerHead.CompareAndSwap(head, head+1) {
			q.buf[head&q.mask] = p
			for !q.consumerHead.CompareAndSwap(head, head+1) {
				// wait for producers that reserved earlier slots to
				// publish first, so consumers see a contiguous prefix.
			}
			return true
		}
	}
}

// pop claims and returns one pointer, or (Null, false) if the queue is
// currently empty.
func (q *atomicRing) pop() (Ptr, bool) {
	for {
		tail := q.queueTail.Load()
		if tail >= q.consumerHead.Load() {
			return Null, false
		}
		if q.queueTail.CompareAndSwap(tail, tail+1) {
			return q.buf[tail&q.mask], true
		}
	}
}

// reset drops all queued entries, for use between collection cycles.
func (q *atomicRing) reset() {
	q.producerHead.Store(0)
	q.consumerHead.Store(0)
	q.queueTail.Store(0)
}
