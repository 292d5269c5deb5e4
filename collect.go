package conservgc

import (
	"time"

	"github.com/joeycumines/go-eventloop"
)

// Collect runs one full stop-the-world cycle. fence must belong to the
// calling goroutine and be held (depth ≥ 1).
func (h *Heap) Collect(fence *Fence) {
	h.requireFenced(fence)

	// Phase 1: drain previous sweep — acquiring then releasing the
	// semaphore blocks until any outstanding background sweep worker has
	// released it.
	<-h.sweepSem
	h.sweepSem <- struct{}{}

	h.collectMu.Lock()
	defer h.collectMu.Unlock()

	start := time.Now()

	h.queue.reset()
	h.threadsReadyToMark.store(0)
	h.threadsFinished.store(0)
	h.threadsResumed.store(0)
	h.numFinalizersMarked.store(0)
	h.expectedParticipants.store(h.threadsInFence.load())

	// Phase 2: broadcast begin, rendezvous every fenced thread.
	h.markingRunning.set(true)
	h.threadsReadyToMark.add(1)
	spinUntil(func() bool {
		return h.threadsReadyToMark.load() >= h.expectedParticipants.load()
	})

	// Phase 3: acquire the allocator lock — held through mark, and handed
	// off (still held) to the sweep worker below.
	h.allocLock.Lock()

	h.log.Debug().Int("participants", int(h.expectedParticipants.load())).Log("collect: mark phase begin")

	// Phase 4 (mark static data) is always a no-op in this port: there is
	// no portable global-data-segment range to scan; callers register such
	// globals as explicit roots instead.

	// Phase 5: mark own stack (this Fence's shadow stack).
	h.markWords(fence.shadow)

	// Phase 6: mark orphaned stacks.
	h.orphanMu.Lock()
	for _, o := range h.orphaned {
		h.markWords(o.shadow)
	}
	h.orphanMu.Unlock()

	// Phase 7: mark the roots array as a single range.
	h.markWords(h.roots.words())

	// Phase 8: drain the shared mark queue (no-op when not SharedMemory;
	// marking already recursed synchronously in that mode).
	if h.cfg.SharedMemory {
		h.drainQueue()
	}

	// Phase 9: end-of-mark barrier.
	h.threadsFinished.add(1)
	spinUntil(func() bool {
		return h.threadsFinished.load() >= h.expectedParticipants.load()
	})

	// Third rendezvous: every participant must have stopped touching the
	// table/mark bitmap before sweep runs against them.
	h.threadsResumed.add(1)
	spinUntil(func() bool {
		return h.threadsResumed.load() >= h.expectedParticipants.load()
	})

	// Phase 10: clear the running flag; mutators not currently inside
	// Participate are now free to re-enter a fence without rendezvousing.
	h.markingRunning.set(false)

	h.lastCollectNanos = time.Since(start).Nanoseconds()
	h.log.Debug().Int("finalizers_marked", int(h.numFinalizersMarked.load())).Log("collect: mark phase end")

	// Phase 11: delegate sweep. allocLock is still held; ownership passes
	// to whichever goroutine actually runs sweep().
	if h.cfg.SharedMemory {
		<-h.sweepSem
		go func() {
			defer func() { h.allocLock.Unlock(); h.sweepSem <- struct{}{} }()
			h.sweep()
		}()
		return
	}

	defer h.allocLock.Unlock()
	h.sweep()
}

// CollectWhenStackIsEmpty schedules a Collect on loop's next turn, for a
// caller that wants to defer collection until the host event loop is
// otherwise idle rather than forcing one synchronously.
func (h *Heap) CollectWhenStackIsEmpty(fence *Fence, loop *eventloop.Loop) error {
	return loop.Submit(func() {
		h.Collect(fence)
	})
}
