package conservgc

import (
	"sync"

	"github.com/joeycumines/conservgc/internal/arena"
	"github.com/joeycumines/logiface"
)

// Ptr is an address in the collector's flat heap. The zero value is the
// null pointer and is never returned by a successful allocation.
type Ptr = arena.Addr

// Null is the zero Ptr.
const Null Ptr = arena.NullAddr

// Heap is a single collector instance: an allocation index, a roots set,
// a finalizer map, a mark queue, the fence registry, and the arena they
// all describe allocations within. It is the single per-process state
// object each collector's worth of bookkeeping lives on; nothing here is
// package-level global, so multiple independent Heaps may coexist.
type Heap struct {
	cfg   Config
	arena *arena.Arena
	log   *logiface.Logger[logiface.Event]

	// allocLock is the allocator lock: held around table/used mutation,
	// and around the whole of mark+sweep.
	allocLock sync.Mutex
	table     table
	roots     rootSet
	finalizer finalizerMap

	queue atomicRing

	orphanMu  sync.Mutex
	orphaned  []orphanRange
	collectMu sync.Mutex

	threadsInFence       atomicCounter
	threadsReadyToMark   atomicCounter
	threadsFinished      atomicCounter
	threadsResumed       atomicCounter
	expectedParticipants atomicCounter
	markingRunning       atomicFlag

	numFinalizersMarked atomicCounter

	sweepDone chan struct{} // never set; sweep completion is tracked by sweepSem
	sweepSem  chan struct{} // depth-1 semaphore guarding the background sweep worker

	lastCollectNanos int64
}

// New constructs a Heap with the given configuration.
func New(cfg Config) *Heap {
	cfg = cfg.withDefaults()
	h := &Heap{
		cfg:      cfg,
		arena:    arena.New(cfg.HeapCapacity),
		log:      cfg.logger(),
		sweepSem: make(chan struct{}, 1),
	}
	h.table.init(tableMinMask)
	h.roots.init()
	h.finalizer.init()
	h.queue.init(cfg.MarkQueueCapacity)
	h.sweepSem <- struct{}{} // sweep worker starts idle
	return h
}

// Close waits for any outstanding background sweep to finish. It does not
// free any live allocation; it exists so a long-lived embedder can tear
// down a Heap without leaking the sweep-worker goroutine Collect may have
// spawned.
func (h *Heap) Close() {
	<-h.sweepSem
	h.sweepSem <- struct{}{}
}

// Stats is a point-in-time snapshot of the allocation index's counters,
// for observability.
type Stats struct {
	NumAllocs           uint32
	NumEntries          uint32
	NumFinalizers       uint32
	TableCapacity       uint32
	LastCollectDuration int64 // nanoseconds
}

// Stats returns a snapshot of the collector's counters.
func (h *Heap) Stats() Stats {
	h.allocLock.Lock()
	defer h.allocLock.Unlock()
	return Stats{
		NumAllocs:           h.table.numAllocs,
		NumEntries:          h.table.numEntries,
		NumFinalizers:       h.finalizer.count,
		TableCapacity:       h.table.mask + 1,
		LastCollectDuration: h.lastCollectNanos,
	}
}
