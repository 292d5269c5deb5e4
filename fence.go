package conservgc

import "time"

// Fence is a Go mutator goroutine's managed-access fence: a dynamic scope
// during which a goroutine may safely read and write managed pointers. A
// native thread's fence would capture its current stack pointer and let
// the collector scan raw machine-stack words directly; a goroutine's
// stack is not something Go lets any code inspect conservatively, so a
// Fence instead carries an explicit shadow stack that the mutator
// pushes/pops in place of local pointer variables. Create one per
// goroutine via [Heap.NewFence] and reuse it for that goroutine's
// lifetime; a Fence must not be used from more than one goroutine
// concurrently.
type Fence struct {
	h         *Heap
	depth     int
	shadow    []Ptr
	orphanIdx int // index into h.orphaned while donated, -1 otherwise
}

// NewFence allocates a Fence bound to this Heap.
func (h *Heap) NewFence() *Fence {
	return &Fence{h: h, orphanIdx: -1}
}

// Enter begins (or nests into) a managed-access scope.
func (f *Fence) Enter() {
	if f.depth == 0 {
		f.h.threadsInFence.add(1)
	}
	f.depth++
	f.participateIfRunning()
}

// Exit ends one level of managed-access scope.
func (f *Fence) Exit() {
	assert(f.depth > 0, "fence violation: exit without matching enter")
	f.depth--
	if f.depth == 0 {
		f.h.threadsInFence.add(-1)
	}
}

// EnterCB runs fn inside the fence, guaranteeing Exit runs on every exit
// path, including fn panicking — a scoped acquisition with guaranteed
// release.
func (f *Fence) EnterCB(fn func()) {
	f.Enter()
	defer f.Exit()
	fn()
}

// requireFenced is the fence-violation assertion applied to every
// managed operation when Config.Fenced is set.
func (f *Heap) requireFenced(fence *Fence) {
	if !f.cfg.Fenced {
		return
	}
	assert(fence != nil && fence.depth > 0, "fence violation: managed operation outside a fence")
}

// Push appends p to this Fence's shadow stack, the substitute for storing
// a managed pointer in a local/stack variable.
func (f *Fence) Push(p Ptr) {
	f.shadow = append(f.shadow, p)
}

// Pop removes and returns the most recently pushed shadow-stack entry.
func (f *Fence) Pop() (Ptr, bool) {
	if len(f.shadow) == 0 {
		return Null, false
	}
	p := f.shadow[len(f.shadow)-1]
	f.shadow = f.shadow[:len(f.shadow)-1]
	return p, true
}

// participateIfRunning is called on Enter, so a thread that newly joins
// the fenced set mid-collection does not deadlock the rendezvous it was
// just counted into.
func (f *Fence) participateIfRunning() {
	if f.h.markingRunning.isSet() {
		f.Participate()
	}
}

// Participate yields into an in-progress collection: it rendezvouses
// with every other fenced goroutine, marks its own shadow stack, helps
// drain the shared mark queue, then rendezvouses again before returning.
func (f *Fence) Participate() {
	h := f.h
	if !h.markingRunning.isSet() || f.depth == 0 {
		return
	}

	h.threadsReadyToMark.add(1)
	spinUntil(func() bool {
		return h.threadsReadyToMark.load() >= h.expectedParticipants.load()
	})

	h.markWords(f.shadow)
	if h.cfg.SharedMemory {
		h.drainQueue()
	}

	h.threadsFinished.add(1)
	spinUntil(func() bool {
		return h.threadsFinished.load() >= h.expectedParticipants.load()
	})

	// Signals Collect's third rendezvous: the orchestrator must not hand
	// sweep the table/mark bitmap until every participant is known to
	// have stopped touching them.
	h.threadsResumed.add(1)
}

// spinUntil busy-waits for cond, backing off with short sleeps so the
// rendezvous cooperates with host schedulers rather than monopolizing a
// core.
func spinUntil(cond func() bool) {
	for i := 0; !cond(); i++ {
		if i < 64 {
			continue
		}
		time.Sleep(time.Microsecond)
	}
}
