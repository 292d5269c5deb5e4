package conservgc

// Malloc allocates n bytes and returns an 8-byte-aligned Ptr, or (Null,
// false) on OOM. Must be called within fence when Config.Fenced.
func (h *Heap) Malloc(fence *Fence, n int) (Ptr, bool) {
	h.requireFenced(fence)

	h.allocLock.Lock()
	defer h.allocLock.Unlock()

	p, ok := h.arena.Allocate(n)
	if !ok {
		h.log.Warning().Int("requested", n).Log("malloc: out of memory")
		return Null, false
	}
	h.table.insert(p, false, false)
	return p, true
}

// MallocRoot allocates n bytes and immediately registers the result as a
// root.
func (h *Heap) MallocRoot(fence *Fence, n int) (Ptr, bool) {
	p, ok := h.Malloc(fence, n)
	if !ok {
		return Null, false
	}
	h.MakeRoot(fence, p)
	return p, true
}

// MallocLeaf allocates n bytes and marks the result as a leaf.
func (h *Heap) MallocLeaf(fence *Fence, n int) (Ptr, bool) {
	p, ok := h.Malloc(fence, n)
	if !ok {
		return Null, false
	}
	h.MakeLeaf(fence, p)
	return p, true
}

// Free releases p. A no-op on Null or an unknown pointer.
func (h *Heap) Free(fence *Fence, p Ptr) {
	h.requireFenced(fence)
	if p == Null {
		return
	}

	h.allocLock.Lock()
	defer h.allocLock.Unlock()

	idx, ok := h.table.find(p)
	if !ok {
		return
	}

	h.roots.remove(p)
	h.finalizer.markRun(p)
	h.table.free(idx)
	h.arena.Free(p)

	// Single-object frees happen outside a sweep's batch, so (unlike
	// sweep.go, which defers this to once per cycle) it is safe and
	// correct to check immediately after each one.
	h.table.maybeShrink()
}

// MakeRoot registers p as a root. Idempotent, O(1) expected.
func (h *Heap) MakeRoot(fence *Fence, p Ptr) {
	h.requireFenced(fence)
	if p == Null {
		return
	}
	h.allocLock.Lock()
	defer h.allocLock.Unlock()
	h.roots.add(p)
}

// UnmakeRoot removes p from the roots set. Idempotent.
func (h *Heap) UnmakeRoot(fence *Fence, p Ptr) {
	h.requireFenced(fence)
	h.allocLock.Lock()
	defer h.allocLock.Unlock()
	h.roots.remove(p)
}

// MakeLeaf sets the LEAF flag on p's slot. A no-op on an unknown p.
func (h *Heap) MakeLeaf(fence *Fence, p Ptr) {
	h.requireFenced(fence)
	h.allocLock.Lock()
	defer h.allocLock.Unlock()
	if idx, ok := h.table.find(p); ok {
		h.table.setFlag(idx, flagLeaf, true)
	}
}

// UnmakeLeaf clears the LEAF flag on p's slot. A no-op on an unknown p.
func (h *Heap) UnmakeLeaf(fence *Fence, p Ptr) {
	h.requireFenced(fence)
	h.allocLock.Lock()
	defer h.allocLock.Unlock()
	if idx, ok := h.table.find(p); ok {
		h.table.setFlag(idx, flagLeaf, false)
	}
}

// RegisterFinalizer attaches fn to p, updating any existing registration.
// A no-op if p is unknown.
func (h *Heap) RegisterFinalizer(fence *Fence, p Ptr, fn FinalizerFunc) {
	h.requireFenced(fence)
	h.allocLock.Lock()
	defer h.allocLock.Unlock()

	idx, ok := h.table.find(p)
	if !ok {
		return
	}
	if isNew := h.finalizer.register(p, fn); isNew {
		h.table.setFlag(idx, flagFinalizer, true)
	}
}

// WriteWord stores v at p, for a mutator building up an allocation's
// contents (e.g. a pointer field the mark engine will later conservatively
// scan). p need not itself be a tracked base; it is any in-bounds arena
// address.
func (h *Heap) WriteWord(p Ptr, v uint32) {
	h.arena.WriteWord(p, v)
}

// ReadWord reads the word at p.
func (h *Heap) ReadWord(p Ptr) uint32 {
	return h.arena.ReadWord(p)
}

// Bytes returns a mutable view of n bytes of an allocation's contents,
// for a mutator that wants more than word-at-a-time access.
func (h *Heap) Bytes(p Ptr, n uint32) []byte {
	return h.arena.Bytes(p, n)
}

// IsPtr reports whether p is currently a live allocation's base address.
func (h *Heap) IsPtr(p Ptr) bool {
	h.allocLock.Lock()
	defer h.allocLock.Unlock()
	_, ok := h.table.find(p)
	return ok
}

// EnterFenceCB runs fn inside fence, returning its result, guaranteeing
// fence.Exit runs even if fn panics.
func EnterFenceCB[T any](fence *Fence, fn func() T) T {
	fence.Enter()
	defer fence.Exit()
	return fn()
}

// Participate yields fence's goroutine into an in-progress collection, if
// any.
func (h *Heap) Participate(fence *Fence) {
	fence.Participate()
}
