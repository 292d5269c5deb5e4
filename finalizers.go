package conservgc

// FinalizerFunc is invoked with the original (still valid) pointer of an
// allocation that was unreachable at the start of a collection.
type FinalizerFunc func(p Ptr)

type finalizerEntry struct {
	ptr Ptr
	fn  FinalizerFunc
}

// finalizerMap is the secondary open-addressed map from a tracked
// allocation to its registered finalizer. It shares the roots set's
// sentinel convention (0 empty, 1 tombstone/already-run marker on the
// ptr field).
type finalizerMap struct {
	entries []finalizerEntry
	mask    uint32
	count   uint32 // pending (not yet fired) finalizers
}

func (f *finalizerMap) init() {
	f.entries = make([]finalizerEntry, tableMinMask+1)
	f.mask = tableMinMask
}

func (f *finalizerMap) hash(p Ptr) uint32 {
	return (uint32(p) >> 3) & f.mask
}

func (f *finalizerMap) find(p Ptr) (uint32, bool) {
	idx := f.hash(p)
	for i := uint32(0); i <= f.mask; i++ {
		v := f.entries[idx].ptr
		if v == slotNull {
			return 0, false
		}
		if v == p {
			return idx, true
		}
		idx = (idx + 1) & f.mask
	}
	return 0, false
}

// register upserts a finalizer for p. Returns true if this is a new
// registration (the caller must OR the FINALIZER flag into the table).
func (f *finalizerMap) register(p Ptr, fn FinalizerFunc) (isNew bool) {
	if idx, ok := f.find(p); ok {
		f.entries[idx].fn = fn
		return false
	}

	if 2*(f.count+1) >= f.mask {
		f.grow()
	}

	idx := f.hash(p)
	var firstTombstone uint32
	haveTombstone := false
	for {
		v := f.entries[idx].ptr
		if v == slotNull {
			if haveTombstone {
				idx = firstTombstone
			}
			f.entries[idx] = finalizerEntry{ptr: p, fn: fn}
			f.count++
			return true
		}
		if v == rootTombstone && !haveTombstone {
			firstTombstone = idx
			haveTombstone = true
		}
		idx = (idx + 1) & f.mask
	}
}

// funcFor returns the registered finalizer for p, or nil.
func (f *finalizerMap) funcFor(p Ptr) FinalizerFunc {
	idx, ok := f.find(p)
	if !ok {
		return nil
	}
	return f.entries[idx].fn
}

// markRun marks p's entry as already-run (ptr←1), clearing the pending
// count.
func (f *finalizerMap) markRun(p Ptr) {
	idx, ok := f.find(p)
	if !ok {
		return
	}
	f.entries[idx].ptr = rootTombstone
	f.entries[idx].fn = nil
	f.count--
}

func (f *finalizerMap) grow() {
	old := f.entries
	f.entries = make([]finalizerEntry, (f.mask+1)*2)
	f.mask = uint32(len(f.entries)) - 1
	f.count = 0
	for _, e := range old {
		if e.ptr == slotNull || e.ptr == rootTombstone {
			continue
		}
		f.register(e.ptr, e.fn)
	}
}
