package conservgc

const wordSize = 4 // 32-bit flat memory image: pointer-sized slots are 4 bytes.

// tryMark is the heart of the conservative mark engine: it filters
// obviously-invalid words with looksLikePtr, looks the survivor up in the
// allocation index, and atomically claims the mark bit. A freshly
// marked, non-leaf allocation is either enqueued on the shared ring
// (Config.SharedMemory) or scanned immediately via recursion.
func (h *Heap) tryMark(candidate uint32) {
	if !h.looksLikePtr(candidate) {
		return
	}
	h.markValid(Ptr(candidate))
}

// markValid is tryMark's body, for callers (the SIMD batch path) that
// have already proven candidate passes looksLikePtr.
func (h *Heap) markValid(p Ptr) {
	idx, ok := h.table.find(p)
	if !ok {
		return
	}
	if h.table.mark.testAndSet(idx) {
		return // already marked
	}
	if h.table.hasFlag(idx, flagFinalizer) {
		h.numFinalizersMarked.add(1)
	}
	if h.table.hasFlag(idx, flagLeaf) {
		return
	}

	if h.cfg.SharedMemory {
		if h.queue.tryPush(p) {
			return
		}
		// ring full: fall back to synchronous recursive marking on the
		// caller's own goroutine stack.
	}
	h.scanAllocation(p)
}

// scanAllocation conservatively scans the contents of the live allocation
// based at p.
func (h *Heap) scanAllocation(p Ptr) {
	size, ok := h.arena.UsableSize(p)
	if !ok {
		return
	}
	h.scanArenaRange(p, p+Ptr(size))
}

// scanArenaRange conservatively scans [lo, hi) of the arena's backing
// memory, one word at a time (or four at a time under Config.SIMD, using
// a software-batched comparison in place of an actual vector
// instruction — Go has no portable 128-bit vector type).
func (h *Heap) scanArenaRange(lo, hi Ptr) {
	if h.cfg.SIMD {
		addr := lo
		for addr+4*wordSize <= hi {
			var words [4]uint32
			for i := range words {
				words[i] = h.arena.ReadWord(addr + Ptr(i*wordSize))
			}
			mask := h.looksLikePtrBatch(words)
			for mask != 0 {
				i := trailingZero4(mask)
				h.markValid(Ptr(words[i]))
				mask &^= 1 << uint(i)
			}
			addr += 4 * wordSize
		}
		for addr+wordSize <= hi {
			h.tryMark(h.arena.ReadWord(addr))
			addr += wordSize
		}
		return
	}
	for addr := lo; addr+wordSize <= hi; addr += wordSize {
		h.tryMark(h.arena.ReadWord(addr))
	}
}

func trailingZero4(mask uint8) int {
	for i := 0; i < 4; i++ {
		if mask&(1<<uint(i)) != 0 {
			return i
		}
	}
	return 4
}

// markWords conservatively scans an explicit slice of candidate words,
// used for the roots array and a Fence's shadow stack: both live in
// ordinary Go memory rather than the arena, so they are scanned
// value-by-value rather than via scanArenaRange.
func (h *Heap) markWords(words []Ptr) {
	for _, w := range words {
		h.tryMark(uint32(w))
	}
}

// drainQueue is a mark participant's main loop: pop until the ring
// reports empty. Because scanAllocation/tryMark may push more
// work while this goroutine (or another) is draining, callers must only
// treat the queue as finished once every participant has observed it
// empty at the same time (see collect.go's end-of-mark barrier).
func (h *Heap) drainQueue() {
	for {
		p, ok := h.queue.pop()
		if !ok {
			return
		}
		h.scanAllocation(p)
	}
}
