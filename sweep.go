package conservgc

// sweep runs with allocLock held. If a finalizer is pending it runs
// exactly one and returns without freeing anything (the object is
// implicitly resurrected for this cycle); otherwise it frees every slot
// set in used but not mark, then either shrinks (zeroing the mark
// bitmap as a side effect of resize) or zeros the mark bitmap in place.
func (h *Heap) sweep() {
	if h.runOneFinalizer() {
		return
	}

	var freed []uint32
	usedSnapshot := h.table.used
	markSnapshot := h.table.mark.asBitset()
	andNotIter(&usedSnapshot, &markSnapshot, func(i uint32) {
		freed = append(freed, i)
	})

	for _, idx := range freed {
		base := h.table.base(idx)
		if h.table.hasFlag(idx, flagFinalizer) {
			h.finalizer.markRun(base)
		}
		h.table.free(idx)
		h.arena.Free(base)
	}

	if len(freed) > 0 {
		h.log.Debug().Int("freed", len(freed)).Int("live", int(h.table.numAllocs)).Log("sweep: reclaimed unreachable allocations")
	}

	// checked once, after every slot in this cycle is freed, rather than
	// per-slot: a resize mid-loop would invalidate the remaining indices
	// in freed.
	h.table.maybeShrink()

	// resize (inside maybeShrink) already allocates a fresh, zeroed mark
	// bitmap; zeroing again here is a no-op in that case and required
	// otherwise.
	h.table.mark.zero()
}

// runOneFinalizer fires at most one finalizer per collection, on the
// first unmarked slot that still carries the FINALIZER flag.
func (h *Heap) runOneFinalizer() bool {
	if h.numFinalizersMarked.load() >= int64(h.finalizer.count) {
		return false
	}

	for i := uint32(0); i <= h.table.mask; i++ {
		if !h.table.used.test(i) {
			continue
		}
		if h.table.mark.test(i) {
			continue
		}
		if !h.table.hasFlag(i, flagFinalizer) {
			continue
		}

		base := h.table.base(i)
		h.table.setFlag(i, flagFinalizer, false)

		fn := h.finalizer.funcFor(base)
		h.finalizer.markRun(base)

		if fn != nil {
			h.log.Info().Log("sweep: invoking finalizer, object resurrected for this cycle")
			fn(base)
		}
		return true
	}
	return false
}
