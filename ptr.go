package conservgc

// looksLikePtr is the conservative pointer-validity predicate: an
// aligned, in-bounds address is cheap to rule in or out before ever
// touching the allocation index.
func (h *Heap) looksLikePtr(v uint32) bool {
	if v&7 != 0 {
		return false
	}
	base := uint32(h.arena.Base())
	size := uint32(h.arena.HeapSize())
	return v-base < size-base
}

// looksLikePtrBatch applies looksLikePtr to four words at once. There is
// no portable 128-bit vector type in Go; Config.SIMD selects this
// batched-but-scalar implementation of the same algorithm shape (subtract
// base, compare unsigned-less-than, AND the alignment mask) rather than a
// true vector instruction, so the two code paths are behaviorally, not
// just numerically, identical.
func (h *Heap) looksLikePtrBatch(words [4]uint32) (mask uint8) {
	base := uint32(h.arena.Base())
	size := uint32(h.arena.HeapSize())
	for i, w := range words {
		if w&7 == 0 && w-base < size-base {
			mask |= 1 << uint(i)
		}
	}
	return mask
}
