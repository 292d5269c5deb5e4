package conservgc

import "golang.org/x/exp/slices"

// PtrBase resolves p to the base of the live allocation containing it, or
// Null if p does not fall within any live allocation's inclusive extent
// [base, base+usable_size(base)].
//
// This uses a sorted live-base index (table.bases) rather than walking the
// hash-table probe chain backward: find the greatest live base ≤ p via
// binary search, then check p falls within its usable size.
func (h *Heap) PtrBase(p Ptr) Ptr {
	h.allocLock.Lock()
	defer h.allocLock.Unlock()

	bases := h.table.bases
	i, found := slices.BinarySearch(bases, p)
	if found {
		return p
	}
	if i == 0 {
		return Null
	}
	base := bases[i-1]

	size, ok := h.arena.UsableSize(base)
	if !ok {
		return Null
	}
	// The upper bound is inclusive: an address exactly one past the last
	// byte of the allocation (e.g. a C "end" iterator) still resolves to
	// the allocation's base.
	if p < base || p > base+Ptr(size) {
		return Null
	}
	return base
}
