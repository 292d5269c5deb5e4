package conservgc

import "golang.org/x/exp/slices"

// Slot flag bits, OR'd into the low 3 bits of an otherwise 8-byte-aligned
// pointer stored in the table.
const (
	flagFinalizer Ptr = 1
	flagLeaf      Ptr = 2
	flagMask      Ptr = 7

	slotNull  Ptr = 0
	tombstone Ptr = 31 // low 5 bits set; never equal to an 8-aligned address

	tableMinMask uint32 = 127
)

// table is the allocation index: an open-addressed hash of live
// allocations, parallel used/mark bitmaps, and the two scalar counters
// that drive growth/shrink.
type table struct {
	slots      []Ptr
	used       bitset
	mark       atomicBitmap
	mask       uint32
	numAllocs  uint32
	numEntries uint32

	// bases is a sorted index of every live base address, maintained
	// alongside insert/free. It exists for interior.go's PtrBase resolver, a
	// supplementary sorted index of live bases in place of a backward
	// probe-chain walk.
	bases []Ptr
}

func (t *table) init(mask uint32) {
	t.slots = make([]Ptr, mask+1)
	t.used = newBitset(mask + 1)
	t.mark = newAtomicBitmap(mask + 1)
	t.mask = mask
	t.numAllocs = 0
	t.numEntries = 0
}

func (t *table) hash(base Ptr) uint32 {
	return (uint32(base) >> 3) & t.mask
}

// find locates the slot holding base, if any. Sentinels continue the
// probe; a null terminates it.
func (t *table) find(base Ptr) (idx uint32, ok bool) {
	idx = t.hash(base)
	for i := uint32(0); i <= t.mask; i++ {
		v := t.slots[idx]
		if v == slotNull {
			return 0, false
		}
		if v != tombstone && (v&^flagMask) == base {
			return idx, true
		}
		idx = (idx + 1) & t.mask
	}
	return 0, false
}

// findInsertIndex computes an amortized-O(1) insertion point: hash(p) plus
// the run of already-used slots starting there.
func (t *table) findInsertIndex(base Ptr) uint32 {
	start := t.hash(base)
	run := t.used.countTrailingOnes(start)
	return (start + run) & t.mask
}

// insert places an allocation with the given flag bits, growing the table
// first if the load factor requires it.
func (t *table) insert(base Ptr, finalizer, leaf bool) uint32 {
	t.maybeGrow()

	idx := t.findInsertIndex(base)
	v := base
	if finalizer {
		v |= flagFinalizer
	}
	if leaf {
		v |= flagLeaf
	}

	wasNull := t.slots[idx] == slotNull
	t.slots[idx] = v
	t.used.set(idx)
	if wasNull {
		t.numEntries++
	}
	t.numAllocs++

	if i, found := slices.BinarySearch(t.bases, base); !found {
		t.bases = slices.Insert(t.bases, i, base)
	}

	return idx
}

// free removes the allocation at idx, collapsing trailing tombstones back
// to null so probe chains stay tight.
func (t *table) free(idx uint32) {
	assert(t.used.test(idx), "corrupt table: free of unused slot")

	base := t.base(idx)
	if i, found := slices.BinarySearch(t.bases, base); found {
		t.bases = slices.Delete(t.bases, i, i+1)
	}

	t.used.clear(idx)
	t.numAllocs--

	next := (idx + 1) & t.mask
	if t.slots[next] != slotNull {
		t.slots[idx] = tombstone
		return
	}

	j := idx
	t.slots[j] = slotNull
	t.numEntries--
	for {
		var prev uint32
		if j == 0 {
			prev = t.mask
		} else {
			prev = j - 1
		}
		if t.slots[prev] != tombstone {
			break
		}
		t.slots[prev] = slotNull
		t.numEntries--
		j = prev
	}
}

// maybeGrow doubles the table when the entry about to be inserted would
// bring 2*numEntries to mask or beyond, so numEntries never exceeds mask/2.
func (t *table) maybeGrow() {
	if 2*(t.numEntries+1) < t.mask {
		return
	}
	t.resize((t.mask+1)*2 - 1)
}

func (t *table) maybeShrink() {
	if ((8*t.numAllocs) | 127) >= t.mask {
		return
	}
	target := tableMinMask
	for 2*(t.numAllocs+1) >= target {
		target = (target+1)*2 - 1
	}
	t.resize(target)
}

// resize rebuilds the table at newMask, re-inserting every live entry via
// findInsertIndex. The mark bitmap is always reallocated (and thus
// zeroed) alongside it; callers that resize outside of a sweep must zero
// it again themselves if that coupling isn't what they want.
func (t *table) resize(newMask uint32) {
	old := t.slots
	oldUsed := t.used

	t.slots = make([]Ptr, newMask+1)
	t.used = newBitset(newMask + 1)
	t.mark = newAtomicBitmap(newMask + 1)
	t.mask = newMask
	t.numEntries = 0
	// numAllocs is unchanged by a resize.

	for i := uint32(0); i < uint32(len(old)); i++ {
		if !oldUsed.test(i) {
			continue
		}
		base := old[i] &^ flagMask
		flags := old[i] & flagMask
		idx := t.findInsertIndex(base)
		t.slots[idx] = base | flags
		t.used.set(idx)
		t.numEntries++
	}
}

// setFlag toggles a flag bit in place. idx must be a slot index returned
// by find; there is no range check. Callers such as MakeLeaf/UnmakeLeaf
// skip a foreign pointer before reaching here.
func (t *table) setFlag(idx uint32, flag Ptr, on bool) {
	if on {
		t.slots[idx] |= flag
	} else {
		t.slots[idx] &^= flag
	}
}

func (t *table) hasFlag(idx uint32, flag Ptr) bool {
	return t.slots[idx]&flag != 0
}

func (t *table) base(idx uint32) Ptr {
	return t.slots[idx] &^ flagMask
}
