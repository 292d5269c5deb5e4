package conservgc

// rootSet is the secondary open-addressed set of explicit roots. Its
// sentinel convention differs from the main table's: null (0) is empty,
// and 1 is the tombstone (no flag bits are ever stored alongside a root,
// so there is no need to reserve a value disjoint from every 8-aligned
// address the way the main table does).
const rootTombstone Ptr = 1

type rootSet struct {
	slots []Ptr
	mask  uint32
	count uint32 // live + tombstones
}

func (r *rootSet) init() {
	r.slots = make([]Ptr, tableMinMask+1)
	r.mask = tableMinMask
}

func (r *rootSet) hash(p Ptr) uint32 {
	return (uint32(p) >> 3) & r.mask
}

func (r *rootSet) find(p Ptr) (uint32, bool) {
	idx := r.hash(p)
	for i := uint32(0); i <= r.mask; i++ {
		v := r.slots[idx]
		if v == slotNull {
			return 0, false
		}
		if v == p {
			return idx, true
		}
		idx = (idx + 1) & r.mask
	}
	return 0, false
}

// add inserts p as a root, idempotently.
func (r *rootSet) add(p Ptr) {
	if _, ok := r.find(p); ok {
		return
	}
	if 2*(r.count+1) >= r.mask {
		r.grow()
	}
	idx := r.hash(p)
	var firstTombstone uint32
	haveTombstone := false
	for {
		v := r.slots[idx]
		if v == slotNull {
			if haveTombstone {
				// reusing a tombstone: it is already counted.
				idx = firstTombstone
			} else {
				r.count++
			}
			r.slots[idx] = p
			return
		}
		if v == rootTombstone && !haveTombstone {
			firstTombstone = idx
			haveTombstone = true
		}
		idx = (idx + 1) & r.mask
	}
}

// remove turns p's slot into a tombstone, idempotently.
func (r *rootSet) remove(p Ptr) {
	idx, ok := r.find(p)
	if !ok {
		return
	}
	r.slots[idx] = rootTombstone
}

func (r *rootSet) grow() {
	old := r.slots
	r.slots = make([]Ptr, (r.mask+1)*2)
	r.mask = uint32(len(r.slots)) - 1
	r.count = 0
	for _, v := range old {
		if v == slotNull || v == rootTombstone {
			continue
		}
		r.add(v)
	}
}

// words returns the root array as a flat slice of candidate pointer
// words, so collect.go can conservatively scan it as a single memory
// range.
func (r *rootSet) words() []Ptr {
	return r.slots
}
