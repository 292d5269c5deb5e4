// Package arena implements the single collaborator the collector assumes
// but does not itself specify: a flat, byte-addressed memory region backed
// by a free-list allocator exposing allocate/free/usable_size, plus a fixed
// base address and a monotonically growing high watermark.
//
// Everything here stands in for "the underlying byte allocator" and "the
// host's 32-bit flat memory image" - out of scope for the collector proper,
// but required to have a runnable system.
package arena

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// Addr is an address in the arena's flat address space. Zero is never a
// valid address: Base is always >= align, so the zero value doubles as a
// null pointer.
type Addr uint32

const align = 8

// NullAddr is the sentinel "no pointer" value.
const NullAddr Addr = 0

type freeBlock struct {
	addr Addr
	size uint32
}

// Arena is a fixed-capacity flat memory region. It never relocates a live
// allocation: Base is fixed at construction, and the backing buffer is
// allocated once, up front, at its maximum capacity.
type Arena struct {
	mu        sync.Mutex
	buf       []byte
	base      Addr
	highWater Addr
	free      []freeBlock
	sizes     map[Addr]uint32
}

// New creates an Arena with the given maximum capacity in bytes.
func New(capacity uint32) *Arena {
	if capacity < align {
		panic(`arena: capacity too small`)
	}
	return &Arena{
		buf:       make([]byte, capacity),
		base:      align,
		highWater: align,
		sizes:     make(map[Addr]uint32),
	}
}

// Base returns the lowest address any allocation may occupy (the heap's
// "low watermark").
func (a *Arena) Base() Addr { return a.base }

// HeapSize returns the current high watermark: the address one past the
// highest byte ever claimed by an allocation or split remainder.
func (a *Arena) HeapSize() Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.highWater
}

func alignUp(n uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// Allocate reserves n bytes, returning the base address of the allocation
// (8-byte aligned) or (0, false) on OOM.
func (a *Arena) Allocate(n int) (Addr, bool) {
	if n <= 0 {
		n = 1
	}
	need := alignUp(uint32(n))

	a.mu.Lock()
	defer a.mu.Unlock()

	// first-fit over the free list, which is kept sorted by address.
	for i, blk := range a.free {
		if blk.size < need {
			continue
		}
		addr := blk.addr
		if rem := blk.size - need; rem >= align {
			a.free[i] = freeBlock{addr: addr + Addr(need), size: rem}
		} else {
			need = blk.size
			a.free = append(a.free[:i], a.free[i+1:]...)
		}
		a.sizes[addr] = need
		return addr, true
	}

	// fall back to bumping the high watermark.
	if uint32(a.highWater)+need > uint32(len(a.buf)) {
		return 0, false
	}
	addr := a.highWater
	a.highWater += Addr(need)
	a.sizes[addr] = need
	return addr, true
}

// Free releases a previously allocated address. Freeing an address this
// arena did not hand out is a programming error in the caller (the
// collector's allocation index guarantees it only ever frees what it
// tracks) and panics.
func (a *Arena) Free(p Addr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	size, ok := a.sizes[p]
	if !ok {
		panic(fmt.Sprintf(`arena: free of untracked address %d`, p))
	}
	delete(a.sizes, p)

	blk := freeBlock{addr: p, size: size}
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].addr >= blk.addr })
	a.free = append(a.free, freeBlock{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = blk

	// coalesce with the following neighbor, then the preceding one.
	if i+1 < len(a.free) && a.free[i].addr+Addr(a.free[i].size) == a.free[i+1].addr {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].addr+Addr(a.free[i-1].size) == a.free[i].addr {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// UsableSize reports the size of the allocation at p, as handed out by
// Allocate (which may be larger than what was requested, due to alignment
// or a larger free block being reused).
func (a *Arena) UsableSize(p Addr) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.sizes[p]
	return n, ok
}

// ReadWord reads the 32-bit word at addr. Callers are expected to hold
// whatever higher-level lock serializes access to the heap (the collector
// never reads words concurrently with a free of the enclosing allocation).
func (a *Arena) ReadWord(addr Addr) uint32 {
	off := uint32(addr)
	if off+4 > uint32(len(a.buf)) {
		return 0
	}
	return binary.LittleEndian.Uint32(a.buf[off : off+4])
}

// WriteWord writes the 32-bit word at addr.
func (a *Arena) WriteWord(addr Addr, v uint32) {
	off := uint32(addr)
	if off+4 > uint32(len(a.buf)) {
		return
	}
	binary.LittleEndian.PutUint32(a.buf[off:off+4], v)
}

// Bytes returns a slice view of n bytes starting at addr, for direct
// mutator access to allocation contents.
func (a *Arena) Bytes(addr Addr, n uint32) []byte {
	off := uint32(addr)
	if off+n > uint32(len(a.buf)) {
		return nil
	}
	return a.buf[off : off+n]
}
