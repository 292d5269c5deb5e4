// Command gcdemo exercises the end-to-end collection scenarios named in
// the collector's testable-properties table, standing in for the test
// harness collaborator the package itself leaves out of scope.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joeycumines/conservgc"
)

func main() {
	h := conservgc.New(conservgc.Config{
		HeapCapacity: 1 << 20,
		Logger:       conservgc.NewSlogLogger(slog.NewTextHandler(os.Stdout, nil)),
	})
	defer h.Close()

	fence := h.NewFence()
	fence.Enter()
	defer fence.Exit()

	scenarioStackSurvives(h, fence)
	scenarioNestedReachability(h, fence)
	scenarioRoot(h, fence)
	scenarioFinalizer(h, fence)
	scenarioLeaf(h, fence)
	scenarioWeak(h, fence)
	scenarioInterior(h, fence)
}

// scenarioStackSurvives is scenario 1: a pointer kept only in the Fence's
// shadow stack survives one collection, then is reclaimed once dropped.
func scenarioStackSurvives(h *conservgc.Heap, fence *conservgc.Fence) {
	p, ok := h.Malloc(fence, 1024)
	must(ok, "malloc")
	fence.Push(p)

	h.Collect(fence)
	report("scenario 1a (stack keeps alive)", h.Stats().NumAllocs, 1)

	fence.Pop()
	h.Collect(fence)
	report("scenario 1b (drop and collect)", h.Stats().NumAllocs, 0)
}

// scenarioNestedReachability is scenario 2: an allocation reachable only
// through another live allocation's contents survives.
func scenarioNestedReachability(h *conservgc.Heap, fence *conservgc.Fence) {
	a, ok := h.Malloc(fence, 1024)
	must(ok, "malloc a")
	inner, ok := h.Malloc(fence, 1024)
	must(ok, "malloc inner")

	// write inner's pointer into a's first word, conservatively scanned.
	h.WriteWord(a, uint32(inner))
	fence.Push(a)

	h.Collect(fence)
	report("scenario 2 (nested reachability)", h.Stats().NumAllocs, 2)

	fence.Pop()
	h.Collect(fence)
}

// scenarioRoot is scenario 3: make_root keeps an allocation alive with no
// stack reference at all.
func scenarioRoot(h *conservgc.Heap, fence *conservgc.Fence) {
	p, ok := h.Malloc(fence, 256)
	must(ok, "malloc")
	h.MakeRoot(fence, p)

	h.Collect(fence)
	report("scenario 3a (root keeps alive)", h.Stats().NumAllocs, 1)

	h.UnmakeRoot(fence, p)
	h.Collect(fence)
	report("scenario 3b (unroot then collect)", h.Stats().NumAllocs, 0)
}

// scenarioFinalizer is scenario 4: the first collection after all
// references drop fires the finalizer and resurrects the object; the
// second collection reclaims it.
func scenarioFinalizer(h *conservgc.Heap, fence *conservgc.Fence) {
	p, ok := h.Malloc(fence, 64)
	must(ok, "malloc")

	ran := false
	h.RegisterFinalizer(fence, p, func(conservgc.Ptr) { ran = true })

	h.Collect(fence)
	report("scenario 4a (finalizer fired, resurrected)", h.Stats().NumAllocs, 1)
	fmt.Println("finalizer ran:", ran)

	h.Collect(fence)
	report("scenario 4b (second collect reclaims)", h.Stats().NumAllocs, 0)
}

// scenarioLeaf is scenario 5: a leaf's contents are never scanned, so a
// pointer stored inside one does not keep its target alive.
func scenarioLeaf(h *conservgc.Heap, fence *conservgc.Fence) {
	p, ok := h.Malloc(fence, 128)
	must(ok, "malloc")
	h.MakeLeaf(fence, p)

	inner, ok := h.Malloc(fence, 128)
	must(ok, "malloc inner")
	h.WriteWord(p, uint32(inner))
	fence.Push(p)

	h.Collect(fence)
	report("scenario 5 (leaf hides inner pointer)", h.Stats().NumAllocs, 1)

	fence.Pop()
	h.Collect(fence)
}

// scenarioWeak is scenario 6: a weak pointer does not keep its target
// alive, and reports null once collected.
func scenarioWeak(h *conservgc.Heap, fence *conservgc.Fence) {
	p, ok := h.Malloc(fence, 64)
	must(ok, "malloc")
	w := conservgc.GetWeakPtr(p)

	h.Collect(fence)
	report("scenario 6 (weak does not keep alive)", h.Stats().NumAllocs, 0)
	fmt.Println("acquire_strong(w) == Null:", h.AcquireStrongPtr(w) == conservgc.Null)
}

// scenarioInterior is scenario 8: ptr_base resolves any interior address
// within an allocation's extent back to its base, and null outside it.
func scenarioInterior(h *conservgc.Heap, fence *conservgc.Fence) {
	p, ok := h.Malloc(fence, 1024)
	must(ok, "malloc")
	fence.Push(p)

	ok8 := h.PtrBase(p+512) == p && h.PtrBase(p+2048) == conservgc.Null
	fmt.Println("scenario 8 (interior pointer resolution):", ok8)

	fence.Pop()
	h.Collect(fence)
}

func report(name string, got, want uint32) {
	fmt.Printf("%s: num_allocs=%d want=%d ok=%v\n", name, got, want, got == want)
}

func must(ok bool, what string) {
	if !ok {
		panic(what + " failed")
	}
}
