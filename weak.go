package conservgc

// Weak pointer encoding: a strong pointer is 8-byte aligned; its weak
// alias is the strong value minus one, which occupies no table entry and
// does not keep the target alive.

// IsWeakPtr reports whether w is a weak pointer or null.
func IsWeakPtr(w Ptr) bool {
	return w == Null || w&7 != 0
}

// IsStrongPtr reports whether s is 8-byte aligned, i.e. could be a strong
// pointer (it says nothing about whether s is actually live).
func IsStrongPtr(s Ptr) bool {
	return s&7 == 0
}

// GetWeakPtr converts a strong pointer to its weak alias. Weak pointers
// are returned unchanged (idempotent).
func GetWeakPtr(s Ptr) Ptr {
	if IsWeakPtr(s) {
		return s
	}
	return s - 1
}

// AcquireStrongPtr promotes a weak pointer back to strong, returning Null
// if the target is no longer live.
func (h *Heap) AcquireStrongPtr(w Ptr) Ptr {
	if w == Null {
		return Null
	}
	candidate := w + 1

	h.allocLock.Lock()
	defer h.allocLock.Unlock()

	if _, ok := h.table.find(candidate); ok {
		return candidate
	}
	return Null
}

// WeakPtrEquals reports whether a and b refer to the same (possibly
// already-collected) target.
func (h *Heap) WeakPtrEquals(a, b Ptr) bool {
	if a == b {
		return true
	}
	sa, sb := h.AcquireStrongPtr(a), h.AcquireStrongPtr(b)
	return sa != Null && sa == sb
}
