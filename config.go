package conservgc

import (
	"github.com/joeycumines/logiface"
)

// Config is the set of build-time toggles and sizing knobs governing a
// Heap. The zero value is usable: it behaves as a single-threaded,
// non-SIMD, unfenced collector over a modest default heap.
type Config struct {
	// HeapCapacity bounds the arena's backing buffer, in bytes. Defaults
	// to 64 MiB if zero.
	HeapCapacity uint32

	// MarkQueueCapacity is the mark ring's slot count; must be a power of
	// two. Defaults to 4096 if zero.
	MarkQueueCapacity uint32

	// SkipAutomaticStaticMarking is always effectively true in this
	// package: there is no portable global-data-segment range to scan.
	// The field exists only so callers can assert their intent explicitly
	// rather than relying on undocumented behavior.
	SkipAutomaticStaticMarking bool

	// Fenced enforces the fence-depth assertion on every managed
	// operation. Defaults to false (the zero value); SharedMemory does not
	// turn it on.
	Fenced bool

	// SharedMemory enables the multithreaded code paths: the shared mark
	// queue and a dedicated background sweep worker. When false, marking
	// recurses synchronously and Collect sweeps inline. The mark bitmap is
	// atomic, and stack orphaning is available, in either mode.
	SharedMemory bool

	// SIMD selects the software-emulated vectorized pointer scan over the
	// plain scalar one. Behaviorally equivalent either way. Sweep has a
	// single 64-bit-word path and does not consult this field.
	SIMD bool

	// Logger receives structured events for the mark phase's begin and
	// end, sweep reclamation, finalizer invocations, and allocation
	// failures. Nil disables logging. Use [NewSlogLogger] to back it with a
	// slog.Handler.
	Logger *logiface.Logger[logiface.Event]
}

const (
	defaultHeapCapacity      = 64 << 20
	defaultMarkQueueCapacity = 1 << 12
)

func (c Config) withDefaults() Config {
	if c.HeapCapacity == 0 {
		c.HeapCapacity = defaultHeapCapacity
	}
	if c.MarkQueueCapacity == 0 {
		c.MarkQueueCapacity = defaultMarkQueueCapacity
	}
	if c.MarkQueueCapacity&(c.MarkQueueCapacity-1) != 0 {
		panic(`conservgc: MarkQueueCapacity must be a power of two`)
	}
	return c
}

func (c Config) logger() *logiface.Logger[logiface.Event] {
	if c.Logger == nil {
		return logiface.L.New()
	}
	return c.Logger
}
