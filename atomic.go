package conservgc

import "sync/atomic"

// atomicCounter is a process-wide counter used for the fence rendezvous
// protocol: fenced-thread count, ready-to-mark count, finished-marking
// count, resumed count, and finalizers-marked count.
type atomicCounter struct{ v int64 }

func (c *atomicCounter) add(delta int64) int64 { return atomic.AddInt64(&c.v, delta) }
func (c *atomicCounter) load() int64           { return atomic.LoadInt64(&c.v) }
func (c *atomicCounter) store(v int64)         { atomic.StoreInt64(&c.v, v) }

// atomicFlag is mt_marking_running: a 0/1 flag.
type atomicFlag struct{ v int32 }

func (f *atomicFlag) set(on bool) {
	var v int32
	if on {
		v = 1
	}
	atomic.StoreInt32(&f.v, v)
}

func (f *atomicFlag) isSet() bool { return atomic.LoadInt32(&f.v) != 0 }
