package conservgc

import "fmt"

// ErrOOM names the out-of-memory condition. The allocation operations do
// not return it: Malloc and its wrappers report OOM as (Null, false). The
// collector never retries a collection in response; that policy is left
// to the caller.
var ErrOOM = fmt.Errorf(`conservgc: out of memory`)

// AssertionError is panicked for conditions treated as programmer error
// rather than recoverable failure: a fence violation under Config.Fenced,
// or a corrupt table (freeing an already-freed slot).
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return "conservgc: " + e.Msg }

func assert(cond bool, msg string) {
	if !cond {
		panic(&AssertionError{Msg: msg})
	}
}
