// Package tls implements the four thread-local slots of spec.md §4.3,
// keyed per goroutine rather than per OS thread.
//
// The C++ source keys these slots on the OS thread, because in that runtime
// a stackful coroutine's resume/yield rendezvous happens entirely within one
// OS thread's call stack. This port instead implements each coroutine as its
// own goroutine synchronized by a rendezvous channel pair (see package
// coro), so the unit that owns "the current coroutine" is the goroutine that
// is, at this instant, the one member of the {caller, coroutine} pair
// actually running. Keying by goroutine id reproduces the same visibility
// rules: exactly one goroutine in a resume/yield pair observes a given set
// of slot values at a time, and a worker's scheduling goroutine is pinned to
// one OS thread for its lifetime via runtime.LockOSThread, so for worker
// threads "per goroutine" and "per OS thread" coincide.
package tls

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Slots holds the four thread-local pointers for one goroutine.
type Slots struct {
	// CurrentCoroutine is a non-owning reference to the coroutine currently
	// holding the CPU on this goroutine. Its concrete type is *coro.Coroutine,
	// stored as interface{} here to avoid an import cycle; callers type-assert.
	CurrentCoroutine any
	// ThreadMainCoroutine is present after the first Coroutine.Current() call
	// on this goroutine.
	ThreadMainCoroutine any
	// CurrentScheduler is a non-owning reference to the scheduler whose run
	// loop is active on this goroutine.
	CurrentScheduler any
	// SchedulerCoroutine is a non-owning reference to this worker's
	// scheduling coroutine, the partner for pinned tasks.
	SchedulerCoroutine any
}

var (
	mu    sync.Mutex
	slots = make(map[int64]*Slots)
)

// Get returns this goroutine's Slots, creating them on first use.
func Get() *Slots {
	id := goroutineID()
	mu.Lock()
	defer mu.Unlock()
	s, ok := slots[id]
	if !ok {
		s = &Slots{}
		slots[id] = s
	}
	return s
}

// Bind makes this goroutine observe s as its Slots, replacing whatever was
// previously registered.
//
// A coroutine's trampoline goroutine is a distinct goroutine from whichever
// goroutine calls Resume, so unlike the C++ original (where a resume/yield
// pair shares one OS thread's storage automatically) this port must
// explicitly hand the resumer's Slots to the coroutine goroutine on each
// wakeup. This is how Resume/Yield (package coro) make a coroutine observe
// the correct ThreadMainCoroutine/SchedulerCoroutine for whichever goroutine
// resumed it, including across a coroutine migrating between workers before
// it is pinned.
func Bind(s *Slots) {
	id := goroutineID()
	mu.Lock()
	defer mu.Unlock()
	slots[id] = s
}

// Detach removes this goroutine's Slots, per spec.md §4.3/§9: thread detach
// clears the slots. Called when a worker's run() returns.
func Detach() {
	id := goroutineID()
	mu.Lock()
	defer mu.Unlock()
	delete(slots, id)
}

// goroutineID parses the current goroutine's id out of a runtime stack
// trace. This is the standard no-assembly technique for emulating
// goroutine-local storage in Go; it is not on any hot path here (it runs
// once per resume/yield/Current() call, not per instruction).
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	// "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	i := bytes.IndexByte(buf, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(buf[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
