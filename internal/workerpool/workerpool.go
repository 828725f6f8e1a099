// Package workerpool implements the "worker thread" external collaborator
// from spec.md §6: spawn/join/detach/name/id, plus the startup handshake
// semaphore that makes Spawn block until the new thread has recorded its id.
package workerpool

import (
	"runtime"
	"sync"

	"github.com/joeycumines/go-coros/internal/ostid"
	"github.com/joeycumines/go-coros/internal/semaphore"
	"github.com/joeycumines/go-coros/internal/tls"
)

// Handle is a started worker thread.
type Handle struct {
	name    string
	done    chan struct{}
	id      int
	joined  bool
	mu      sync.Mutex
	started *semaphore.Semaphore
}

var (
	curMu   sync.Mutex
	curName = make(map[int64]string)
)

// Spawn starts entry on a new goroutine locked to its own OS thread via
// runtime.LockOSThread, blocking until the thread has recorded its OS
// thread id (the startup handshake of spec.md §5).
func Spawn(entry func(), name string) *Handle {
	h := &Handle{
		name:    name,
		done:    make(chan struct{}),
		started: semaphore.New(),
	}
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(h.done)
		defer tls.Detach()

		h.mu.Lock()
		h.id = ostid.Current()
		h.mu.Unlock()
		setCurrentName(name)
		h.started.Notify()

		entry()
	}()
	h.started.Wait()
	return h
}

// ID returns the worker's OS thread id. Valid only after Spawn has returned.
func (h *Handle) ID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Join blocks until the worker's entry function has returned.
func (h *Handle) Join() {
	<-h.done
	h.mu.Lock()
	h.joined = true
	h.mu.Unlock()
}

// Detach marks the handle as not needing Join. It is a no-op beyond
// bookkeeping: unlike an OS thread, a goroutine needs no explicit detach to
// avoid a resource leak, but the method is kept for parity with spec.md §6's
// "handle.detach() on drop if unjoined" contract and to make intent explicit
// at call sites that choose not to Join.
func (h *Handle) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joined = true
}

func setCurrentName(name string) {
	if name == "" {
		return
	}
	id := int64(ostid.Current())
	curMu.Lock()
	curName[id] = name
	curMu.Unlock()
}

// CurrentName returns the name set for the calling OS thread by Spawn or
// SetCurrentName, or "" if none was set.
//
// Supplements original_source/Thread/Threads.cpp's GetName, which the
// distilled spec.md omits.
func CurrentName() string {
	id := int64(ostid.Current())
	curMu.Lock()
	defer curMu.Unlock()
	return curName[id]
}

// SetCurrentName records name for the calling OS thread, for threads not
// started via Spawn (e.g. the use_caller thread).
func SetCurrentName(name string) {
	setCurrentName(name)
}
