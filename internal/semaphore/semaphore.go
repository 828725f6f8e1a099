// Package semaphore adapts golang.org/x/sync/semaphore's weighted semaphore
// to the counting-semaphore Wait/Notify contract spec'd as an external
// collaborator for the worker-thread startup handshake.
package semaphore

import (
	"context"
	"math"

	xsemaphore "golang.org/x/sync/semaphore"
)

// Semaphore is a counting semaphore with Wait/Notify, used for the
// worker-thread startup handshake: the spawning goroutine Waits until the
// new worker has recorded its id and Notifies it has done so.
type Semaphore struct {
	w *xsemaphore.Weighted
}

// New returns a semaphore with an initial count of 0.
func New() *Semaphore {
	w := xsemaphore.NewWeighted(math.MaxInt64)
	// Consume every permit so the pool starts empty; each Notify (Release)
	// adds one back and each Wait (Acquire) takes one.
	_ = w.Acquire(context.Background(), math.MaxInt64)
	return &Semaphore{w: w}
}

// Wait blocks until Notify has been called at least once since the last
// Wait returned.
func (s *Semaphore) Wait() {
	// Acquire never fails against context.Background with a bounded weight.
	_ = s.w.Acquire(context.Background(), 1)
}

// Notify increments the semaphore's count by one, waking a single blocked
// Wait call if one is pending.
func (s *Semaphore) Notify() {
	s.w.Release(1)
}
