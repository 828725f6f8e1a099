package sched

import (
	"github.com/joeycumines/go-coros/coro"
	"github.com/joeycumines/go-coros/internal/wakeup"
)

// IOScheduler is a Scheduler whose idle hook blocks on a coalescing wakeup
// primitive (internal/wakeup, eventfd-backed on linux) instead of
// busy-yielding, and whose tickle hook signals that primitive. It is the
// example customization point spec.md §4.5 describes as available to "an
// IO-aware scheduler [that] may block on a wakeup primitive in idle() and
// signal it from tickle()": every other invariant of Scheduler is
// unchanged, since IOScheduler is composition (a Scheduler plus a wakeup
// fd), not an overridden type hierarchy.
type IOScheduler struct {
	*Scheduler
	wake *wakeup.FD
}

// NewIOScheduler constructs an IOScheduler, wiring its wakeup fd into the
// underlying Scheduler's idle/tickle hooks. Any WithIdle/WithTickle options
// passed here are applied, then silently superseded by IOScheduler's own,
// since overriding them would defeat the coalescing-wakeup contract; install
// other Options (WithLogger) freely.
func NewIOScheduler(threads int, useCaller bool, name string, opts ...Option) (*IOScheduler, error) {
	fd, err := wakeup.New()
	if err != nil {
		return nil, err
	}
	io := &IOScheduler{wake: fd}
	allOpts := append(append([]Option{}, opts...), WithIdle(io.idle), WithTickle(io.tickle))
	io.Scheduler = New(threads, useCaller, name, allOpts...)
	return io, nil
}

// idle blocks on the wakeup fd rather than repeatedly yielding; each wakeup
// (a Tickle, or Stop's own wakes) still yields back to the scheduling loop
// once, so a just-scheduled task gets a rescan.
func (io *IOScheduler) idle(s *Scheduler) {
	for !s.Stopping() {
		io.wake.Wait()
		coro.Current().Yield()
	}
}

func (io *IOScheduler) tickle(s *Scheduler) {
	io.wake.Write()
	s.logger.Warnf("tickle", 0, "tickle (eventfd) on scheduler %q", s.name)
}

// Close releases the wakeup fd. Call it after Stop.
func (io *IOScheduler) Close() error {
	return io.wake.Close()
}
