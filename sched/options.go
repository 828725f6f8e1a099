package sched

import "github.com/joeycumines/go-coros/internal/corolog"

// Option configures a Scheduler created by New.
type Option func(*Scheduler)

// WithLogger installs a structured logger for fatal diagnostics and
// lifecycle tracing (start/stop, worker exit). The default is silent.
func WithLogger(l *corolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithIdle overrides the coroutine body run on a worker with no eligible
// task, replacing the default (yield until Stopping returns true). A
// subclass such as IOScheduler uses this to block on a wakeup primitive
// instead of busy-yielding.
func WithIdle(fn func(*Scheduler)) Option {
	return func(s *Scheduler) { s.IdleFunc = fn }
}

// WithTickle overrides the hook called to wake other workers when a task
// becomes eligible for them. The default is a no-op (tracked only via a
// warning-level log line); IOScheduler overrides it to signal its wakeup fd.
func WithTickle(fn func(*Scheduler)) Option {
	return func(s *Scheduler) { s.TickleFunc = fn }
}
