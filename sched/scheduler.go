package sched

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-coros/coro"
	"github.com/joeycumines/go-coros/internal/corolog"
	"github.com/joeycumines/go-coros/internal/ostid"
	"github.com/joeycumines/go-coros/internal/tls"
	"github.com/joeycumines/go-coros/internal/workerpool"
)

// Scheduler is an N:M scheduler: a pool of worker threads (plus, in
// use_caller mode, the constructing goroutine) dequeue and run Tasks,
// resuming coroutines to their next yield or running callables to
// completion.
type Scheduler struct {
	name string

	mu    sync.Mutex
	tasks []Task

	workers   []*workerpool.Handle
	threadIDs []int

	threadCount       int
	activeThreadCount int64
	idleThreadCount   int64

	useCaller         bool
	scheduleCoroutine *coro.Coroutine
	rootThreadID      int

	stopping bool
	started  bool

	logger *corolog.Logger

	// TickleFunc and IdleFunc are the overridable hooks described in the
	// package doc; New installs the defaults, WithIdle/WithTickle replace
	// them.
	TickleFunc func(*Scheduler)
	IdleFunc   func(*Scheduler)
}

// New constructs a Scheduler with the given worker count. If useCaller is
// true, the constructing goroutine becomes one of the threads (so threads
// must be >= 1 to get any worker at all: threads==1 with useCaller==true
// spawns zero dedicated worker goroutines, matching spec.md's §9 resolution
// of this as the degenerate-but-valid "caller does everything" case).
func New(threads int, useCaller bool, name string, opts ...Option) *Scheduler {
	if threads < 1 {
		fatal(corolog.ErrInvalidState, "new", "threads must be >= 1, got %d", threads)
	}
	if name == "" {
		name = "Scheduler"
	}
	s := &Scheduler{
		name:         name,
		useCaller:    useCaller,
		rootThreadID: -1,
	}
	s.TickleFunc = (*Scheduler).defaultTickle
	s.IdleFunc = (*Scheduler).defaultIdle
	for _, o := range opts {
		o(s)
	}

	if useCaller {
		threads--
		home := tls.Get()
		if home.CurrentScheduler != nil {
			s.fatalf(corolog.ErrInvalidState, "new", "use_caller scheduler constructed on a goroutine already running inside a scheduler")
		}
		coro.Current() // establishes this goroutine's thread-main coroutine
		home.CurrentScheduler = s
		s.scheduleCoroutine = coro.New(func() { s.run() }, coro.WithPinned(false))
		workerpool.SetCurrentName(name)
		home.SchedulerCoroutine = s.scheduleCoroutine
		s.rootThreadID = ostid.Current()
		s.threadIDs = append(s.threadIDs, s.rootThreadID)
	}
	s.threadCount = threads
	return s
}

// fatal is used before a Scheduler exists (New's argument validation); it
// always uses the package-default discard logger, since no Option has had a
// chance to install one yet.
func fatal(err error, op string, format string, args ...any) {
	corolog.Discard.Fatalf(err, op, 0, format, args...)
}

// fatalf is used once a Scheduler exists, logging through whatever logger
// WithLogger installed (or the silent default).
func (s *Scheduler) fatalf(err error, op string, format string, args ...any) {
	s.logger.Fatalf(err, op, 0, format, args...)
}

// Name returns the scheduler's name, as given to New or defaulted to
// "Scheduler".
func (s *Scheduler) Name() string { return s.name }

// Current returns the scheduler whose run loop is active on the calling
// goroutine, or nil if none.
func Current() *Scheduler {
	if s, ok := tls.Get().CurrentScheduler.(*Scheduler); ok {
		return s
	}
	return nil
}

// MainCoroutine returns the scheduler's own scheduling coroutine in
// use_caller mode, or the calling worker's (thread-main or, off the root
// thread, its own) scheduling coroutine. It is nil until Start (or, for
// the use_caller thread, construction) has established it on the calling
// goroutine.
func (s *Scheduler) MainCoroutine() *coro.Coroutine {
	if c, ok := tls.Get().SchedulerCoroutine.(*coro.Coroutine); ok {
		return c
	}
	return nil
}

// Start spawns the scheduler's dedicated worker threads. It is a no-op,
// logged as a warning, if the scheduler is already stopping; it is fatal to
// call Start more than once on a scheduler whose workers have not since been
// joined by Stop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		s.logger.Warnf("start", 0, "start called on a stopping scheduler %q", s.name)
		return nil
	}
	if s.started {
		s.mu.Unlock()
		s.fatalf(corolog.ErrInvalidState, "start", "start called twice on scheduler %q", s.name)
	}
	s.started = true
	s.workers = make([]*workerpool.Handle, s.threadCount)
	s.mu.Unlock()

	for i := 0; i < s.threadCount; i++ {
		idx := i
		h := workerpool.Spawn(func() { s.run() }, fmt.Sprintf("%s_%d", s.name, idx))
		s.mu.Lock()
		s.workers[idx] = h
		s.threadIDs = append(s.threadIDs, h.ID())
		s.mu.Unlock()
	}
	s.logger.Infof(s.name, s.rootThreadID, "scheduler started with %d worker thread(s)", s.threadCount)
	return nil
}

// Stopping reports whether the scheduler has been told to stop and has
// fully drained: no queued tasks and no active worker.
func (s *Scheduler) Stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks) == 0 && atomic.LoadInt64(&s.activeThreadCount) == 0 && s.stopping
}

// Schedule enqueues work — a *coro.Coroutine or a func() — optionally
// pinned to the worker OS thread id threadPin (-1 for any worker). It
// wakes an idle worker if the queue was empty.
//
// Scheduling after Stop is a programmer error: per spec.md §7 it is fatal,
// the same as the other INVALID_STATE cases.
func (s *Scheduler) Schedule(work any, threadPin int) error {
	t := Task{thread: threadPin}
	switch w := work.(type) {
	case *coro.Coroutine:
		// Not checked READY here: a coroutine legitimately enqueues itself
		// (still RUNNING) just before it yields, per the "a yielding
		// coroutine must re-schedule itself first" contract — it will be
		// READY by the time a worker actually dequeues and resumes it.
		// Resume itself enforces READY at that point.
		t.coroutine = w
	case func():
		t.fn = w
	default:
		return fmt.Errorf("coros: %w: schedule requires a *coro.Coroutine or func(), got %T", corolog.ErrInvalidState, work)
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		s.fatalf(corolog.ErrInvalidState, "schedule", "schedule called on scheduler %q after stop", s.name)
	}
	wasEmpty := len(s.tasks) == 0
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	if wasEmpty {
		s.Tickle()
	}
	return nil
}

// Tickle invokes the scheduler's tickle hook (TickleFunc), used to wake a
// worker blocked in idle when a task becomes eligible for it.
func (s *Scheduler) Tickle() {
	s.TickleFunc(s)
}

func (s *Scheduler) defaultTickle() {
	s.logger.Warnf("tickle", 0, "tickle (no-op default) on scheduler %q", s.name)
}

func (s *Scheduler) defaultIdle() {
	for !s.Stopping() {
		coro.Current().Yield()
	}
}

// run is the body of every worker's scheduling coroutine (or, off the root
// thread, of the worker goroutine's own thread-main): the FIFO
// eligibility scan and dispatch loop from spec.md §4.5 / §9.
func (s *Scheduler) run() {
	home := tls.Get()
	home.CurrentScheduler = s
	tid := ostid.Current()
	var schedCoro *coro.Coroutine
	if tid != s.rootThreadID {
		schedCoro = coro.Current()
	} else {
		schedCoro = s.scheduleCoroutine
	}
	home.SchedulerCoroutine = schedCoro

	idleCoro := coro.New(func() { s.IdleFunc(s) })
	var fnCoro *coro.Coroutine

	for {
		var t Task
		t.Reset()
		tickleMe := false

		s.mu.Lock()
		for i := 0; i < len(s.tasks); i++ {
			cand := s.tasks[i]
			if cand.thread != -1 && cand.thread != tid {
				tickleMe = true
				continue
			}
			if cand.coroutine != nil && cand.coroutine.State() == coro.Running {
				// re-scheduled itself and has not yet reached its Yield
				tickleMe = true
				continue
			}
			t = cand
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
			atomic.AddInt64(&s.activeThreadCount, 1)
			tickleMe = tickleMe || len(s.tasks) > i
			break
		}
		s.mu.Unlock()

		if tickleMe {
			s.Tickle()
		}

		switch {
		case t.coroutine != nil:
			t.coroutine.Resume()
			atomic.AddInt64(&s.activeThreadCount, -1)
			t.Reset()

		case t.fn != nil:
			if fnCoro != nil && fnCoro.State() == coro.Term {
				fnCoro.Reset(t.fn)
			} else {
				fnCoro = coro.New(t.fn)
			}
			t.Reset()
			fnCoro.Resume()
			atomic.AddInt64(&s.activeThreadCount, -1)

		default:
			if idleCoro.State() == coro.Term {
				s.logger.Infof(s.name, tid, "idle coroutine terminated, worker exiting")
				return
			}
			atomic.AddInt64(&s.idleThreadCount, 1)
			idleCoro.Resume()
			atomic.AddInt64(&s.idleThreadCount, -1)
		}
	}
}

// Stop marks the scheduler stopping, wakes every worker (and, in
// use_caller mode, drains the queue on the calling goroutine via the
// scheduling coroutine) so they observe Stopping and exit, then joins
// every dedicated worker thread.
//
// In use_caller mode, Stop must be called from the goroutine that
// constructed the scheduler; calling it from any other goroutine, or
// calling it on a non-use_caller scheduler from one of that scheduler's own
// workers (or a task running on one), is fatal.
func (s *Scheduler) Stop() error {
	if s.Stopping() {
		return nil
	}

	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	isCurrent := Current() == s
	if s.useCaller && !isCurrent {
		s.fatalf(corolog.ErrInvalidState, "stop", "use_caller scheduler %q stopped from a goroutine other than its caller", s.name)
	} else if !s.useCaller && isCurrent {
		s.fatalf(corolog.ErrInvalidState, "stop", "non-use_caller scheduler %q stopped from its own scheduling goroutine", s.name)
	}

	for range make([]struct{}, s.threadCount) {
		s.Tickle()
	}
	if s.scheduleCoroutine != nil {
		s.Tickle()
	}

	if s.scheduleCoroutine != nil {
		s.scheduleCoroutine.Resume()
	}

	s.mu.Lock()
	workers := s.workers
	s.workers = nil
	s.mu.Unlock()
	for _, h := range workers {
		h.Join()
	}

	s.logger.Infof(s.name, s.rootThreadID, "scheduler stopped")
	return nil
}
