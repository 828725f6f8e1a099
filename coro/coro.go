package coro

import (
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/go-coros/internal/corolog"
	"github.com/joeycumines/go-coros/internal/tls"
)

// DefaultStackSize is the stack size recorded on a Coroutine when none is
// given via WithStackSize. Go goroutine stacks grow dynamically starting
// from a few KiB, so unlike the ucontext original this value is advisory
// only: it is surfaced for parity with callers that inspect it, not used to
// preallocate anything.
const DefaultStackSize = 128 * 1024

// State is a Coroutine's lifecycle state.
type State int32

const (
	// Ready means the coroutine has not started, or has yielded and is
	// waiting to be resumed.
	Ready State = iota
	// Running means the coroutine is currently executing.
	Running
	// Term means the coroutine's entry function has returned. A Term
	// coroutine may be revived with Reset.
	Term
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Term:
		return "TERM"
	default:
		return "UNKNOWN"
	}
}

var (
	idSeq      uint64
	totalCount int64
	logger     atomic.Pointer[corolog.Logger]
)

// SetLogger installs the structured logger used for fatal diagnostics. A nil
// logger (the default) discards everything.
func SetLogger(l *corolog.Logger) {
	logger.Store(l)
}

func fatal(err error, op string, id uint64, format string, args ...any) {
	logger.Load().Fatalf(err, op, id, format, args...)
}

// TotalCount returns the number of live Coroutine values process-wide,
// including thread-main coroutines. It is exact as of the last garbage
// collection: a Coroutine is counted live until it is collected, via
// runtime.SetFinalizer, which is the idiomatic Go analogue of the original's
// explicit construct/destroy refcounting.
func TotalCount() int64 {
	return atomic.LoadInt64(&totalCount)
}

// Coroutine is a stackful, asymmetric coroutine. See the package doc for the
// resume/yield contract.
type Coroutine struct {
	id        uint64
	state     int32 // atomic, a State
	pinned    bool
	hasStack  bool
	stackSize int
	entry     func()

	// resumeCh carries the resumer's thread-local Slots to the coroutine's
	// trampoline goroutine on each wakeup; yieldCh is the empty rendezvous
	// signal back. Both are recreated by Reset, since a finished goroutine
	// cannot be revived and a fresh one is spawned instead.
	resumeCh chan *tls.Slots
	yieldCh  chan struct{}
}

// Option configures a Coroutine created by New.
type Option func(*config)

type config struct {
	stackSize int
	pinned    bool
}

// WithStackSize sets the advisory stack size recorded on the coroutine.
func WithStackSize(n int) Option {
	return func(c *config) { c.stackSize = n }
}

// WithPinned controls whether the coroutine yields to its pinning worker's
// scheduling coroutine (true, the default) or to the thread-main coroutine
// of whichever goroutine resumes it (false). sched.New uses false for its
// use_caller scheduling coroutine; every other coroutine it creates is
// pinned.
func WithPinned(pinned bool) Option {
	return func(c *config) { c.pinned = pinned }
}

// New constructs a Coroutine running entry, in the Ready state, and starts
// its trampoline goroutine (blocked until the first Resume).
func New(entry func(), opts ...Option) *Coroutine {
	if entry == nil {
		fatal(corolog.ErrInvalidState, "new", 0, "nil entry function")
	}
	cfg := config{stackSize: DefaultStackSize, pinned: true}
	for _, o := range opts {
		o(&cfg)
	}
	c := &Coroutine{
		id:        atomic.AddUint64(&idSeq, 1),
		pinned:    cfg.pinned,
		hasStack:  true,
		stackSize: cfg.stackSize,
		entry:     entry,
	}
	c.allocChannels()
	atomic.StoreInt32(&c.state, int32(Ready))
	registerLive(c)
	c.spawn()
	return c
}

func registerLive(c *Coroutine) {
	atomic.AddInt64(&totalCount, 1)
	runtime.SetFinalizer(c, func(*Coroutine) {
		atomic.AddInt64(&totalCount, -1)
	})
}

// spawn starts the trampoline goroutine. It blocks immediately for the first
// resume, mirroring the tcard/coro pattern of parking a fresh goroutine on a
// channel receive until the caller is ready for it to run.
func (c *Coroutine) spawn() {
	go func() {
		home := <-c.resumeCh
		tls.Bind(home)
		defer tls.Detach()
		func() {
			defer func() {
				atomic.StoreInt32(&c.state, int32(Term))
				c.entry = nil
			}()
			c.entry()
		}()
		c.Yield()
	}()
}

func (c *Coroutine) allocChannels() {
	c.resumeCh = make(chan *tls.Slots)
	c.yieldCh = make(chan struct{})
}

// constructMain builds the stackless Coroutine representing a goroutine's
// own, pre-existing call stack: the partner a coroutine yields to when it
// has no scheduler (or is not pinned).
func constructMain() *Coroutine {
	c := &Coroutine{
		id:       atomic.AddUint64(&idSeq, 1),
		hasStack: false,
	}
	atomic.StoreInt32(&c.state, int32(Running))
	registerLive(c)
	return c
}

// Current returns the coroutine currently running on the calling goroutine,
// lazily constructing a thread-main coroutine to represent it if none
// exists yet.
func Current() *Coroutine {
	home := tls.Get()
	if c, ok := home.CurrentCoroutine.(*Coroutine); ok && c != nil {
		return c
	}
	if m, ok := home.ThreadMainCoroutine.(*Coroutine); ok && m != nil {
		home.CurrentCoroutine = m
		return m
	}
	m := constructMain()
	home.ThreadMainCoroutine = m
	home.CurrentCoroutine = m
	return m
}

// CurrentID returns the id of the coroutine running on the calling
// goroutine, or 0 if none has been established (it does not construct a
// thread-main coroutine as a side effect, unlike Current).
func CurrentID() uint64 {
	home := tls.Get()
	if c, ok := home.CurrentCoroutine.(*Coroutine); ok && c != nil {
		return c.id
	}
	return 0
}

// ID returns the coroutine's id, stable across Reset.
func (c *Coroutine) ID() uint64 { return c.id }

// StackSize returns the advisory stack size the coroutine was created with.
func (c *Coroutine) StackSize() int { return c.stackSize }

// Pinned reports whether the coroutine yields to its worker's scheduling
// coroutine rather than to its resumer's thread-main coroutine.
func (c *Coroutine) Pinned() bool { return c.pinned }

// State returns the coroutine's current lifecycle state.
func (c *Coroutine) State() State {
	return State(atomic.LoadInt32(&c.state))
}

// Resume transfers control to the coroutine, recording the calling
// goroutine's thread-local slots as what the coroutine will restore into
// its partner's CurrentCoroutine slot on its next Yield. It blocks until the
// coroutine yields or its entry function returns.
//
// Resume on a coroutine not in the Ready state is a programmer error: it is
// fatal, per spec.md §7's INVALID_STATE classification. The error return
// exists for signature parity with callers that propagate it; it is always
// nil, since the failure path panics instead of returning.
func (c *Coroutine) Resume() error {
	if !atomic.CompareAndSwapInt32(&c.state, int32(Ready), int32(Running)) {
		fatal(corolog.ErrInvalidState, "resume", c.id, "resume called on coroutine in state %s, want READY", c.State())
	}
	home := tls.Get()
	home.CurrentCoroutine = c
	c.resumeCh <- home
	<-c.yieldCh
	return nil
}

// Yield suspends the calling coroutine, transferring control back to its
// resumer. It must be called from within the coroutine currently occupying
// the calling goroutine (ordinarily via Current().Yield()); the sole
// exception is the coroutine's own entry trampoline, which calls Yield once
// more, internally, after the entry function returns, to hand control back
// while the state is already Term.
//
// Yield on a coroutine that is neither Running nor Term is a programmer
// error: it is fatal.
func (c *Coroutine) Yield() {
	st := State(atomic.LoadInt32(&c.state))
	if st != Running && st != Term {
		fatal(corolog.ErrInvalidState, "yield", c.id, "yield called on coroutine in state %s, want RUNNING or TERM", st)
	}
	if st == Running {
		atomic.StoreInt32(&c.state, int32(Ready))
	}
	partner := c.resolvePartner()
	home := tls.Get()
	home.CurrentCoroutine = partner
	c.yieldCh <- struct{}{}
	if st == Term {
		return
	}
	next := <-c.resumeCh
	tls.Bind(next)
}

// resolvePartner picks who Yield hands control back to: a pinned
// coroutine's worker's scheduling coroutine, or otherwise the
// resumer-goroutine's thread-main coroutine.
func (c *Coroutine) resolvePartner() *Coroutine {
	home := tls.Get()
	if c.pinned {
		if p, ok := home.SchedulerCoroutine.(*Coroutine); ok && p != nil {
			return p
		}
	}
	if p, ok := home.ThreadMainCoroutine.(*Coroutine); ok && p != nil {
		return p
	}
	return Current()
}

// Reset revives a Term coroutine in place, with a new entry function and a
// fresh Ready state. The coroutine's id is unchanged.
//
// Go provides no way to rewind a goroutine whose function has returned, so
// unlike the original (which rearms the same stack memory), Reset spawns a
// new trampoline goroutine; the Coroutine value and its id are what is
// actually reused, which is what callers observe and rely on.
//
// Reset on a coroutine that is not Term, or that has no stack (the
// thread-main coroutine), is a programmer error: it is fatal. As with
// Resume, the error return is always nil; the failure path panics.
func (c *Coroutine) Reset(entry func()) error {
	if !c.hasStack {
		fatal(corolog.ErrInvalidState, "reset", c.id, "reset called on stackless thread-main coroutine")
	}
	if State(atomic.LoadInt32(&c.state)) != Term {
		fatal(corolog.ErrInvalidState, "reset", c.id, "reset called on coroutine in state %s, want TERM", c.State())
	}
	if entry == nil {
		fatal(corolog.ErrInvalidState, "reset", c.id, "nil entry function")
	}
	c.entry = entry
	c.allocChannels()
	atomic.StoreInt32(&c.state, int32(Ready))
	c.spawn()
	return nil
}
