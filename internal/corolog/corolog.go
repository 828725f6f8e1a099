// Package corolog provides the shared structured-logging and fatal-error
// path used by both the coro and sched packages, per the error handling
// design: INVALID_STATE, RESOURCE_EXHAUSTED, and OS_ERROR are fatal, logged
// with a diagnostic identifying the offending operation and coroutine id.
package corolog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Sentinel error kinds. These are returned from the small number of public
// APIs that can fail without violating the library's invariants (e.g.
// scheduling a value that is neither a coroutine nor a func()); everywhere
// else, including scheduling after stop, they are the argument to Fatalf,
// which logs and panics.
var (
	ErrInvalidState      = errors.New("coros: invalid state")
	ErrResourceExhausted = errors.New("coros: resource exhausted")
	ErrOSError           = errors.New("coros: os error")
)

// Logger is the structured logger interface used by coro and sched. A nil
// *Logger is valid and silently discards all records, so the library is
// quiet by default.
type Logger struct {
	l *logiface.Logger[*islog.Event]
}

// Discard is the default, silent Logger.
var Discard = (*Logger)(nil)

// New wraps a slog.Handler as a Logger, for use with sched.WithLogger and
// coro.SetLogger.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	return &Logger{l: logiface.New[*islog.Event](islog.NewLogger(handler, islog.WithLevel(logiface.LevelTrace)))}
}

// Fatalf logs err at LevelCritical with the given op and coroutine id, then
// panics with an error wrapping err. It never returns.
func (lg *Logger) Fatalf(err error, op string, coroutineID uint64, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if lg != nil && lg.l != nil {
		lg.l.Crit().
			Str("op", op).
			Uint64("coroutine_id", coroutineID).
			Err(err).
			Log(msg)
	}
	panic(fmt.Errorf("coros: fatal: %s: op=%s coroutine=%d: %w", msg, op, coroutineID, err))
}

// Warnf logs a non-fatal warning with the given op and coroutine id.
func (lg *Logger) Warnf(op string, coroutineID uint64, format string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Warning().
		Str("op", op).
		Uint64("coroutine_id", coroutineID).
		Log(fmt.Sprintf(format, args...))
}

// Infof logs an informational lifecycle event (scheduler start/stop, worker
// exit) with the given scheduler name and thread id.
func (lg *Logger) Infof(scheduler string, threadID int, format string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Info().
		Str("scheduler", scheduler).
		Int("thread_id", threadID).
		Log(fmt.Sprintf(format, args...))
}

var nextSeq uint64

// NextSeq returns a monotonically increasing, process-wide sequence number,
// used where callers need a cheap correlation id for log lines (e.g.
// worker-thread names).
func NextSeq() uint64 {
	return atomic.AddUint64(&nextSeq, 1)
}
