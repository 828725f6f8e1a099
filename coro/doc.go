// Package coro implements stackful, asymmetric coroutines.
//
// A Coroutine is a cooperatively scheduled unit of execution with its own
// call stack. Unlike the original ucontext-based design this module is
// ported from, a Go Coroutine's "stack" is a goroutine: resume and yield are
// a two-channel rendezvous (grounded on the tcard/coro technique) that
// enforces the same invariant a machine-context swap would — at most one of
// {resumer, coroutine} ever runs at a time, and control returns to the
// resumer exactly when the coroutine yields or returns.
//
// A Coroutine is always in one of three states: READY, RUNNING, or TERM. It
// starts READY, becomes RUNNING on Resume, returns to READY on Yield, and
// becomes TERM when its entry function returns. A TERM coroutine may be
// revived with Reset.
//
// Resume may only be called on a READY coroutine; Yield may only be called
// from within the currently RUNNING coroutine (or, as a narrow exception,
// from the tail of its own entry trampoline while transiently TERM).
// Violating either precondition is a programmer error and is fatal: the
// package logs a diagnostic naming the operation and coroutine id, then
// panics.
package coro
