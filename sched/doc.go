// Package sched implements an N:M task scheduler over package coro's
// coroutines: a pool of worker threads pulls tasks (a coroutine or a plain
// callable, optionally pinned to one worker) off a FIFO queue, resuming each
// to completion (or its next voluntary yield) before taking the next.
//
// A Scheduler is constructed with a thread count and an optional
// "use_caller" mode, in which the constructing goroutine itself becomes one
// of the scheduler's workers rather than the scheduler spawning a separate
// goroutine for it — it runs its scheduling loop only once Stop is called,
// draining the queue before returning control to the caller, exactly as
// Start/Stop orchestrate the dedicated worker threads.
package sched
