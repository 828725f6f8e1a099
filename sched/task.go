package sched

import "github.com/joeycumines/go-coros/coro"

// Task is the tagged union a Scheduler queues: either a coroutine handle or
// a plain callable, optionally pinned to a specific OS thread id (thread ==
// -1 means any worker may run it).
type Task struct {
	coroutine *coro.Coroutine
	fn        func()
	thread    int
}

// Empty reports whether the task carries neither a coroutine nor a
// callable.
func (t *Task) Empty() bool {
	return t.coroutine == nil && t.fn == nil
}

// Reset clears the task to empty and unpinned (thread == -1; note this
// differs from the zero value, whose thread is 0).
func (t *Task) Reset() {
	t.coroutine = nil
	t.fn = nil
	t.thread = -1
}
