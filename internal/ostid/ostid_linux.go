//go:build linux

// Package ostid provides the thread-id query external collaborator.
package ostid

import "golang.org/x/sys/unix"

// Current returns the calling OS thread's id. It is only meaningful while
// the calling goroutine is locked to its OS thread via runtime.LockOSThread;
// otherwise the scheduler may have moved it since the value was read.
func Current() int {
	return unix.Gettid()
}
