//go:build linux

// Package wakeup provides a cross-goroutine wakeup primitive for
// IOScheduler's idle/tickle hooks, grounded on the pack's eventloop wake
// pipe (eventloop/wakeup_linux.go), but backed by eventfd(2) rather than a
// pipe, since we only ever need a single coalesced wakeup counter, not a
// byte stream.
package wakeup

import "golang.org/x/sys/unix"

// FD is a coalescing wakeup file descriptor: any number of concurrent Write
// calls between two Wait calls are collapsed into a single wakeup.
type FD struct {
	fd int
}

// New creates a non-blocking eventfd-backed wakeup FD.
func New() (*FD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &FD{fd: fd}, nil
}

// Write signals the wakeup, waking a pending or future Wait.
func (f *FD) Write() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(f.fd, buf[:])
}

// Wait blocks until Write has been called since the last Wait drained it.
func (f *FD) Wait() {
	var buf [8]byte
	pfd := []unix.PollFd{{Fd: int32(f.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(pfd, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n > 0 {
			_, _ = unix.Read(f.fd, buf[:])
			return
		}
	}
}

// Close releases the underlying file descriptor.
func (f *FD) Close() error {
	return unix.Close(f.fd)
}
