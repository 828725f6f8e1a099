//go:build !linux

package wakeup

// FD is a coalescing wakeup primitive backed by a buffered channel on
// platforms without eventfd(2).
type FD struct {
	ch chan struct{}
}

// New creates a wakeup FD.
func New() (*FD, error) {
	return &FD{ch: make(chan struct{}, 1)}, nil
}

// Write signals the wakeup, waking a pending or future Wait.
func (f *FD) Write() {
	select {
	case f.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until Write has been called since the last Wait drained it.
func (f *FD) Wait() {
	<-f.ch
}

// Close releases resources held by the FD.
func (f *FD) Close() error {
	return nil
}
