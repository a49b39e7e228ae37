package updater

import "sync/atomic"

// Request is a one-shot user request consumed by the next cycle.
type Request int32

// Requests are ordered by strength; merging keeps the stronger one.
const (
	// RequestNone is a background poll: check and download when available.
	RequestNone Request = iota
	// RequestCheck checks availability without downloading.
	RequestCheck
	// RequestDownload checks and downloads when available.
	RequestDownload
)

// String returns the request name used in logs.
func (r Request) String() string {
	switch r {
	case RequestCheck:
		return "check"
	case RequestDownload:
		return "download"
	default:
		return "none"
	}
}

// Waker delivers user requests to the loop. A request made while a cycle is
// running is kept for the following cycle.
type Waker struct {
	wake    chan struct{}
	pending atomic.Int32
}

// NewWaker returns an empty Waker.
func NewWaker() *Waker {
	return &Waker{wake: make(chan struct{}, 1)}
}

// Request records r and wakes the loop. Concurrent requests merge to the
// strongest one.
func (w *Waker) Request(r Request) {
	for {
		old := w.pending.Load()
		if Request(old) >= r || w.pending.CompareAndSwap(old, int32(r)) {
			break
		}
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// C is signalled whenever a request is recorded.
func (w *Waker) C() <-chan struct{} {
	return w.wake
}

// Take returns the pending request and clears it.
func (w *Waker) Take() Request {
	return Request(w.pending.Swap(int32(RequestNone)))
}
