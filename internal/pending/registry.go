// Package pending tracks in-flight polls by request ID so that any goroutine
// (an inbound callback handler, the generation engine, an abandon request)
// can wake a specific poller early.
package pending

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyWaiting is returned by BeginWait when a poll is already registered
// for the request ID.
var ErrAlreadyWaiting = errors.New("request already has an active waiter")

// Handle is a one-shot wake-up signal owned by a single poll. It fires at most
// once; a release that happens before the owner starts sleeping is kept until
// the next Wait consumes it.
type Handle struct {
	id       string
	signal   chan struct{}
	once     sync.Once
	released atomic.Bool
}

func newHandle(id string) *Handle {
	return &Handle{
		id:     id,
		signal: make(chan struct{}, 1),
	}
}

// ID returns the request ID the handle is registered under.
func (h *Handle) ID() string {
	return h.id
}

// Release fires the handle. It reports whether this call was the one that
// fired it; later calls are no-ops.
func (h *Handle) Release() bool {
	fired := false
	h.once.Do(func() {
		h.released.Store(true)
		h.signal <- struct{}{}
		fired = true
	})
	return fired
}

// Released reports whether the handle has fired.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// Wait sleeps for d or until the handle is released, whichever comes first.
// It reports true when woken by a release. A release wakes exactly one Wait;
// subsequent calls sleep for their full duration. A done context returns its
// error.
func (h *Handle) Wait(ctx context.Context, d time.Duration) (bool, error) {
	select {
	case <-h.signal:
		return true, nil
	default:
	}
	if d <= 0 {
		return false, ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.signal:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Registry maps request IDs to the handles of polls waiting on them. It is
// safe for concurrent use; operations on different IDs do not contend on a
// shared lock.
type Registry struct {
	waits sync.Map // request ID -> *Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// BeginWait registers a new handle for id. The handle is discoverable by
// Cancel as soon as BeginWait returns.
func (r *Registry) BeginWait(id string) (*Handle, error) {
	h := newHandle(id)
	if _, loaded := r.waits.LoadOrStore(id, h); loaded {
		return nil, ErrAlreadyWaiting
	}
	return h, nil
}

// EndWait removes h from the registry. The entry is removed only while h is
// still the handle registered for its ID, so a poll that already ended cannot
// evict a newer poll on the same ID. Calling it again, or with nil, is a no-op.
func (r *Registry) EndWait(h *Handle) {
	if h == nil {
		return
	}
	r.waits.CompareAndDelete(h.id, h)
}

// Cancel releases the handle registered for id and reports whether a waiter
// was found. It never blocks.
func (r *Registry) Cancel(id string) bool {
	v, ok := r.waits.Load(id)
	if !ok {
		return false
	}
	v.(*Handle).Release()
	return true
}

// Len returns the number of registered waiters.
func (r *Registry) Len() int {
	n := 0
	r.waits.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
