// Package async provides the result handle returned by store operations. A
// Handle starts pending and settles exactly once, either resolved with a value
// or rejected with an error. Cancelling a pending handle rejects it with an
// aborted error and runs the cancel hook registered by the producer.
package async

import (
	"context"
	"sync"

	"github.com/Ratio1/odata_sdk_go/pkg/apierrors"
)

// State is the lifecycle position of a Handle.
type State int

const (
	Pending State = iota
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Handle is a single in-flight or completed operation.
type Handle[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	err       error
	total     int
	done      chan struct{}
	onCancel  func()
	callbacks []func()
}

// New returns a pending handle with an unknown total.
func New[T any]() *Handle[T] {
	return &Handle[T]{total: -1, done: make(chan struct{})}
}

// ResolvedWith returns a handle already resolved with v.
func ResolvedWith[T any](v T) *Handle[T] {
	h := New[T]()
	h.Resolve(v)
	return h
}

// RejectedWith returns a handle already rejected with err.
func RejectedWith[T any](err error) *Handle[T] {
	h := New[T]()
	h.Reject(err)
	return h
}

// OnCancel registers the hook run when a pending handle is cancelled.
func (h *Handle[T]) OnCancel(fn func()) {
	h.mu.Lock()
	h.onCancel = fn
	h.mu.Unlock()
}

// Resolve settles the handle with v. It reports false if already settled.
func (h *Handle[T]) Resolve(v T) bool {
	return h.settle(Resolved, v, nil, nil)
}

// ResolveWithTotal settles the handle with v and records total.
func (h *Handle[T]) ResolveWithTotal(v T, total int) bool {
	return h.settle(Resolved, v, nil, &total)
}

// Reject settles the handle with err. It reports false if already settled.
func (h *Handle[T]) Reject(err error) bool {
	var zero T
	return h.settle(Rejected, zero, err, nil)
}

// Cancel rejects a pending handle with an aborted error and runs the cancel
// hook. Cancelling a settled handle is a no-op and reports false.
func (h *Handle[T]) Cancel() bool {
	h.mu.Lock()
	hook := h.onCancel
	h.mu.Unlock()

	if !h.Reject(apierrors.NewAbortedError("cancelled by caller")) {
		return false
	}
	if hook != nil {
		hook()
	}
	return true
}

func (h *Handle[T]) settle(state State, v T, err error, total *int) bool {
	h.mu.Lock()
	if h.state != Pending {
		h.mu.Unlock()
		return false
	}
	h.state = state
	h.value = v
	h.err = err
	if total != nil {
		h.total = *total
	}
	callbacks := h.callbacks
	h.callbacks = nil
	h.onCancel = nil
	close(h.done)
	h.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// Then registers continuations run once the handle settles. If it already
// has, the matching continuation runs immediately on the calling goroutine.
func (h *Handle[T]) Then(onSuccess func(T), onFailure func(error)) {
	run := func() {
		h.mu.Lock()
		state, v, err := h.state, h.value, h.err
		h.mu.Unlock()
		if state == Resolved && onSuccess != nil {
			onSuccess(v)
		}
		if state == Rejected && onFailure != nil {
			onFailure(err)
		}
	}

	h.mu.Lock()
	if h.state == Pending {
		h.callbacks = append(h.callbacks, run)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	run()
}

// Done is closed once the handle settles.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the handle settles or ctx ends. Ending ctx stops the wait
// but leaves the handle pending.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-h.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.err
}

// State returns the current lifecycle state.
func (h *Handle[T]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Value returns the resolved value, or the zero T.
func (h *Handle[T]) Value() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// Err returns the rejection error, or nil.
func (h *Handle[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Total returns the total row count reported with a query, or -1 if unknown.
func (h *Handle[T]) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}
