package deferred

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

/**
* Simplified version of
* - https://github.com/emacsway/store/blob/devel/polyfill.js#L199
* - https://github.com/emacsway/go-promise
*
* See also:
* - https://promisesaplus.com/
* - http://promises-aplus.github.io/promises-spec/
**/

func Noop[T, R any](_ T) (R, error) {
	var zero R
	return zero, nil
}

type nextDeferred interface {
	resolveAny(any)
	rejectAny(error)
	OccurredErr() error
}

type handler[T any] struct {
	onSuccess func(T) (any, error)
	onError   func(error) (any, error)
	next      nextDeferred
}

// Future is a goroutine-safe Deferred. The zero value is a pending
// future ready for use.
type Future[T any] struct {
	mu          sync.Mutex
	done        chan struct{}
	value       T
	err         error
	occurredErr error
	state       State
	handlers    []handler[T]
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{}
}

// ResolvedFuture returns a future already completed with value.
func ResolvedFuture[T any](value T) *Future[T] {
	f := &Future[T]{}
	f.Resolve(value)
	return f
}

// RejectedFuture returns a future already completed with err.
func RejectedFuture[T any](err error) *Future[T] {
	f := &Future[T]{}
	f.Reject(err)
	return f
}

func (d *Future[T]) resolveAny(v any) {
	var t T
	if v != nil {
		t = v.(T)
	}
	d.Resolve(t)
}

func (d *Future[T]) rejectAny(err error) {
	d.Reject(err)
}

// doneChan must be called with mu held.
func (d *Future[T]) doneChan() chan struct{} {
	if d.done == nil {
		d.done = make(chan struct{})
	}
	return d.done
}

func (d *Future[T]) complete(state State, value T, err error) bool {
	d.mu.Lock()
	if d.state != Pending {
		d.mu.Unlock()
		return false
	}
	d.value = value
	d.err = err
	d.state = state
	close(d.doneChan())
	handlers := append([]handler[T](nil), d.handlers...)
	d.mu.Unlock()

	for _, h := range handlers {
		d.runHandler(h, state, value, err)
	}
	return true
}

func (d *Future[T]) Resolve(value T) bool {
	return d.complete(Resolved, value, nil)
}

func (d *Future[T]) Reject(err error) bool {
	var zero T
	return d.complete(Rejected, zero, err)
}

func (d *Future[T]) addHandler(h handler[T]) {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	state, value, err := d.state, d.value, d.err
	d.mu.Unlock()
	if state != Pending {
		d.runHandler(h, state, value, err)
	}
}

func (d *Future[T]) Then(onSuccess func(T) (any, error), onError func(error) (any, error)) Deferred[any] {
	next := &Future[any]{}
	d.addHandler(handler[T]{
		onSuccess: onSuccess,
		onError:   onError,
		next:      next,
	})
	return next
}

// Then registers typed callbacks for success and error cases.
//
// Per Promises/A+ 2.2.7:
//   - If onSuccess returns a value, next deferred is resolved with it.
//   - If onSuccess returns an error, next deferred is rejected with it.
//   - If onError returns a value, next deferred is resolved with it (recovery).
//   - If onError returns an error, next deferred is rejected with it.
//
// This is a free function (not a method) because Go does not support
// type parameters on methods. This allows R to be a concrete type,
// preserving type safety through the chain.
//
// Callbacks run on the goroutine that completes d, or on the caller's
// goroutine when d is already complete.
func Then[T, R any](d *Future[T], onSuccess func(T) (R, error), onError func(error) (R, error)) *Future[R] {
	next := &Future[R]{}
	d.addHandler(handler[T]{
		onSuccess: func(v T) (any, error) { return onSuccess(v) },
		onError:   func(err error) (any, error) { return onError(err) },
		next:      next,
	})
	return next
}

func (d *Future[T]) runHandler(h handler[T], state State, value T, err error) {
	var (
		result any
		herr   error
	)
	if state == Resolved {
		result, herr = h.onSuccess(value)
	} else {
		result, herr = h.onError(err)
	}
	if herr == nil {
		h.next.resolveAny(result)
		return
	}
	d.mu.Lock()
	d.occurredErr = multierror.Append(d.occurredErr, herr)
	d.mu.Unlock()
	h.next.rejectAny(herr)
}

// Await blocks until d completes or ctx is done.
func (d *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.Done():
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.value, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once d is resolved or rejected.
func (d *Future[T]) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doneChan()
}

func (d *Future[T]) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Future[T]) OccurredErr() error {
	d.mu.Lock()
	err := d.occurredErr
	handlers := append([]handler[T](nil), d.handlers...)
	d.mu.Unlock()
	for _, h := range handlers {
		nestedErr := h.next.OccurredErr()
		if nestedErr != nil {
			err = multierror.Append(err, nestedErr)
		}
	}
	return err
}

// All resolves with every value in input order once all deferreds are
// resolved, or rejects with the first error.
func All[T any](deferreds []Deferred[T]) *Future[[]T] {
	result := &Future[[]T]{}

	if len(deferreds) == 0 {
		result.Resolve([]T{})
		return result
	}

	var mu sync.Mutex
	count := len(deferreds)
	values := make([]T, count)
	resolvedCount := 0

	for i, d := range deferreds {
		idx := i
		d.Then(func(value T) (any, error) {
			mu.Lock()
			values[idx] = value
			resolvedCount++
			complete := resolvedCount == count
			mu.Unlock()
			if complete {
				result.Resolve(values)
			}
			return nil, nil
		}, func(err error) (any, error) {
			result.Reject(err)
			return nil, nil
		})
	}

	return result
}
