// Package lazy provides settle-once readiness signals and memoized
// asynchronous values.
package lazy

import (
	"context"
	"sync"
)

// Signal is a one-shot readiness signal. It settles at most once, either
// resolved with a value or failed with an error, and every observer sees the
// same outcome regardless of when it asks.
type Signal[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewSignal returns a pending signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{done: make(chan struct{})}
}

// Resolve settles s with v. It reports whether this call settled the signal.
func (s *Signal[T]) Resolve(v T) bool {
	return s.settle(v, nil)
}

// Fail settles s with err. It reports whether this call settled the signal.
func (s *Signal[T]) Fail(err error) bool {
	var zero T
	return s.settle(zero, err)
}

func (s *Signal[T]) settle(v T, err error) bool {
	settled := false
	s.once.Do(func() {
		s.val, s.err = v, err
		close(s.done)
		settled = true
	})
	return settled
}

// Done returns a channel that is closed once s settles.
func (s *Signal[T]) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until s settles or ctx is done. A cancelled wait does not
// affect the signal.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	if s.Settled() {
		return s.val, s.err
	}
	select {
	case <-s.done:
		return s.val, s.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Settled reports whether s has resolved or failed.
func (s *Signal[T]) Settled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Value is a computation that runs at most once. Callers arriving while it
// is in flight share its result; a failure is cached like a success.
type Value[T any] struct {
	once sync.Once
	fn   func(context.Context) (T, error)
	sig  *Signal[T]
}

// NewValue returns a Value that computes fn on first use.
func NewValue[T any](fn func(context.Context) (T, error)) *Value[T] {
	return &Value[T]{fn: fn, sig: NewSignal[T]()}
}

// Start begins the computation if it has not begun. The computation runs
// detached from ctx's cancellation but keeps its values.
func (v *Value[T]) Start(ctx context.Context) {
	v.once.Do(func() {
		ctx := context.WithoutCancel(ctx)
		go func() {
			val, err := v.fn(ctx)
			if err != nil {
				v.sig.Fail(err)
				return
			}
			v.sig.Resolve(val)
		}()
	})
}

// Get starts the computation if needed and waits for its outcome.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.Start(ctx)
	return v.sig.Wait(ctx)
}

// Signal returns the signal the computation settles.
func (v *Value[T]) Signal() *Signal[T] {
	return v.sig
}
