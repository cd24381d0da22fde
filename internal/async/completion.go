// Package async bridges callback-style completions into blocking waits.
package async

import (
	"context"
	"sync"
)

// Completion is a one-shot result slot. It is completed exactly once, from any
// goroutine, and may be awaited by any number of goroutines.
type Completion[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func New[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

// Complete stores v. Returns false if the completion was already settled.
func (c *Completion[T]) Complete(v T) bool {
	return c.settle(v, nil)
}

// Fail stores err. Returns false if the completion was already settled.
func (c *Completion[T]) Fail(err error) bool {
	var zero T
	return c.settle(zero, err)
}

func (c *Completion[T]) settle(v T, err error) bool {
	settled := false
	c.once.Do(func() {
		c.value, c.err = v, err
		close(c.done)
		settled = true
	})
	return settled
}

// Done is closed once the completion is settled.
func (c *Completion[T]) Done() <-chan struct{} { return c.done }

// Wait blocks until the completion is settled or ctx is done.
// A deadline on ctx is the way to bound the wait.
func (c *Completion[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, c.err
	default:
	}
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, context.Cause(ctx)
	}
}

// Result peeks without blocking. ok is false while unsettled.
func (c *Completion[T]) Result() (v T, err error, ok bool) {
	select {
	case <-c.done:
		return c.value, c.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
