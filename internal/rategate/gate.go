// Package rategate serializes access to a shared resource behind a minimum
// inter-call interval.
package rategate

import (
	"context"
	"time"
)

// Gate wraps a shared resource so that protected calls run one at a time,
// spaced at least Interval apart measured from the end of the previous call.
// The last-use stamp is taken after the protected call returns, so a slow call
// never lets the next caller start early.
//
// A fresh gate admits its first caller immediately.
type Gate[T any] struct {
	interval time.Duration
	resource T

	// slot is a 1-slot semaphore; whoever holds it owns both the resource and
	// the last-use stamp.
	slot chan struct{}
	last time.Time
}

func New[T any](interval time.Duration, resource T) *Gate[T] {
	return &Gate[T]{
		interval: interval,
		resource: resource,
		slot:     make(chan struct{}, 1),
		last:     time.Now().Add(-interval),
	}
}

// Interval returns the configured minimum spacing.
func (g *Gate[T]) Interval() time.Duration { return g.interval }

// Use runs fn with exclusive access to the resource once the interval since
// the previous completed call has elapsed. It returns early with ctx.Err()
// if the context is cancelled while waiting; fn's own errors pass through
// untouched.
func (g *Gate[T]) Use(ctx context.Context, fn func(T) error) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()

	if wait := g.interval - time.Since(g.last); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	err := fn(g.resource)
	g.last = time.Now()
	return err
}
