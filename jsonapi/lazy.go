package jsonapi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Lazy is a memoized, deferred lookup. The resolver runs on the first Get, and again only if an earlier run
// failed with context.Canceled or context.DeadlineExceeded: those belong to the caller, not to the lookup,
// so they are returned without being memoized. Any other error is memoized like a value.
// Copies of a *Lazy share the same cell, so a model resolved in one pipeline stage
// is visible to every later stage.
type Lazy[T any] struct {
	mu       sync.Mutex
	resolved atomic.Bool
	resolver func(ctx context.Context) (T, error)
	value    T
	err      error
}

// NewLazy wraps resolver in an unevaluated cell.
func NewLazy[T any](resolver func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{resolver: resolver}
}

// Resolved builds a cell that already holds value.
func Resolved[T any](value T) *Lazy[T] {
	l := &Lazy[T]{value: value}
	l.resolved.Store(true)

	return l
}

// Get forces the cell. The context of the call that resolves it is the one passed to the resolver.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if l.resolved.Load() {
		return l.value, l.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resolved.Load() {
		return l.value, l.err
	}

	value, err := l.resolver(ctx)
	if isContextError(err) {
		var zero T
		return zero, err
	}

	l.value, l.err = value, err
	l.resolver = nil
	l.resolved.Store(true)

	return l.value, l.err
}

// IsResolved reports whether the cell has been forced.
func (l *Lazy[T]) IsResolved() bool {
	return l.resolved.Load()
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
