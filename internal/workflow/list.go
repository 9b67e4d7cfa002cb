// Package workflow holds the local copies of backend records that the user acts
// on (orders, seller applications, favorites). Every action follows one rule:
// submit, patch only the affected record on success, leave everything untouched
// on failure and hand the backend's error back unchanged.
package workflow

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNotFound is returned when an action targets a record not in the local list.
var ErrNotFound = errors.New("workflow: record not found")

// List is an ordered, keyed local copy of backend records.
type List[K comparable, T any] struct {
	mu    sync.RWMutex
	key   func(T) K
	order []K
	items map[K]T
}

// NewList creates an empty list keyed by key.
func NewList[K comparable, T any](key func(T) K) *List[K, T] {
	return &List[K, T]{key: key, items: make(map[K]T)}
}

// Replace swaps the whole list for a fresh listing, keeping its order.
func (l *List[K, T]) Replace(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = make([]K, 0, len(items))
	l.items = make(map[K]T, len(items))
	for _, it := range items {
		k := l.key(it)
		if _, dup := l.items[k]; !dup {
			l.order = append(l.order, k)
		}
		l.items[k] = it
	}
}

// Get returns one record.
func (l *List[K, T]) Get(k K) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	it, ok := l.items[k]
	return it, ok
}

// Items returns the records in listing order.
func (l *List[K, T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.items[k])
	}
	return out
}

// Len returns the number of records.
func (l *List[K, T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Put patches a record in place, or prepends it when new.
func (l *List[K, T]) Put(it T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.key(it)
	if _, ok := l.items[k]; !ok {
		l.order = slices.Insert(l.order, 0, k)
	}
	l.items[k] = it
}

// Apply runs action against the current copy of record k. On success the
// returned record replaces that entry and nothing else; on failure the list is
// left as it was and the error is returned unchanged. The lock is not held
// while action runs.
func (l *List[K, T]) Apply(ctx context.Context, k K, action func(ctx context.Context, current T) (T, error)) (T, error) {
	current, ok := l.Get(k)
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	updated, err := action(ctx, current)
	if err != nil {
		return current, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.items[k]; ok {
		l.items[k] = updated
	}
	return updated, nil
}
