// Package circuit implements the L3 circuit builder and runtime (spec.md
// §4.4): a directed graph of operators connected by typed stream handles,
// scheduled in topological order and stepped once per call.
package circuit

import "sync"

// StreamHandle is a single-cell mailbox: a typed, mutable container holding
// at most one message between the moment it's Set and the moment it's
// Taken (spec.md §9 "Stream handles as mailboxes" — "not a shared queue,
// not an async channel"). Writers call Set before or during a step; the
// node that owns this handle as an input calls Take once, which clears it.
type StreamHandle[T any] struct {
	mu  sync.Mutex
	val T
	has bool
}

// NewStreamHandle creates an empty handle.
func NewStreamHandle[T any]() *StreamHandle[T] {
	return &StreamHandle[T]{}
}

// Set stores v, overwriting anything unread.
func (h *StreamHandle[T]) Set(v T) {
	h.mu.Lock()
	h.val = v
	h.has = true
	h.mu.Unlock()
}

// Take returns the stored value and clears the cell, or the zero value and
// false if nothing was Set since the last Take.
func (h *StreamHandle[T]) Take() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.has {
		var zero T
		return zero, false
	}

	v := h.val
	h.has = false

	var zero T
	h.val = zero

	return v, true
}

// Peek returns the stored value without clearing it. Output handles and the
// clock handle are read this way: an external observer, or a mediator
// reading a feedback edge, must not race the producer clearing its own
// write.
func (h *StreamHandle[T]) Peek() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.val, h.has
}

// Value returns the stored value, or the zero value if unset. Satisfies
// operators.Clock for a *StreamHandle[int64] returned by AddClock.
func (h *StreamHandle[T]) Value() T {
	v, _ := h.Peek()
	return v
}
