// Package guard – write deduplication
//
// This file implements the deduplicating decorator around the record
// writer: the single entry point through which every create reaches the
// database. An invocation whose canonical payload equals the previous
// one's, within the dedup window, is rejected without touching the wrapped
// writer. The slot is overwritten on every accepted call — not just
// successful ones — so it always reflects the most recent attempt.
//
// The dedup key is the full canonical payload: any field difference defeats
// the window. Exact-duplicate-only is the intended behavior.
package guard

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Writer is the single create entry point the deduplicator wraps. Write
// persists the payload and returns the backend-assigned identifier.
type Writer interface {
	Write(ctx context.Context, payload any) (string, error)
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, payload any) (string, error)

// Write implements Writer.
func (f WriterFunc) Write(ctx context.Context, payload any) (string, error) {
	return f(ctx, payload)
}

// DeduplicatingWriter collapses identical payloads submitted within a short
// window into one forwarded call. Composed at construction time around an
// injected Writer; it never throws on its own account, only returns
// ErrDuplicateCreation. Safe for concurrent use.
type DeduplicatingWriter struct {
	next   Writer
	window time.Duration
	clock  func() time.Time

	mu          sync.Mutex
	lastPayload string
	lastAt      time.Time
}

// NewDeduplicatingWriter wraps next with a dedup window. A nil clock
// defaults to time.Now.
func NewDeduplicatingWriter(next Writer, window time.Duration, clock func() time.Time) *DeduplicatingWriter {
	if clock == nil {
		clock = time.Now
	}
	return &DeduplicatingWriter{next: next, window: window, clock: clock}
}

// Write serializes payload canonically and either short-circuits with
// ErrDuplicateCreation or records the call and forwards it. Errors from the
// wrapped writer propagate unchanged.
func (w *DeduplicatingWriter) Write(ctx context.Context, payload any) (string, error) {
	ser, err := CanonicalJSON(payload)
	if err != nil {
		// Cannot compare what cannot be serialized; forward untouched.
		return w.next.Write(ctx, payload)
	}

	now := w.clock()
	w.mu.Lock()
	if w.lastPayload == ser && !w.lastAt.IsZero() && now.Sub(w.lastAt) < w.window {
		w.mu.Unlock()
		return "", ErrDuplicateCreation
	}
	w.lastPayload = ser
	w.lastAt = now
	w.mu.Unlock()

	return w.next.Write(ctx, payload)
}

// CanonicalJSON produces a deterministic serialization of v: the value is
// marshaled, decoded into generic form, and re-marshaled so that object
// keys come out sorted regardless of the source type's field order.
func CanonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
