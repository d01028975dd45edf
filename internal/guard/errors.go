// Package guard implements the write-protection layer: a per-form
// submission throttle, a business-key uniqueness check over the records
// cache, and a deduplicating decorator around the record writer. Each gate
// rejects in-band with a sentinel error; none of them panics or raises on
// its own account.
package guard

import "errors"

var (
	// ErrThrottled is returned when a form submission lands inside the
	// cooldown window of a previously accepted submission. Expected to be
	// a transient double-fire, so callers surface it quietly.
	ErrThrottled = errors.New("submission throttled")

	// ErrDuplicateBusinessKey is returned when the uniqueness check finds
	// another active record with the same normalized business key.
	ErrDuplicateBusinessKey = errors.New("duplicate business key")

	// ErrDuplicateCreation is returned by the deduplicating writer when an
	// identical payload was accepted inside the dedup window. The wrapped
	// writer is not invoked.
	ErrDuplicateCreation = errors.New("duplicate creation blocked")
)
