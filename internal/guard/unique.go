// Package guard – uniqueness index
//
// This file implements the business-key existence check over the records
// cache. The scan is linear, which is acceptable because the cache is small
// and fully materialized in memory; the durable backstop is the unique
// index in the database.
package guard

import (
	"github.com/freightops/go-freight-backend/internal/domain"
)

// SnapshotSource supplies the current record snapshots. Satisfied by
// records.Cache.
type SnapshotSource interface {
	Snapshot() []domain.CachedRecord
}

// UniquenessIndex answers whether a business key is already taken within a
// record kind.
type UniquenessIndex struct {
	source SnapshotSource
}

// NewUniquenessIndex constructs an index over the given source.
func NewUniquenessIndex(source SnapshotSource) *UniquenessIndex {
	return &UniquenessIndex{source: source}
}

// Exists reports whether any cached record of the given kind carries the
// same normalized business key and a backend ID different from excludeID.
// A record being edited never matches against itself.
//
// The check fails open: an empty key or an absent source returns false, so
// a cold cache cannot block writes it cannot verify.
func (u *UniquenessIndex) Exists(kind domain.RecordKind, key, excludeID string) bool {
	norm := domain.NormalizeBusinessKey(key)
	if norm == "" || u == nil || u.source == nil {
		return false
	}
	for _, rec := range u.source.Snapshot() {
		if rec.Kind != kind {
			continue
		}
		if rec.BackendID != "" && rec.BackendID == excludeID {
			continue
		}
		if domain.NormalizeBusinessKey(rec.BusinessKey) == norm {
			return true
		}
	}
	return false
}
