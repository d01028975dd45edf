// Package records maintains the in-memory cache of business-keyed record
// snapshots. The cache mirrors what the dashboard keeps client-side: a
// denormalized view of every consignment note, challan, and bill, kept
// current by the services on every accepted write and consumed by the
// uniqueness guard and the realtime change feed.
//
// The cache is process-wide shared state on a multi-threaded host, so all
// access is serialized through a RWMutex.
package records

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/freightops/go-freight-backend/internal/domain"
	"github.com/freightops/go-freight-backend/internal/repo"
)

// Cache holds record snapshots keyed by backend ID.
type Cache struct {
	mu   sync.RWMutex
	byID map[string]domain.CachedRecord
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{byID: make(map[string]domain.CachedRecord)}
}

// Replace swaps the entire cache contents with the given snapshots.
// Used at startup and on full resyncs.
func (c *Cache) Replace(snapshots []domain.CachedRecord) {
	next := make(map[string]domain.CachedRecord, len(snapshots))
	for _, s := range snapshots {
		if s.BackendID == "" {
			continue
		}
		next[s.BackendID] = s
	}
	c.mu.Lock()
	c.byID = next
	c.mu.Unlock()
}

// Upsert inserts or overwrites the snapshot for its backend ID.
func (c *Cache) Upsert(rec domain.CachedRecord) {
	if rec.BackendID == "" {
		return
	}
	c.mu.Lock()
	c.byID[rec.BackendID] = rec
	c.mu.Unlock()
}

// Remove drops the snapshot for the given backend ID, if present.
func (c *Cache) Remove(backendID string) {
	c.mu.Lock()
	delete(c.byID, backendID)
	c.mu.Unlock()
}

// Snapshot returns a copy of all cached records. Order is unspecified.
func (c *Cache) Snapshot() []domain.CachedRecord {
	c.mu.RLock()
	out := make([]domain.CachedRecord, 0, len(c.byID))
	for _, r := range c.byID {
		out = append(out, r)
	}
	c.mu.RUnlock()
	return out
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	n := len(c.byID)
	c.mu.RUnlock()
	return n
}

// Warm loads every snapshot from the repository and replaces the cache
// contents. Called once at startup before the HTTP surface comes up.
func Warm(ctx context.Context, db *gorm.DB, c *Cache) error {
	consignments, err := repo.ConsignmentSnapshots(ctx, db)
	if err != nil {
		return err
	}
	challans, err := repo.ChallanSnapshots(ctx, db)
	if err != nil {
		return err
	}
	bills, err := repo.BillSnapshots(ctx, db)
	if err != nil {
		return err
	}
	all := make([]domain.CachedRecord, 0, len(consignments)+len(challans)+len(bills))
	all = append(all, consignments...)
	all = append(all, challans...)
	all = append(all, bills...)
	c.Replace(all)
	return nil
}
