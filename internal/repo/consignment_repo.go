// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ConsignmentNote model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a note is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Unique-constraint violations on the LR number are mapped to
//     ErrDuplicate so the service layer can surface a stable conflict.
//   - On other DB errors (connectivity issues, etc.), the raw gorm error
//     is propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ConsignmentService) which enforces the guard pipeline,
// business rules, and cache maintenance.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightops/go-freight-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same business key already
// exists. It is the durable backstop behind the in-memory uniqueness guard.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateConsignment inserts a new consignment note. The note ID is a
// randomly generated UUID (string) and CreatedAt is set to UTC. The LR
// number is stored normalized.
//
// On a unique-index collision it returns ErrDuplicate.
func CreateConsignment(ctx context.Context, db *gorm.DB, n *domain.ConsignmentNote) (*domain.ConsignmentNote, error) {
	n.ID = uuid.NewString()
	n.LRNumber = domain.NormalizeBusinessKey(n.LRNumber)
	n.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return n, nil
}

// GetConsignment fetches a single note by ID. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetConsignment(ctx context.Context, db *gorm.DB, id string) (*domain.ConsignmentNote, error) {
	var n domain.ConsignmentNote
	err := db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CountConsignments returns the total number of notes, optionally filtered
// by kind ("" counts all kinds).
func CountConsignments(ctx context.Context, db *gorm.DB, kind string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.ConsignmentNote{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListConsignmentsPage returns a paginated slice of notes ordered by
// creation time descending, optionally filtered by kind. Use
// CountConsignments to obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListConsignmentsPage(ctx context.Context, db *gorm.DB, kind string, offset, limit int) ([]domain.ConsignmentNote, error) {
	q := db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []domain.ConsignmentNote
	err := q.Find(&out).Error
	return out, err
}

// UpdateConsignment applies the mutable fields of upd to the note
// identified by id. The LR number is re-normalized; unique violations map
// to ErrDuplicate and a missing row to ErrNotFound.
func UpdateConsignment(ctx context.Context, db *gorm.DB, id string, upd *domain.ConsignmentNote) (*domain.ConsignmentNote, error) {
	res := db.WithContext(ctx).
		Model(&domain.ConsignmentNote{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"lr_number":    domain.NormalizeBusinessKey(upd.LRNumber),
			"consignor":    upd.Consignor,
			"consignee":    upd.Consignee,
			"from_station": upd.FromStation,
			"to_station":   upd.ToStation,
			"freight":      upd.Freight,
			"note_date":    upd.NoteDate,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrDuplicate
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetConsignment(ctx, db, id)
}

// ConsignmentSnapshots returns a CachedRecord per non-deleted note, used to
// warm the records cache at startup.
func ConsignmentSnapshots(ctx context.Context, db *gorm.DB) ([]domain.CachedRecord, error) {
	var notes []domain.ConsignmentNote
	if err := db.WithContext(ctx).Select("id", "kind", "lr_number").Find(&notes).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CachedRecord, 0, len(notes))
	for _, n := range notes {
		out = append(out, domain.CachedRecord{
			Kind:        domain.ConsignmentRecordKind(n.Kind),
			BusinessKey: n.LRNumber,
			BackendID:   n.ID,
		})
	}
	return out, nil
}
