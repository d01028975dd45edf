// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Challan
// model. Error semantics match consignment_repo.go.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightops/go-freight-backend/internal/domain"
)

// CreateChallan inserts a new challan with a UUID primary key and a
// normalized challan number. Unique violations map to ErrDuplicate.
func CreateChallan(ctx context.Context, db *gorm.DB, ch *domain.Challan) (*domain.Challan, error) {
	ch.ID = uuid.NewString()
	ch.ChallanNumber = domain.NormalizeBusinessKey(ch.ChallanNumber)
	ch.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(ch).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return ch, nil
}

// GetChallan fetches a challan by ID or returns ErrNotFound.
func GetChallan(ctx context.Context, db *gorm.DB, id string) (*domain.Challan, error) {
	var ch domain.Challan
	if err := db.WithContext(ctx).Where("id = ?", id).First(&ch).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

// CountChallans returns the total number of challans.
func CountChallans(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Challan{}).Count(&total).Error
	return total, err
}

// ListChallansPage returns a page of challans ordered by creation time
// descending.
func ListChallansPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Challan, error) {
	var out []domain.Challan
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateChallan applies the mutable fields of upd to the challan identified
// by id. Returns ErrNotFound when no row matches, ErrDuplicate on a challan
// number collision.
func UpdateChallan(ctx context.Context, db *gorm.DB, id string, upd *domain.Challan) (*domain.Challan, error) {
	res := db.WithContext(ctx).
		Model(&domain.Challan{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"challan_number": domain.NormalizeBusinessKey(upd.ChallanNumber),
			"vehicle_number": upd.VehicleNumber,
			"driver_name":    upd.DriverName,
			"route":          upd.Route,
			"challan_date":   upd.ChallanDate,
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
	return GetChallan(ctx, db, id)
}

// ChallanSnapshots returns a CachedRecord per non-deleted challan.
func ChallanSnapshots(ctx context.Context, db *gorm.DB) ([]domain.CachedRecord, error) {
	var rows []domain.Challan
	if err := db.WithContext(ctx).Select("id", "challan_number").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CachedRecord, 0, len(rows))
	for _, ch := range rows {
		out = append(out, domain.CachedRecord{
			Kind:        domain.KindChallanBook,
			BusinessKey: ch.ChallanNumber,
			BackendID:   ch.ID,
		})
	}
	return out, nil
}
