// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Bill
// model. Error semantics match consignment_repo.go.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightops/go-freight-backend/internal/domain"
)

// CreateBill inserts a new bill with a UUID primary key and a normalized
// bill number. Unique violations map to ErrDuplicate.
func CreateBill(ctx context.Context, db *gorm.DB, b *domain.Bill) (*domain.Bill, error) {
	b.ID = uuid.NewString()
	b.BillNumber = domain.NormalizeBusinessKey(b.BillNumber)
	b.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return b, nil
}

// GetBill fetches a bill by ID or returns ErrNotFound.
func GetBill(ctx context.Context, db *gorm.DB, id string) (*domain.Bill, error) {
	var b domain.Bill
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBills returns the total number of bills.
func CountBills(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Bill{}).Count(&total).Error
	return total, err
}

// ListBillsPage returns a page of bills ordered by creation time descending.
func ListBillsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Bill, error) {
	var out []domain.Bill
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateBill applies the mutable fields of upd to the bill identified by
// id. Returns ErrNotFound when no row matches, ErrDuplicate on a bill
// number collision.
func UpdateBill(ctx context.Context, db *gorm.DB, id string, upd *domain.Bill) (*domain.Bill, error) {
	res := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"bill_number": domain.NormalizeBusinessKey(upd.BillNumber),
			"party":       upd.Party,
			"amount":      upd.Amount,
			"bill_date":   upd.BillDate,
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
	return GetBill(ctx, db, id)
}

// BillSnapshots returns a CachedRecord per non-deleted bill.
func BillSnapshots(ctx context.Context, db *gorm.DB) ([]domain.CachedRecord, error) {
	var rows []domain.Bill
	if err := db.WithContext(ctx).Select("id", "bill_number").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CachedRecord, 0, len(rows))
	for _, b := range rows {
		out = append(out, domain.CachedRecord{
			Kind:        domain.KindBilling,
			BusinessKey: b.BillNumber,
			BackendID:   b.ID,
		})
	}
	return out, nil
}
