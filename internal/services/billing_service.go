// Package services – BillingService
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/freightops/go-freight-backend/internal/domain"
	"github.com/freightops/go-freight-backend/internal/guard"
	"github.com/freightops/go-freight-backend/internal/realtime"
	"github.com/freightops/go-freight-backend/internal/records"
	"github.com/freightops/go-freight-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BillingService coordinates freight bill persistence and guards.
type BillingService struct {
	DB     *gorm.DB
	Guards Guards
	Writer guard.Writer
	Cache  *records.Cache
	Events RecordEvents
}

// Create validates and persists a new bill behind the guard pipeline.
func (s *BillingService) Create(ctx context.Context, formID string, b *domain.Bill) (*domain.Bill, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("bill.number", b.BillNumber)),
	)
	defer span.End()

	if err := s.normalize(b); err != nil {
		return nil, err
	}
	if formID == "" {
		formID = FormBilling
	}

	if rej := s.Guards.runCreateGates(formID, domain.KindBilling, b.BillNumber, ""); rej != nil {
		return nil, rej
	}
	if _, err := s.Writer.Write(ctx, b); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			s.Guards.Throttle.Release(formID)
		}
		return nil, err
	}

	s.publish(realtime.ActionCreated, b)
	return b, nil
}

// Get returns a bill by ID or ErrRecordNotFound.
func (s *BillingService) Get(ctx context.Context, id string) (*domain.Bill, error) {
	b, err := repo.GetBill(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	return b, err
}

// ListPage returns a page of bills with the total count.
func (s *BillingService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Bill, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountBills(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Bill{}, 0, nil
	}
	items, err := repo.ListBillsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Update persists changes to an existing bill, excluding its own ID from
// the uniqueness check.
func (s *BillingService) Update(ctx context.Context, formID, id string, upd *domain.Bill) (*domain.Bill, error) {
	if err := s.normalize(upd); err != nil {
		return nil, err
	}
	if formID == "" {
		formID = FormBilling
	}

	if rej := s.Guards.runCreateGates(formID, domain.KindBilling, upd.BillNumber, id); rej != nil {
		return nil, rej
	}
	updated, err := repo.UpdateBill(ctx, s.DB, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrRecordNotFound
		case errors.Is(err, repo.ErrDuplicate):
			s.Guards.Throttle.Release(formID)
		}
		return nil, err
	}

	s.publish(realtime.ActionUpdated, updated)
	return updated, nil
}

func (s *BillingService) normalize(b *domain.Bill) error {
	b.BillNumber = domain.NormalizeBusinessKey(b.BillNumber)
	if b.BillNumber == "" {
		return ErrMissingBusinessKey
	}
	b.Party = strings.TrimSpace(b.Party)
	if b.Party == "" {
		return ErrMissingParty
	}
	return nil
}

func (s *BillingService) publish(action string, b *domain.Bill) {
	rec := domain.CachedRecord{
		Kind:        domain.KindBilling,
		BusinessKey: b.BillNumber,
		BackendID:   b.ID,
	}
	if s.Cache != nil {
		s.Cache.Upsert(rec)
	}
	if s.Events != nil {
		s.Events.Publish(realtime.Event{
			Action:      action,
			Kind:        rec.Kind,
			BackendID:   rec.BackendID,
			BusinessKey: rec.BusinessKey,
		})
	}
}
