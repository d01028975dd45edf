// Package services – ChallanService
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

// ChallanService coordinates challan persistence and guards.
type ChallanService struct {
	DB     *gorm.DB
	Guards Guards
	Writer guard.Writer
	Cache  *records.Cache
	Events RecordEvents
}

// Create validates and persists a new challan behind the guard pipeline.
func (s *ChallanService) Create(ctx context.Context, formID string, ch *domain.Challan) (*domain.Challan, error) {
	tr := otel.Tracer("services/ChallanService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("challan.number", ch.ChallanNumber)),
	)
	defer span.End()

	if err := s.normalize(ch); err != nil {
		return nil, err
	}
	if formID == "" {
		formID = FormChallanBook
	}

	if rej := s.Guards.runCreateGates(formID, domain.KindChallanBook, ch.ChallanNumber, ""); rej != nil {
		return nil, rej
	}
	if _, err := s.Writer.Write(ctx, ch); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			s.Guards.Throttle.Release(formID)
		}
		return nil, err
	}

	s.publish(realtime.ActionCreated, ch)
	return ch, nil
}

// Get returns a challan by ID or ErrRecordNotFound.
func (s *ChallanService) Get(ctx context.Context, id string) (*domain.Challan, error) {
	ch, err := repo.GetChallan(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	return ch, err
}

// ListPage returns a page of challans with the total count.
func (s *ChallanService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Challan, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountChallans(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Challan{}, 0, nil
	}
	items, err := repo.ListChallansPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Update persists changes to an existing challan, excluding its own ID
// from the uniqueness check.
func (s *ChallanService) Update(ctx context.Context, formID, id string, upd *domain.Challan) (*domain.Challan, error) {
	if err := s.normalize(upd); err != nil {
		return nil, err
	}
	if formID == "" {
		formID = FormChallanBook
	}

	if rej := s.Guards.runCreateGates(formID, domain.KindChallanBook, upd.ChallanNumber, id); rej != nil {
		return nil, rej
	}
	updated, err := repo.UpdateChallan(ctx, s.DB, id, upd)
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

func (s *ChallanService) normalize(ch *domain.Challan) error {
	ch.ChallanNumber = domain.NormalizeBusinessKey(ch.ChallanNumber)
	if ch.ChallanNumber == "" {
		return ErrMissingBusinessKey
	}
	ch.DriverName = strings.TrimSpace(ch.DriverName)
	if ch.DriverName == "" {
		return ErrMissingParty
	}
	ch.VehicleNumber = strings.ToUpper(strings.TrimSpace(ch.VehicleNumber))
	ch.Route = strings.TrimSpace(ch.Route)
	return nil
}

func (s *ChallanService) publish(action string, ch *domain.Challan) {
	rec := domain.CachedRecord{
		Kind:        domain.KindChallanBook,
		BusinessKey: ch.ChallanNumber,
		BackendID:   ch.ID,
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
