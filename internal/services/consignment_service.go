// Package services – ConsignmentService
//
// This file implements the ConsignmentService, which owns the lifecycle of
// consignment notes (LRs). It validates and normalizes inputs, runs the
// guard pipeline (throttle → uniqueness) before any side effect, writes
// creates through the shared deduplicating writer, and keeps the records
// cache and the realtime feed current on every accepted write.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// include the record kind and business key.
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

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// stationCaser normalizes station names to title case ("delhi" → "Delhi").
var stationCaser = cases.Title(language.English)

// ConsignmentService coordinates consignment note persistence and guards.
type ConsignmentService struct {
	DB     *gorm.DB
	Guards Guards
	Writer guard.Writer
	Cache  *records.Cache
	Events RecordEvents
}

// Create validates and persists a new consignment note. formID keys the
// submission throttle; when empty, the default form for the note's kind is
// used. Rejections come back as *guard.Rejection wrapping the gate's
// sentinel.
func (s *ConsignmentService) Create(ctx context.Context, formID string, n *domain.ConsignmentNote) (*domain.ConsignmentNote, error) {
	tr := otel.Tracer("services/ConsignmentService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("consignment.kind", n.Kind),
			attribute.String("consignment.lr_number", n.LRNumber),
		),
	)
	defer span.End()

	if err := s.normalize(n); err != nil {
		return nil, err
	}
	if formID == "" {
		formID = defaultConsignmentForm(n.Kind)
	}

	kind := domain.ConsignmentRecordKind(n.Kind)
	if rej := s.Guards.runCreateGates(formID, kind, n.LRNumber, ""); rej != nil {
		return nil, rej
	}

	if _, err := s.Writer.Write(ctx, n); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// The DB backstop caught what the cache missed; same recovery
			// as a uniqueness rejection.
			s.Guards.Throttle.Release(formID)
		}
		return nil, err
	}

	s.publish(realtime.ActionCreated, n)
	return n, nil
}

// Get returns a note by ID or ErrRecordNotFound.
func (s *ConsignmentService) Get(ctx context.Context, id string) (*domain.ConsignmentNote, error) {
	n, err := repo.GetConsignment(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	return n, err
}

// ListPage returns a page of notes, optionally filtered by kind.
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ConsignmentService) ListPage(ctx context.Context, kind string, page, pageSize int) ([]domain.ConsignmentNote, int64, error) {
	if kind != "" && kind != domain.ConsignmentKindBooking && kind != domain.ConsignmentKindNonBooking {
		return nil, 0, ErrInvalidKind
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountConsignments(ctx, s.DB, kind)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ConsignmentNote{}, 0, nil
	}
	items, err := repo.ListConsignmentsPage(ctx, s.DB, kind, offset, pageSize)
	return items, total, err
}

// Update validates and persists changes to an existing note. The note's
// own ID is excluded from its uniqueness check so an edit never conflicts
// with itself.
func (s *ConsignmentService) Update(ctx context.Context, formID, id string, upd *domain.ConsignmentNote) (*domain.ConsignmentNote, error) {
	tr := otel.Tracer("services/ConsignmentService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("consignment.id", id)),
	)
	defer span.End()

	if err := s.normalize(upd); err != nil {
		return nil, err
	}
	if formID == "" {
		formID = defaultConsignmentForm(upd.Kind)
	}

	kind := domain.ConsignmentRecordKind(upd.Kind)
	if rej := s.Guards.runCreateGates(formID, kind, upd.LRNumber, id); rej != nil {
		return nil, rej
	}

	updated, err := repo.UpdateConsignment(ctx, s.DB, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrRecordNotFound
		case errors.Is(err, repo.ErrDuplicate):
			s.Guards.Throttle.Release(formID)
			return nil, err
		}
		return nil, err
	}

	s.publish(realtime.ActionUpdated, updated)
	return updated, nil
}

// normalize trims and validates the note in place.
func (s *ConsignmentService) normalize(n *domain.ConsignmentNote) error {
	if n.Kind != domain.ConsignmentKindBooking && n.Kind != domain.ConsignmentKindNonBooking {
		return ErrInvalidKind
	}
	n.LRNumber = domain.NormalizeBusinessKey(n.LRNumber)
	if n.LRNumber == "" {
		return ErrMissingBusinessKey
	}
	n.Consignor = strings.TrimSpace(n.Consignor)
	n.Consignee = strings.TrimSpace(n.Consignee)
	if n.Consignor == "" || n.Consignee == "" {
		return ErrMissingParty
	}
	n.FromStation = stationCaser.String(strings.TrimSpace(n.FromStation))
	n.ToStation = stationCaser.String(strings.TrimSpace(n.ToStation))
	return nil
}

func (s *ConsignmentService) publish(action string, n *domain.ConsignmentNote) {
	rec := domain.CachedRecord{
		Kind:        domain.ConsignmentRecordKind(n.Kind),
		BusinessKey: n.LRNumber,
		BackendID:   n.ID,
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

// defaultConsignmentForm maps a consignment kind to its dashboard form.
func defaultConsignmentForm(kind string) string {
	if kind == domain.ConsignmentKindNonBooking {
		return FormNonBookingLR
	}
	return FormLR
}
