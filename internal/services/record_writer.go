// Package services – record writer
//
// RecordWriter is the single create entry point to the database: every
// record type funnels through Write so the deduplicating decorator sees all
// creates in one place, exactly one boundary away from persistence.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/freightops/go-freight-backend/internal/domain"
	"github.com/freightops/go-freight-backend/internal/repo"
)

// ErrUnsupportedPayload is returned when Write receives a payload type the
// writer does not persist. Indicates a wiring bug, not user input.
var ErrUnsupportedPayload = errors.New("unsupported payload type")

// RecordWriter persists create payloads. It implements guard.Writer and is
// wrapped by guard.NewDeduplicatingWriter at composition time.
type RecordWriter struct {
	DB *gorm.DB
}

// Write dispatches on the payload's concrete type, persists it, and
// returns the backend-assigned ID. The payload struct is mutated in place
// (ID, normalized business key) so callers keep their reference.
func (w RecordWriter) Write(ctx context.Context, payload any) (string, error) {
	switch p := payload.(type) {
	case *domain.ConsignmentNote:
		created, err := repo.CreateConsignment(ctx, w.DB, p)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	case *domain.Challan:
		created, err := repo.CreateChallan(ctx, w.DB, p)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	case *domain.Bill:
		created, err := repo.CreateBill(ctx, w.DB, p)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	default:
		return "", ErrUnsupportedPayload
	}
}
