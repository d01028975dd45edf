// Package services – guard wiring
//
// Every create path runs the same ordered gates: the per-form submission
// throttle, then the business-key uniqueness check, then the deduplicating
// writer at the boundary closest to the database. This file holds the
// shared bundle and the pipeline construction so the three services stay
// identical in how they guard writes.
package services

import (
	"errors"

	"github.com/freightops/go-freight-backend/internal/domain"
	"github.com/freightops/go-freight-backend/internal/guard"
	"github.com/freightops/go-freight-backend/internal/realtime"
)

// Default form identifiers, matching the dashboard's form elements. A
// client may override the throttle key per request (e.g. the daily
// register screen submits booking notes under its own form).
const (
	FormDailyRegister = "dailyRegisterForm"
	FormLR            = "lrForm"
	FormNonBookingLR  = "nonBookingLRForm"
	FormChallanBook   = "challanBookForm"
	FormBilling       = "billingForm"
)

// RecordEvents publishes record-change events to subscribed dashboard
// tabs. Satisfied by realtime.Dispatcher.
type RecordEvents interface {
	Publish(ev realtime.Event)
}

// Guards bundles the pre-write gates shared by all services.
type Guards struct {
	Throttle *guard.SubmissionThrottle
	Unique   *guard.UniquenessIndex
}

// runCreateGates executes throttle → uniqueness for a submission. On a
// uniqueness rejection the throttle is released so the operator's corrected
// resubmission is not blocked by the cooldown. excludeID is empty for
// creates and the record's own ID for updates.
func (g Guards) runCreateGates(formID string, kind domain.RecordKind, key, excludeID string) *guard.Rejection {
	pipe := guard.NewPipeline(
		guard.Validator{Name: "throttle", Check: func() error {
			if !g.Throttle.TryAcquire(formID) {
				return guard.ErrThrottled
			}
			return nil
		}},
		guard.Validator{Name: "uniqueness", Check: func() error {
			if g.Unique.Exists(kind, key, excludeID) {
				return guard.ErrDuplicateBusinessKey
			}
			return nil
		}},
	)
	rej := pipe.Run()
	if rej != nil && errors.Is(rej, guard.ErrDuplicateBusinessKey) {
		rej.Key = domain.NormalizeBusinessKey(key)
		g.Throttle.Release(formID)
	}
	return rej
}
