// Package services defines the business logic for consignment notes,
// challans, and bills. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Guard rejections (throttle, uniqueness, dedup) are not redefined here;
// they surface as the guard package's sentinels, wrapped in a
// guard.Rejection that names the gate which stopped the submission.
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

var (
	// ErrInvalidKind is returned when a consignment create or update names
	// an unknown consignment kind.
	ErrInvalidKind = errors.New("invalid consignment kind")

	// ErrMissingBusinessKey is returned when the business key field
	// (LR number, challan number, bill number) is empty after trimming.
	ErrMissingBusinessKey = errors.New("business key is required")

	// ErrMissingParty is returned when a required party field (consignor,
	// consignee, bill party, driver) is empty.
	ErrMissingParty = errors.New("party name is required")

	// ErrRecordNotFound indicates that the requested record does not exist.
	ErrRecordNotFound = errors.New("record not found")
)
