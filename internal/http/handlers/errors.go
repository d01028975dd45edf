// Package handlers defines the HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case and stable: clients branch on
// them programmatically, so renaming one is a breaking change.
//
// Generic codes mirror common HTTP status semantics; the guard codes name
// which write protection rejected the submission so the dashboard can show
// the matching alert (cooldown notice, duplicate-key alert, or silently
// swallow a double-click).
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freightops/go-freight-backend/internal/guard"
	"github.com/freightops/go-freight-backend/internal/http/middleware"
	"github.com/freightops/go-freight-backend/internal/repo"
	"github.com/freightops/go-freight-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Guard rejections:
	ErrCodeThrottled     = "throttled"
	ErrCodeDuplicateKey  = "duplicate_key"
	ErrCodeDuplicateCall = "duplicate_call"
)

// failFromErr translates service and guard errors into the envelope. Guard
// rejections are also counted in the Prometheus guard metrics.
func failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, guard.ErrThrottled):
		middleware.ObserveGuardRejection("throttle")
		c.Header("Retry-After", "2")
		fail(c, http.StatusTooManyRequests, ErrCodeThrottled,
			"please wait a moment before submitting this form again")
	case errors.Is(err, guard.ErrDuplicateBusinessKey):
		middleware.ObserveGuardRejection("uniqueness")
		msg := "a record with this number already exists"
		var rej *guard.Rejection
		if errors.As(err, &rej) && rej.Key != "" {
			msg = fmt.Sprintf("a record with number %q already exists", rej.Key)
		}
		fail(c, http.StatusConflict, ErrCodeDuplicateKey, msg)
	case errors.Is(err, guard.ErrDuplicateCreation):
		middleware.ObserveGuardRejection("dedupe")
		fail(c, http.StatusConflict, ErrCodeDuplicateCall,
			"an identical submission was just processed")
	case errors.Is(err, services.ErrInvalidKind),
		errors.Is(err, services.ErrMissingBusinessKey),
		errors.Is(err, services.ErrMissingParty):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "record not found")
	case errors.Is(err, repo.ErrDuplicate):
		fail(c, http.StatusConflict, ErrCodeConflict, "record already exists")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
