// Package middleware contains the shared Gin middleware for the HTTP layer.
//
// This file provides SessionGuard, which gates the protected API surface on
// the tracked session. Every request through the guard is qualifying
// activity: an active session near its expiry slides forward, while an
// expired or maxed-out session is rejected with a stable code the dashboard
// maps to its login redirect.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freightops/go-freight-backend/internal/session"
)

// Session guard error codes.
const (
	CodeSessionRequired    = "session_required"
	CodeSessionExpired     = "session_expired"
	CodeSessionMaxLifetime = "session_max_lifetime"
)

// SessionChecker is the tracker surface the guard needs. Satisfied by
// session.Tracker.
type SessionChecker interface {
	Check(ctx context.Context) (session.Info, error)
	Touch(ctx context.Context) (session.Info, bool, error)
}

// SessionGuard returns a middleware that rejects requests without an
// active session. Tracker storage errors fail open with a logged warning:
// a broken session store must not take the write path down with it.
func SessionGuard(tracker SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		info, err := tracker.Check(ctx)
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("session check failed; allowing request")
			c.Next()
			return
		}

		var code string
		switch info.Status {
		case session.StatusActive:
			c.Set("sessionUser", info.User)
			if _, extended, err := tracker.Touch(ctx); err == nil && extended {
				ObserveSessionExtension()
			}
			c.Next()
			return
		case session.StatusExpired:
			code = CodeSessionExpired
		case session.StatusMaxLifetime:
			code = CodeSessionMaxLifetime
		default:
			code = CodeSessionRequired
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       code,
			"message":    "session is not active",
		})
	}
}
