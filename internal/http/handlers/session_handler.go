// Session HTTP handlers.
//
// These endpoints manage the tracked office session:
//   - POST   /session            (login: begin a fresh session)
//   - GET    /session            (status snapshot)
//   - POST   /session/activity   (explicit qualifying activity ping)
//   - DELETE /session            (logout: clear the record)
//
// They are mounted outside the session guard so a logged-out dashboard can
// still reach them.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/freightops/go-freight-backend/internal/http/middleware"
	"github.com/freightops/go-freight-backend/internal/session"
)

// LoginRequest is the JSON payload for starting a session.
type LoginRequest struct {
	User string `json:"user" binding:"required"`
}

// ActivityResponse reports whether a ping extended the session.
type ActivityResponse struct {
	Extended bool `json:"extended"`
	Session  any  `json:"session"`
}

// Login begins a fresh session for the named user.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.User) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user is required")
		return
	}

	info, err := h.sessions.Begin(c.Request.Context(), strings.TrimSpace(req.User))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, info)
}

// SessionStatus returns the current session snapshot. The check itself
// drives the warn-then-clear transition for terminal sessions.
func (h *Handlers) SessionStatus(c *gin.Context) {
	info, err := h.sessions.Check(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, info)
}

// SessionActivity registers qualifying user activity. The expiry slides
// forward only when the session is active and close enough to expiring.
func (h *Handlers) SessionActivity(c *gin.Context) {
	info, extended, err := h.sessions.Touch(c.Request.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			fail(c, http.StatusUnauthorized, middleware.CodeSessionRequired, "no active session")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ActivityResponse{Extended: extended, Session: info})
}

// Logout clears the session record immediately.
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.sessions.End(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
