package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freightops/go-freight-backend/internal/session"
)

func init() { gin.SetMode(gin.TestMode) }

func perform(r *gin.Engine, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated X-Request-ID")
	}

	w = perform(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "abc-123"})
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q, want propagated abc-123", got)
	}
}

func TestRecovery_JSON500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := perform(r, http.MethodGet, "/boom", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnablePolicy: true, NoStore: true}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", nil)
	for hdr, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	} {
		if got := w.Header().Get(hdr); got != want {
			t.Errorf("%s = %q, want %q", hdr, got, want)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be set for plain HTTP")
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", map[string]string{"X-Forwarded-Proto": "https"})
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected HSTS for forwarded HTTPS")
	}
}

func TestRateLimiter_Rejects(t *testing.T) {
	r := gin.New()
	rl := NewRateLimiter(0, 1, KeyBySessionOrIP())
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := perform(r, http.MethodGet, "/", nil); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	w := perform(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestMetrics_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := perform(r, http.MethodGet, "/", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	ObserveGuardRejection("throttle")
	ObserveSessionExtension()
}

// fakeTracker scripts the SessionChecker surface.
type fakeTracker struct {
	info     session.Info
	checkErr error
	touched  bool
}

func (f *fakeTracker) Check(ctx context.Context) (session.Info, error) {
	return f.info, f.checkErr
}

func (f *fakeTracker) Touch(ctx context.Context) (session.Info, bool, error) {
	f.touched = true
	return f.info, false, nil
}

func sessionRouter(tr SessionChecker) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), SessionGuard(tr))
	r.GET("/", func(c *gin.Context) {
		user, _ := c.Get("sessionUser")
		c.JSON(http.StatusOK, gin.H{"user": user})
	})
	return r
}

func TestSessionGuard_ActiveTouchesAndPasses(t *testing.T) {
	tr := &fakeTracker{info: session.Info{Status: session.StatusActive, User: "clerk"}}
	w := perform(sessionRouter(tr), http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !tr.touched {
		t.Fatal("expected qualifying activity to touch the session")
	}
}

func TestSessionGuard_RejectsByStatus(t *testing.T) {
	cases := []struct {
		status session.Status
		code   string
	}{
		{session.StatusNoSession, CodeSessionRequired},
		{session.StatusExpired, CodeSessionExpired},
		{session.StatusMaxLifetime, CodeSessionMaxLifetime},
	}
	for _, tc := range cases {
		tr := &fakeTracker{info: session.Info{Status: tc.status}}
		w := perform(sessionRouter(tr), http.MethodGet, "/", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", tc.status, w.Code)
		}
		if body := w.Body.String(); !containsCode(body, tc.code) {
			t.Fatalf("%s: body %s missing code %q", tc.status, body, tc.code)
		}
		if tr.touched {
			t.Fatalf("%s: rejected request must not touch the session", tc.status)
		}
	}
}

func TestSessionGuard_FailsOpenOnStoreError(t *testing.T) {
	tr := &fakeTracker{checkErr: errors.New("store down")}
	w := perform(sessionRouter(tr), http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (fail open)", w.Code)
	}
}

func containsCode(body, code string) bool {
	return strings.Contains(body, `"code":"`+code+`"`)
}
