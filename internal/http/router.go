// Package httpapi wires the HTTP transport (Gin) to the application
// services, middleware, and route handlers. It centralizes cross-cutting
// concerns: tracing, correlation IDs, logging, panic recovery, metrics,
// CORS, security headers, the session guard, and edge rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/freightops/go-freight-backend/internal/config"
	"github.com/freightops/go-freight-backend/internal/http/handlers"
	"github.com/freightops/go-freight-backend/internal/http/middleware"
	"github.com/freightops/go-freight-backend/internal/realtime"
	"github.com/freightops/go-freight-backend/internal/records"
	"github.com/freightops/go-freight-backend/internal/services"
	"github.com/freightops/go-freight-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// Deps bundles everything the router needs. All collaborators are built in
// cmd/server and injected here; the router owns no state of its own.
type Deps struct {
	Cfg          config.Config
	Consignments *services.ConsignmentService
	Challans     *services.ChallanService
	Bills        *services.BillingService
	Tracker      *session.Tracker
	Cache        *records.Cache
	Dispatcher   *realtime.Dispatcher
}

// RegisterRoutes attaches all middleware and endpoints to the Gin engine.
//
// Middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: panics to JSON 500, after the logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Rate limiter (per session user / IP)
//  9. CORS and security headers
//
// The session guard is mounted per-group: record routes require an active
// session, while session management, health, metrics, and the websocket
// upgrade stay reachable without one.
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Cfg
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP())
	r.Use(rl.Handler())

	installCORS(r, cfg)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(d.Consignments, d.Challans, d.Bills, d.Tracker, d.Cache)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Session lifecycle, reachable without an active session.
		api.POST("/session", h.Login)
		api.GET("/session", h.SessionStatus)
		api.POST("/session/activity", h.SessionActivity)
		api.DELETE("/session", h.Logout)

		// Record routes behind the session guard.
		guarded := api.Group("", middleware.SessionGuard(d.Tracker))
		{
			guarded.POST("/consignments", h.CreateConsignment)
			guarded.GET("/consignments", h.ListConsignments)
			guarded.GET("/consignments/:id", h.GetConsignment)
			guarded.PUT("/consignments/:id", h.UpdateConsignment)

			guarded.POST("/challans", h.CreateChallan)
			guarded.GET("/challans", h.ListChallans)
			guarded.GET("/challans/:id", h.GetChallan)
			guarded.PUT("/challans/:id", h.UpdateChallan)

			guarded.POST("/bills", h.CreateBill)
			guarded.GET("/bills", h.ListBills)
			guarded.GET("/bills/:id", h.GetBill)
			guarded.PUT("/bills/:id", h.UpdateBill)

			guarded.GET("/records", h.ListRecords)
		}
	}

	// Realtime feed. The upgrade sits outside the guard; every event it
	// carries is already office-visible through the records endpoint.
	r.GET("/ws", realtime.Handler(d.Dispatcher, log.With().Str("component", "ws").Logger()))
}

// installCORS applies the CORS posture: allow-all when no origins are
// configured, an allowlist otherwise.
func installCORS(r *gin.Engine, cfg config.Config) {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Form-ID"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
	for _, o := range cfg.CORS.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     allowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// limitBody caps the request body for all endpoints via http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" or empty as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
