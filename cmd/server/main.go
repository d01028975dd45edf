// Command server runs the freight office backend: the guarded record API,
// the session lifetime tracker, and the realtime record feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freightops/go-freight-backend/internal/config"
	"github.com/freightops/go-freight-backend/internal/guard"
	httpapi "github.com/freightops/go-freight-backend/internal/http"
	"github.com/freightops/go-freight-backend/internal/observability"
	"github.com/freightops/go-freight-backend/internal/realtime"
	"github.com/freightops/go-freight-backend/internal/records"
	"github.com/freightops/go-freight-backend/internal/repo"
	"github.com/freightops/go-freight-backend/internal/services"
	"github.com/freightops/go-freight-backend/internal/session"
	"github.com/freightops/go-freight-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	cache := records.NewCache()
	if err := records.Warm(ctx, db, cache); err != nil {
		log.Fatal().Err(err).Msg("records cache warm failed")
	}
	log.Info().Int("records", cache.Len()).Msg("records cache warmed")

	// The dedup writer in front of the record writer. With Redis
	// configured and reachable, duplicates are caught across instances;
	// otherwise the single-slot in-process window applies.
	var writer guard.Writer = guard.NewDeduplicatingWriter(
		services.RecordWriter{DB: db}, cfg.Guard.DedupWindow, nil)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pingErr := client.Ping(pingCtx).Err()
		cancel()
		if pingErr != nil {
			log.Warn().Err(pingErr).Msg("redis unreachable; using in-memory dedup")
		} else {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected; dedup is cross-instance")
			writer = guard.NewRedisDeduplicatingWriter(
				client, cfg.Redis.KeyPrefix, services.RecordWriter{DB: db}, cfg.Guard.DedupWindow, nil)
		}
	}

	guards := services.Guards{
		Throttle: guard.NewSubmissionThrottle(cfg.Guard.ThrottleWindow, nil),
		Unique:   guard.NewUniquenessIndex(cache),
	}
	dispatcher := realtime.NewDispatcher()

	tracker, err := session.NewTracker(session.Config{
		TTL:             cfg.Session.TTL,
		MaxLifetime:     cfg.Session.MaxLifetime,
		ExtendThreshold: cfg.Session.ExtendThreshold,
		GraceDelay:      cfg.Session.GraceDelay,
		SweepInterval:   cfg.Session.SweepInterval,
	}, &repo.SessionStore{DB: db}, func(message, severity string) {
		log.WithLevel(zerolog.WarnLevel).Str("severity", severity).Msg(message)
	}, log.With().Str("component", "session").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("session tracker setup failed")
	}
	go tracker.Run(ctx)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Cfg: cfg,
		Consignments: &services.ConsignmentService{
			DB: db, Guards: guards, Writer: writer, Cache: cache, Events: dispatcher,
		},
		Challans: &services.ChallanService{
			DB: db, Guards: guards, Writer: writer, Cache: cache, Events: dispatcher,
		},
		Bills: &services.BillingService{
			DB: db, Guards: guards, Writer: writer, Cache: cache, Events: dispatcher,
		},
		Tracker:    tracker,
		Cache:      cache,
		Dispatcher: dispatcher,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
