package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/medicenter/medicenter/internal/config"
	"github.com/medicenter/medicenter/internal/domain/intake"
	"github.com/medicenter/medicenter/internal/domain/triage"
	"github.com/medicenter/medicenter/internal/platform/db"
	"github.com/medicenter/medicenter/internal/platform/middleware"
	"github.com/medicenter/medicenter/internal/platform/telemetry"
	"github.com/medicenter/medicenter/internal/platform/websocket"
	"github.com/medicenter/medicenter/migrations"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the intake API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(cmd.Context(), migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving (postgres only)")
	return cmd
}

func runServer(parent context.Context, migrate bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	if st.pool != nil {
		migrator := db.NewMigrator(st.pool, migrations.FS)
		if migrate {
			n, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info().Int("applied", n).Msg("migrations applied")
		} else if statuses, err := migrator.Status(ctx); err == nil {
			for _, s := range statuses {
				if !s.Applied {
					logger.Warn().Int("version", s.Version).Str("name", s.Name).Msg("migration pending, run `medicenter migrate up`")
				}
			}
		}
	}

	tel := telemetry.NewProvider(version)
	hub := websocket.NewHub(logger.With().Str("component", "websocket").Logger())
	dispatcher, tree, err := buildDispatcher(ctx, cfg, logger, st.store, intake.NewHubPublisher(hub), intake.NewMetrics(tel.Registry))
	if err != nil {
		return err
	}

	e := newEcho(cfg, logger, tel)
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	intake.NewHandler(dispatcher).RegisterRoutes(apiV1)
	sessions := triage.NewSessionStore()
	triage.NewHandler(dispatcher, sessions, tree).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(e)

	e.GET("/health", db.HealthHandler(version, st.checks...))
	e.GET("/metrics", tel.Handler())
	if st.pool != nil {
		e.GET("/health/db", db.PoolStatsHandler(st.pool))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if cfg.ClaimLease > 0 {
			logger.Info().Dur("lease", cfg.ClaimLease).Dur("interval", cfg.LeaseSweepInterval).Msg("claim lease reaper running")
		}
		return dispatcher.RunLeaseReaper(gctx, cfg.LeaseSweepInterval)
	})
	g.Go(func() error {
		return sessions.RunSweeper(gctx, cfg.SessionTTL, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger, tel *telemetry.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger, tel.RecordPanic))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(tel.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, middleware.ActorHeader},
	}))
	e.Use(middleware.Audit(logger))
	return e
}
