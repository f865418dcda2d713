package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medicenter/medicenter/internal/config"
	"github.com/medicenter/medicenter/internal/domain/facility"
	"github.com/medicenter/medicenter/internal/domain/identity"
	"github.com/medicenter/medicenter/internal/domain/intake"
	"github.com/medicenter/medicenter/internal/domain/triage"
	"github.com/medicenter/medicenter/internal/platform/db"
)

func newLogger(out io.Writer, env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// storage is the opened persistence backend plus what the health endpoint
// should probe.
type storage struct {
	store  identity.Store
	pool   *pgxpool.Pool
	checks []db.Check
	close  func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Msg("connected to database")
		return &storage{
			store:  identity.NewPGStore(pool),
			pool:   pool,
			checks: []db.Check{db.PoolCheck(pool)},
			close:  pool.Close,
		}, nil
	case config.DriverSQLite:
		s, err := identity.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return &storage{
			store:  s,
			checks: []db.Check{{Name: "sqlite", Ping: s.Ping}},
			close:  func() { s.Close() },
		}, nil
	default:
		logger.Warn().Msg("using in-memory store, nothing survives a restart")
		return &storage{store: identity.NewMemoryStore(), close: func() {}}, nil
	}
}

// buildDispatcher loads the facility and tree configuration and hydrates a
// dispatcher from everything in the store.
func buildDispatcher(ctx context.Context, cfg *config.Config, logger zerolog.Logger, store identity.Store, pub intake.Publisher, metrics *intake.Metrics) (*intake.Dispatcher, *triage.Tree, error) {
	table, err := triage.LoadTableFile(cfg.TreeFile)
	if err != nil {
		return nil, nil, err
	}
	tree, err := triage.NewTree(table)
	if err != nil {
		return nil, nil, err
	}

	list, err := facility.LoadFile(cfg.FacilitiesFile)
	if err != nil {
		return nil, nil, err
	}
	registry, err := facility.NewRegistry(list)
	if err != nil {
		return nil, nil, err
	}

	entities, err := store.LoadAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load stored accounts: %w", err)
	}
	patients, staff := identity.Split(entities)

	d, err := intake.New(intake.Options{
		Tree:             tree,
		Facilities:       registry,
		Store:            store,
		Publisher:        pub,
		Metrics:          metrics,
		Logger:           logger.With().Str("component", "intake").Logger(),
		AllowReconfirm:   cfg.AllowReconfirm,
		SymptomShortcuts: cfg.SymptomShortcuts,
		PersistRetries:   cfg.PersistRetries,
		PersistBackoff:   cfg.PersistBackoff,
		ClaimLease:       cfg.ClaimLease,
	}, patients, staff)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().
		Int("patients", len(patients)).
		Int("staff", len(staff)).
		Int("facilities", len(registry.List())).
		Int("tree_nodes", tree.Len()).
		Msg("dispatcher ready")
	return d, tree, nil
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	logger := newLogger(os.Stdout, os.Getenv("ENV"))
	cfg, err := config.Load()
	if err != nil {
		return nil, logger, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, newLogger(os.Stdout, cfg.Env), nil
}
