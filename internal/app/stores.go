package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"swap-risk-lab/internal/config"
	"swap-risk-lab/internal/logging"
	"swap-risk-lab/internal/storage"
	chstore "swap-risk-lab/internal/storage/clickhouse"
	"swap-risk-lab/internal/storage/memory"
	"swap-risk-lab/internal/storage/migrations"
	pgstore "swap-risk-lab/internal/storage/postgres"
	"swap-risk-lab/internal/storage/sqlstore"
)

// Stores holds the relational store and the risk history store selected
// by configuration.
type Stores struct {
	Store   storage.Store
	History storage.RiskHistoryStore
	Backend string

	closers []func()
}

// Close releases every connection in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the configured backend and applies its schema.
// Risk history goes to ClickHouse when a DSN is set, otherwise to the
// relational backend.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)
	s := &Stores{Backend: cfg.Store}

	switch strings.ToLower(cfg.Store) {
	case config.StoreMemory:
		s.Store = memory.NewStore()
		s.History = memory.NewRiskHistoryStore()

	case config.StorePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.Store = pgstore.NewStore(pool)
		s.History = pgstore.NewRiskHistoryStore(pool)

	case config.StoreSQLite, config.StoreMySQL, config.StorePostgresGORM:
		dialect, dsn := sqlDialect(cfg)
		db, err := sqlstore.Open(dialect, dsn)
		if err != nil {
			return nil, err
		}
		store := sqlstore.NewStore(db)
		s.closers = append(s.closers, func() { store.Close() })
		if err := store.AutoMigrate(); err != nil {
			s.Close()
			return nil, err
		}
		s.Store = store
		s.History = store
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.History = chstore.NewRiskHistoryStore(conn)
	}

	logger.Info("stores opened",
		zap.String("backend", cfg.Store),
		zap.Bool("clickhouse_history", cfg.ClickhouseDSN != ""),
	)
	return s, nil
}

// sqlDialect maps a GORM-backed store kind to its dialect and target.
func sqlDialect(cfg *config.Config) (string, string) {
	switch strings.ToLower(cfg.Store) {
	case config.StoreMySQL:
		return sqlstore.DialectMySQL, cfg.MySQLDSN
	case config.StorePostgresGORM:
		return sqlstore.DialectPostgres, cfg.PostgresDSN
	default:
		return sqlstore.DialectSQLite, cfg.SQLitePath
	}
}
