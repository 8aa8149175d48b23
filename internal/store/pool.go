package store

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/spares/internal/config"
)

// Connect opens a pgx pool with the configured limits and verifies it with a
// ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database URL")
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// Open connects to Postgres and returns a migrated document store. The
// caller closes the returned pool.
func Open(ctx context.Context, cfg *config.Config) (*Postgres, *pgxpool.Pool, error) {
	pool, err := Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	st := NewPostgres(pool,
		WithMaxBatchOps(cfg.Store.MaxBatchOps),
		WithNotifyChannel(cfg.Store.NotifyChannel),
	)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool, nil
}
