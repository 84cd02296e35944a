// Package postgres provides a PostgreSQL-backed metadata index. This is the
// shared option: every replica pointed at the same database observes a
// record as soon as Put commits, which is what makes tokens minted on one
// replica servable by any other.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blinkhost/blink/internal/logger"
	"github.com/blinkhost/blink/pkg/index"
)

// Index is a PostgreSQL-backed implementation of index.Index.
type Index struct {
	pool *pgxpool.Pool
	cfg  *Config
	log  *slog.Logger
}

// New creates a postgres index: builds the connection pool, pings the
// database and, when AutoMigrate is set, bootstraps the schema before
// returning. The first Put or Get only runs against a ready schema.
func New(ctx context.Context, cfg *Config) (*Index, error) {
	cfg.ApplyDefaults()

	log := logger.With("component", "postgres_index")

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	if cfg.QueryTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.QueryTimeout.Milliseconds())
	}

	log.Info("Creating PostgreSQL connection pool",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"user", cfg.User,
		"max_conns", cfg.MaxConns,
		"ssl_mode", cfg.SSLMode,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: create connection pool: %v", index.ErrIndexUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", index.ErrIndexUnavailable, err)
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg.ConnectionString(), log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Info("AutoMigrate is disabled, skipping migrations")
	}

	return &Index{pool: pool, cfg: cfg, log: log}, nil
}

// Put upserts the record keyed by token. The statement is a single atomic
// insert; concurrent writers on distinct tokens never conflict.
func (i *Index) Put(ctx context.Context, rec index.Record) error {
	_, err := i.pool.Exec(ctx, `
		INSERT INTO records (token, blob_ref, expires_at_ms, content_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE
		SET blob_ref = EXCLUDED.blob_ref,
		    expires_at_ms = EXCLUDED.expires_at_ms,
		    content_type = EXCLUDED.content_type`,
		rec.Token, rec.BlobRef, rec.ExpiresAtMs, nullable(rec.ContentType),
	)
	if err != nil {
		return fmt.Errorf("%w: put record: %v", index.ErrIndexIO, err)
	}
	return nil
}

// Get returns the record for token, or (nil, nil) when absent.
func (i *Index) Get(ctx context.Context, token string) (*index.Record, error) {
	rec := index.Record{Token: token}
	var contentType *string

	err := i.pool.QueryRow(ctx, `
		SELECT blob_ref, expires_at_ms, content_type
		FROM records
		WHERE token = $1`,
		token,
	).Scan(&rec.BlobRef, &rec.ExpiresAtMs, &contentType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get record: %v", index.ErrIndexIO, err)
	}

	if contentType != nil {
		rec.ContentType = *contentType
	}
	return &rec, nil
}

// HealthCheck pings the database.
func (i *Index) HealthCheck(ctx context.Context) error {
	if err := i.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", index.ErrIndexUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (i *Index) Close() error {
	i.log.Info("closing PostgreSQL connection pool")
	i.pool.Close()
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ index.Index = (*Index)(nil)
