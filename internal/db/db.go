// Package db opens the PostgreSQL connection pool and applies the schema the
// pet, profile and decision stores read from.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/onnwee/adoptfeed/internal/tracing"
)

//go:embed schema.sql
var schema string

// ErrEmptyURL is returned by Open when no connection string is configured.
var ErrEmptyURL = errors.New("database url is empty")

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns pool limits suitable for a single API replica.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open connects to url and verifies the connection with a ping.
func Open(ctx context.Context, url string, pool PoolConfig) (*sql.DB, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(pool.MaxOpenConns)
	conn.SetMaxIdleConns(pool.MaxIdleConns)
	conn.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Migrate applies the embedded schema. Statements are idempotent, so it is
// safe to call on every startup.
func Migrate(ctx context.Context, conn *sql.DB) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	if _, err = conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
