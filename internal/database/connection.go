// Package database wraps the pgx connection pool used by the DB writer:
// pool construction with a liveness check on acquire, schema migrations
// embedded into the binary, and slow-query logging on the call path the
// writer actually uses (Exec).
package database

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pgxstd "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// slowQueryThreshold matches the teacher's own slow-query log cutoff.
const slowQueryThreshold = 1 * time.Second

// Connection wraps a pgx connection pool. The ingestion writer owns exactly
// one Connection at a time; on a write failure it closes the Connection and
// builds a fresh one rather than trying to repair the pool in place.
type Connection struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against conninfo and verifies connectivity with a
// ping. BeforeAcquire discards connections that fail a short-timeout ping so
// a half-dead connection never gets handed back out of the pool.
func Connect(ctx context.Context, conninfo string) (*Connection, error) {
	poolConfig, err := pgxpool.ParseConfig(conninfo)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.BeforeAcquire = func(ctx context.Context, conn *pgxstd.Conn) bool {
		pingCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()
		if err := conn.Ping(pingCtx); err != nil {
			log.Debug().Err(err).Msg("database: discarding unhealthy pooled connection")
			return false
		}
		return true
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open connection pool: %w", err)
	}

	conn := &Connection{pool: pool}
	if err := conn.Health(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate applies every embedded migration up to the latest version.
// conninfo may be the same postgres:// string pgxpool.ParseConfig accepts;
// migrationSchemeFor rewrites it to the pgx5:// scheme the golang-migrate
// pgx driver expects.
func (c *Connection) Migrate(conninfo string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrationSchemeFor(conninfo))
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// migrationSchemeFor rewrites a postgres://, postgresql:// or bare conninfo
// into the pgx5:// scheme the golang-migrate pgx/v5 driver requires.
func migrationSchemeFor(conninfo string) string {
	switch {
	case strings.HasPrefix(conninfo, "postgres://"):
		return "pgx5://" + strings.TrimPrefix(conninfo, "postgres://")
	case strings.HasPrefix(conninfo, "postgresql://"):
		return "pgx5://" + strings.TrimPrefix(conninfo, "postgresql://")
	case strings.HasPrefix(conninfo, "pgx5://"):
		return conninfo
	default:
		return "pgx5://" + conninfo
	}
}

// Exec runs a statement that doesn't return rows and logs it as slow if it
// crosses slowQueryThreshold. This is the writer's sole access path, so the
// broader Query/QueryRow wrappers the teacher also exposes aren't needed here.
func (c *Connection) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := c.pool.Exec(ctx, sql, args...)
	duration := time.Since(start)

	if duration > slowQueryThreshold {
		log.Warn().
			Dur("duration", duration).
			Str("query", truncateQuery(sql, 200)).
			Bool("slow_query", true).
			Msg("database: slow query detected")
	}
	return tag, err
}

// Health pings the pool with a bounded timeout.
func (c *Connection) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := c.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected health check result: %d", result)
	}
	return nil
}

// Stats exposes pool statistics for diagnostics.
func (c *Connection) Stats() *pgxpool.Stat {
	return c.pool.Stat()
}

// Close releases the underlying pool.
func (c *Connection) Close() {
	c.pool.Close()
}

func truncateQuery(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "... (truncated)"
}
