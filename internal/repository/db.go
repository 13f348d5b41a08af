package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/artists-registry/internal/common"
)

// Dialect selects placeholder style and DDL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB is a database/sql handle plus the pgx pool behind it, when postgres.
type DB struct {
	SQL     *sql.DB
	Dialect Dialect
	pool    *pgxpool.Pool
}

// Open connects using cfg.Driver: a pgx pool wrapped as *sql.DB for
// postgres, or modernc sqlite.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "pgx":
		return openPostgres(ctx, cfg, logger)
	case "sqlite", "":
		return openSQLite(ctx, cfg, logger)
	}
	return nil, common.InvalidArgumentErrorf("unknown database driver %q", cfg.Driver)
}

func openPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, common.DatabaseError("invalid database dsn", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "artists-registry"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.DatabaseError("connect to database", err)
	}

	logger.Info("successfully connected to database")
	return &DB{SQL: stdlib.OpenDBFromPool(pool), Dialect: DialectPostgres, pool: pool}, nil
}

func openSQLite(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("opening database", "driver", "sqlite", "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, common.DatabaseError("open sqlite", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent extraction.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, common.DatabaseError("exec "+pragma, err)
		}
	}
	return &DB{SQL: db, Dialect: DialectSQLite}, nil
}

// Migrate creates the schema if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	ddl := sqliteSchema
	if d.Dialect == DialectPostgres {
		ddl = postgresSchema
	}
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			return common.DatabaseError("apply schema", err)
		}
	}
	return nil
}

// Close closes the database connections gracefully
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if d.SQL != nil {
		if err := d.SQL.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := d.SQL.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func rebind(d Dialect, q string) string {
	if d != DialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS artists (
    id                   UUID PRIMARY KEY,
    artist_name          TEXT,
    guru_name            TEXT,
    gharana              TEXT,
    biography            TEXT,
    description          TEXT,
    phone                TEXT,
    email                TEXT,
    address              TEXT,
    profile_photo        TEXT,
    doc_filename         TEXT NOT NULL,
    doc_path             TEXT NOT NULL,
    doc_file_type        TEXT NOT NULL,
    doc_uploaded_at      TIMESTAMPTZ NOT NULL,
    extraction_status    TEXT NOT NULL DEFAULT 'pending',
    extraction_error     TEXT,
    raw_text             TEXT NOT NULL DEFAULT '',
    method               TEXT NOT NULL DEFAULT '',
    confidence           TEXT NOT NULL DEFAULT '',
    fallback_used        BOOLEAN NOT NULL DEFAULT FALSE,
    processing_time_ms   BIGINT NOT NULL DEFAULT 0,
    enhancement_provider TEXT,
    is_verified          BOOLEAN NOT NULL DEFAULT FALSE,
    verified_by          TEXT,
    verified_at          TIMESTAMPTZ,
    created_by           TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artists_status ON artists (extraction_status);
CREATE INDEX IF NOT EXISTS idx_artists_created_at ON artists (created_at DESC)
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS artists (
    id                   TEXT PRIMARY KEY,
    artist_name          TEXT,
    guru_name            TEXT,
    gharana              TEXT,
    biography            TEXT,
    description          TEXT,
    phone                TEXT,
    email                TEXT,
    address              TEXT,
    profile_photo        TEXT,
    doc_filename         TEXT NOT NULL,
    doc_path             TEXT NOT NULL,
    doc_file_type        TEXT NOT NULL,
    doc_uploaded_at      DATETIME NOT NULL,
    extraction_status    TEXT NOT NULL DEFAULT 'pending',
    extraction_error     TEXT,
    raw_text             TEXT NOT NULL DEFAULT '',
    method               TEXT NOT NULL DEFAULT '',
    confidence           TEXT NOT NULL DEFAULT '',
    fallback_used        BOOLEAN NOT NULL DEFAULT 0,
    processing_time_ms   INTEGER NOT NULL DEFAULT 0,
    enhancement_provider TEXT,
    is_verified          BOOLEAN NOT NULL DEFAULT 0,
    verified_by          TEXT,
    verified_at          DATETIME,
    created_by           TEXT NOT NULL DEFAULT '',
    created_at           DATETIME NOT NULL,
    updated_at           DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artists_status ON artists (extraction_status);
CREATE INDEX IF NOT EXISTS idx_artists_created_at ON artists (created_at DESC)
`
