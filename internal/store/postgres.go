// Package store persists normalized records.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool used for record rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres writes normalized records into Postgres. Upsert keys on the
// record id, so re-submission of the same record is idempotent.
type Postgres struct {
	pool  execCloser
	table string
}

// NewPostgres creates a Postgres-backed record store using the provided config.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "rfp_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool, table: table}, nil
}

// NewPostgresWithPool constructs a store from an existing pool (primarily for testing).
func NewPostgresWithPool(pool execCloser, table string) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "rfp_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Postgres{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert inserts or refreshes one record row and returns the record id.
func (s *Postgres) Upsert(ctx context.Context, record rfp.NormalizedRecord) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("record store is not configured")
	}
	if record.ID == "" {
		return "", fmt.Errorf("record id is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	source_url,
	source_domain,
	crawl_timestamp,
	title,
	rfp_number,
	deadline_date,
	record
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (id) DO UPDATE SET
	source_url = EXCLUDED.source_url,
	source_domain = EXCLUDED.source_domain,
	crawl_timestamp = EXCLUDED.crawl_timestamp,
	title = EXCLUDED.title,
	rfp_number = EXCLUDED.rfp_number,
	deadline_date = EXCLUDED.deadline_date,
	record = EXCLUDED.record`, s.table)

	args := []any{
		record.ID,
		record.SourceURL,
		record.SourceDomain,
		record.CrawlTimestamp,
		record.Title,
		record.RFPNumber,
		record.DeadlineDate,
		payload,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("upsert record: %w", err)
	}
	return record.ID, nil
}
