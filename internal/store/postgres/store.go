// Package postgres implements store.Repository on PostgreSQL via pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fuelstation/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

var _ store.Repository = (*Store)(nil)

// Options tune store behavior beyond the pool.
type Options struct {
	// AuditCompressThreshold is the detail size in bytes above which audit
	// details are stored zstd-compressed. Zero uses the default.
	AuditCompressThreshold int
	// StatementTimeout bounds each statement run inside a transaction. It
	// follows the service operation timeout; zero disables it.
	StatementTimeout time.Duration
}

type Store struct {
	pool  *pgxpool.Pool
	txm   *TxManager
	audit *auditCodec
}

func New(ctx context.Context, cfg PoolConfig, opts Options) (*Store, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	codec, err := newAuditCodec(opts.AuditCompressThreshold)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, txm: NewTxManager(pool, opts.StatementTimeout), audit: codec}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.audit.close()
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func (s *Store) q(ctx context.Context) Querier {
	return s.txm.Querier(ctx)
}

// get runs a built select and scans one row into dst.
func (s *Store) get(ctx context.Context, dst any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, s.q(ctx), dst, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

// list runs a built select and scans all rows into dst.
func (s *Store) list(ctx context.Context, dst any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Select(ctx, s.q(ctx), dst, query, args...)
}

// exec runs a built statement and returns the affected row count.
func (s *Store) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	tag, err := s.q(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
