package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnTime time.Duration
	MaxIdleTime time.Duration
}

// TxPolicy selects how WithinTransaction executes a unit of work.
//
// PolicyAtomic wraps the work in BEGIN/COMMIT with rollback on error.
// PolicyBestEffort runs the statements sequentially against the pool with no
// transaction. Best-effort mode weakens the at-most-one-writer guarantee: a
// mid-sequence failure leaves earlier writes in place. It exists for
// single-node deployments where the backing store lacks transactions.
type TxPolicy string

const (
	PolicyAtomic     TxPolicy = "atomic"
	PolicyBestEffort TxPolicy = "best_effort"
)

// ParseTxPolicy validates a policy string, defaulting to atomic.
func ParseTxPolicy(s string) (TxPolicy, error) {
	switch TxPolicy(s) {
	case PolicyAtomic, "":
		return PolicyAtomic, nil
	case PolicyBestEffort:
		return PolicyBestEffort, nil
	default:
		return "", fmt.Errorf("unknown tx policy %q", s)
	}
}

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx, so
// repository methods can run inside or outside a transaction unchanged.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a pgx connection pool with the configured transaction policy.
type DB struct {
	pool   *pgxpool.Pool
	policy TxPolicy
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, cfg Config, policy TxPolicy) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "invalid database configuration")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnTime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnTime
	}
	if cfg.MaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to ping database")
	}

	return &DB{pool: pool, policy: policy}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Policy returns the active transaction policy.
func (db *DB) Policy() TxPolicy { return db.policy }

// Exec runs a statement outside any transaction.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, sql, args...)
}

// Query runs a query outside any transaction.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query outside any transaction.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// WithinTransaction runs fn under the configured policy. In atomic mode any
// error from fn rolls back every write; in best-effort mode fn runs against
// the pool directly and partial writes may remain on failure.
func (db *DB) WithinTransaction(ctx context.Context, fn func(q Querier) error) error {
	if db.policy == PolicyBestEffort {
		return fn(db.pool)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to commit transaction")
	}
	return nil
}
