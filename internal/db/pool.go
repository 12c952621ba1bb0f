// Package db owns the Postgres connection, schema migration and every SQL
// query in the service. Vector columns are read and written as pgvector
// text literals.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"horse.fit/currents/internal/config"
)

// ErrNoRows is the lookup-miss sentinel for every query in this package.
var ErrNoRows = sql.ErrNoRows

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

// TxOptions is reserved for isolation tuning; empty today.
type TxOptions struct{}

// CommandTag reports the outcome of an Exec.
type CommandTag struct {
	rowsAffected int64
}

func (c CommandTag) RowsAffected() int64 {
	return c.rowsAffected
}

// Row wraps a single-row result. Scanning a nil row yields ErrNoRows.
type Row struct {
	row *sql.Row
}

func (r *Row) Scan(dest ...any) error {
	if r == nil || r.row == nil {
		return ErrNoRows
	}
	return r.row.Scan(dest...)
}

// Rows wraps a multi-row result set.
type Rows struct {
	rows *sql.Rows
}

func (r *Rows) Next() bool {
	return r != nil && r.rows != nil && r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	if r == nil || r.rows == nil {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	if r == nil || r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

func (r *Rows) Close() {
	if r != nil && r.rows != nil {
		_ = r.rows.Close()
	}
}

// Tx is the query surface of one open transaction.
type Tx interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// session holds the raw-SQL helpers shared by the pool and open
// transactions.
type session struct {
	db *gorm.DB
}

func (s session) QueryRow(ctx context.Context, query string, args ...any) *Row {
	if s.db == nil {
		return &Row{}
	}
	return &Row{row: s.db.WithContext(ctx).Raw(query, args...).Row()}
}

func (s session) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	rows, err := s.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (s session) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	if s.db == nil {
		return CommandTag{}, fmt.Errorf("database pool is not initialized")
	}
	res := s.db.WithContext(ctx).Exec(query, args...)
	return CommandTag{rowsAffected: res.RowsAffected}, res.Error
}

type txn struct {
	session
}

func (t *txn) Commit(ctx context.Context) error {
	return t.db.WithContext(ctx).Commit().Error
}

func (t *txn) Rollback(ctx context.Context) error {
	return t.db.WithContext(ctx).Rollback().Error
}

// Pool is the gorm-backed database handle. All queries in this package run
// through it either directly or inside one of its transactions.
type Pool struct {
	orm *gorm.DB
	std *sql.DB
}

// NewPool connects, tunes the connection pool, pings and migrates the
// schema. The returned pool is ready for queries.
func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	orm, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:  logger.Default.LogMode(gormLogLevel(cfg.LogLevel, cfg.Environment)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	std, err := orm.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	tunePool(std, int(cfg.DBMinConns), int(cfg.DBMaxConns))

	if err := std.PingContext(ctx); err != nil {
		_ = std.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pool := &Pool{orm: orm, std: std}
	if err := pool.autoMigrate(ctx); err != nil {
		_ = std.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return pool, nil
}

func tunePool(std *sql.DB, minConns, maxConns int) {
	if maxConns <= 0 {
		maxConns = 8
	}
	std.SetMaxOpenConns(maxConns)
	std.SetMaxIdleConns(max(1, min(minConns, maxConns)))
	std.SetConnMaxIdleTime(5 * time.Minute)
	std.SetConnMaxLifetime(30 * time.Minute)
}

func (p *Pool) session() session {
	if p == nil {
		return session{}
	}
	return session{db: p.orm}
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return p.session().QueryRow(ctx, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	return p.session().Query(ctx, query, args...)
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	return p.session().Exec(ctx, query, args...)
}

// BeginTx opens one transaction; the caller must Commit or Rollback.
func (p *Pool) BeginTx(ctx context.Context, _ TxOptions) (Tx, error) {
	if p == nil || p.orm == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	tx := p.orm.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &txn{session: session{db: tx}}, nil
}

func (p *Pool) Close() error {
	if p == nil || p.std == nil {
		return nil
	}
	return p.std.Close()
}

// DB exposes the underlying sql.DB, used by migration SQL.
func (p *Pool) DB() *sql.DB {
	if p == nil {
		return nil
	}
	return p.std
}

// GORM exposes the gorm handle for AutoMigrate.
func (p *Pool) GORM() *gorm.DB {
	if p == nil {
		return nil
	}
	return p.orm
}

func gormLogLevel(appLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLevel)) {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	}
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return logger.Warn
	}
	return logger.Error
}
