// Package postgres keeps the booking store in PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"worldtrip/internal/infra/persistence/memory"
	"worldtrip/internal/infra/persistence/sqlbundle"
	"worldtrip/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultDSN is used when no connection string is configured.
const DefaultDSN = "postgres://localhost/worldtrip?sslmode=disable"

var (
	openMu  sync.Mutex
	sqlOpen = sql.Open
)

// Store serves reads and transactions from memory and mirrors every commit to
// the packages, customers, orders and sequences tables.
type Store struct {
	*memory.Store
	db      *sql.DB
	writeMu sync.Mutex
}

// NewStore connects to dsn, applies the schema and loads the existing rows.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen("pgx", dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	mem, err := sqlbundle.PostgresDialect.Hydrate(ctx, db, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction commits fn in memory, then writes the resulting state. When
// the write fails the in-memory state is restored to what it was before fn.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	before := s.ExportState()
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := sqlbundle.PostgresDialect.Persist(ctx, s.db, s.ExportState()); err != nil {
		s.ImportState(before)
		return res, err
	}
	return res, nil
}

// DB exposes the connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the opener used by NewStore and returns a restore
// function. Tests point it at a stub driver.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
