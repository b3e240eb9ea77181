package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// ConnectionOwner identifies the logical worker a connection belongs to
// (spec.md §5: "one connection per logical worker; connections are never
// shared across workers"). Single-threaded callers use DefaultOwner.
type ConnectionOwner string

// DefaultOwner is used by callers that don't care about worker identity.
const DefaultOwner ConnectionOwner = "default"

const busyTimeout = 30 * time.Second

// pool lazily opens one *sql.DB per ConnectionOwner against the same DSN.
// Each handle enforces MaxOpenConns(1) so distinct owners never race on the
// same underlying connection, while SQLite's WAL journal lets readers on
// different owners proceed without blocking a concurrent writer.
type pool struct {
	dsn string

	mu    sync.Mutex
	conns map[ConnectionOwner]*sql.DB
}

func newPool(dsn string) *pool {
	return &pool{dsn: dsn, conns: make(map[ConnectionOwner]*sql.DB)}
}

func (p *pool) get(owner ConnectionOwner) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.conns[owner]; ok {
		return db, nil
	}

	db, err := sql.Open("sqlite3", p.dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection for owner %q: %w", owner, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q for owner %q: %w", stmt, owner, err)
		}
	}

	p.conns[owner] = db
	return db, nil
}

func (p *pool) closeAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for owner, db := range p.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close connection for owner %q: %w", owner, err)
		}
	}
	p.conns = make(map[ConnectionOwner]*sql.DB)
	return firstErr
}
