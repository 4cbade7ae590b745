// Package postgres opens the lib/pq-backed connection pool used by the
// analytics snapshot store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/jayc-10/corpusearch/pkg/config"
)

// Client holds the shared connection pool. DB is exported so the snapshot
// store can run its queries directly.
type Client struct {
	DB *sql.DB
}

// New opens the pool and verifies it with a ping so searchd can fall back
// to in-memory-only analytics when the database is unreachable.
func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

// Ping checks the pool, used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close drains the pool.
func (c *Client) Close() error {
	return c.DB.Close()
}
