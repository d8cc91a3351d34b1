// Package database owns the process-wide Postgres connection pool.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
)

// Provider hands out the shared pool, connecting on first use.
type Provider interface {
	Connect(ctx context.Context) (*sql.DB, error)
	IsConnected() bool
}

// ConfigurationError reports a missing or unusable setting.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Setting)
}

// ConnectionError reports that the datastore could not be reached.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type OpenFunc func(driverName, dsn string) (*sql.DB, error)

type Connector struct {
	driverName string
	dsn        string
	open       OpenFunc

	mu        sync.Mutex
	db        *sql.DB
	connected atomic.Bool
}

type Option func(*Connector)

func WithOpener(open OpenFunc) Option {
	return func(c *Connector) {
		c.open = open
	}
}

func WithDriver(name string) Option {
	return func(c *Connector) {
		c.driverName = name
	}
}

func NewConnector(dsn string, opts ...Option) *Connector {
	c := &Connector{
		driverName: "postgres",
		dsn:        dsn,
		open:       sql.Open,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect returns the memoized pool, opening and pinging it on the first
// call. Concurrent cold starts connect once; a failed attempt is not
// remembered, so the next call tries again.
func (c *Connector) Connect(ctx context.Context) (*sql.DB, error) {
	if c.connected.Load() {
		return c.db, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	if c.dsn == "" {
		return nil, &ConfigurationError{Setting: "DATABASE_URL"}
	}

	db, err := c.open(c.driverName, c.dsn)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Err: err}
	}

	c.db = db
	c.connected.Store(true)
	return db, nil
}

func (c *Connector) IsConnected() bool {
	return c.connected.Load()
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}

	c.connected.Store(false)
	err := c.db.Close()
	c.db = nil
	return err
}
