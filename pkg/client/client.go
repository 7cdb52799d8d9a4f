// SPDX-License-Identifier: Apache-2.0

// Package client is the published library surface: Connect, queue
// registration, job submission, fetch-and-claim, and the terminal state
// transitions, all dispatched through a single cached pkg/db.DB handle.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/xataio/pgqueue/pkg/db"
	"github.com/xataio/pgqueue/pkg/install"
)

// DefaultSchema is the installation schema used when the caller does not
// override it via Builder.Schema.
const DefaultSchema = "pgqueue"

// Client is the single object every public operation hangs off: a
// connection handle plus the schema it was installed into. One Client is
// built once per process and shared across every goroutine that sends or
// fetches jobs.
type Client struct {
	conn   db.DB
	schema string
}

// Schema returns the installation schema this client was built against.
func (c *Client) Schema() string { return c.schema }

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.conn.Close() }

// Connect opens a pool using the default DSN resolution (POSTGRES_PROVIDER
// names the env var to read, defaulting to POSTGRES_URL, which itself
// defaults to postgres://localhost:5432) against the default schema, and
// runs Install.
func Connect(ctx context.Context) (*Client, error) {
	return NewBuilder().Connect(ctx)
}

// ConnectTo opens a pool against the given Postgres URL and runs Install
// against the default schema.
func ConnectTo(ctx context.Context, url string) (*Client, error) {
	return NewBuilder().ConnectTo(ctx, url)
}

// WithPool adopts an existing *sql.DB (bring-your-own-pool) and runs
// Install against the default schema.
func WithPool(ctx context.Context, pool *sql.DB) (*Client, error) {
	return NewBuilder().WithPool(ctx, pool)
}

// Builder configures a Client before connecting.
type Builder struct {
	schema string
}

// NewBuilder returns a Builder defaulted to DefaultSchema.
func NewBuilder() *Builder {
	return &Builder{schema: DefaultSchema}
}

// Schema overrides the installation schema.
func (b *Builder) Schema(name string) *Builder {
	b.schema = name
	return b
}

// Connect opens a pool using the default DSN resolution and runs Install.
func (b *Builder) Connect(ctx context.Context) (*Client, error) {
	return b.ConnectTo(ctx, defaultDSN())
}

// ConnectTo opens a pool against url and runs Install.
func (b *Builder) ConnectTo(ctx context.Context, url string) (*Client, error) {
	pool, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("pgqueue: opening connection: %w", err)
	}
	if err := pool.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pgqueue: connecting: %w", err)
	}
	return b.WithPool(ctx, pool)
}

// WithPool adopts pool (bring-your-own-pool) and runs Install.
func (b *Builder) WithPool(ctx context.Context, pool *sql.DB) (*Client, error) {
	rdb := &db.RDB{DB: pool}
	if err := install.Install(ctx, rdb, b.schema); err != nil {
		return nil, err
	}
	return &Client{conn: rdb, schema: b.schema}, nil
}

// defaultDSN resolves the connection string: POSTGRES_PROVIDER names the
// environment variable to read (default POSTGRES_URL), then that variable
// (default postgres://localhost:5432).
func defaultDSN() string {
	varName := os.Getenv("POSTGRES_PROVIDER")
	if varName == "" {
		varName = "POSTGRES_URL"
	}
	url := os.Getenv(varName)
	if url == "" {
		url = "postgres://localhost:5432"
	}
	return url
}
