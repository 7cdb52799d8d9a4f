// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xataio/pgqueue/pkg/queue"
	"github.com/xataio/pgqueue/pkg/sqlt"
)

// CreateQueue registers opts.Name, creating its partition and throttling
// indexes on first use. Idempotent: calling it again for an existing queue
// is a silent no-op, since create_queue only materializes a partition when
// its INSERT actually inserted a row.
func (c *Client) CreateQueue(ctx context.Context, opts queue.Options) error {
	body, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("pgqueue: marshalling queue options: %w", err)
	}

	_, err = c.conn.ExecContext(ctx, sqlt.CallCreateQueue(c.schema), opts.Name, string(body))
	return err
}

// CreateStandardQueue registers a queue with the standard policy and no
// overrides.
func (c *Client) CreateStandardQueue(ctx context.Context, name string) error {
	return c.CreateQueue(ctx, queue.StandardOptions(name))
}

// GetQueue returns the named queue's details, or nil if it does not exist.
func (c *Client) GetQueue(ctx context.Context, name string) (*queue.Details, error) {
	row := c.conn.QueryRowContext(ctx, sqlt.GetQueueQuery(c.schema), name)
	d, err := queue.ScanDetails(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetQueues returns every registered queue's details.
func (c *Client) GetQueues(ctx context.Context) ([]queue.Details, error) {
	rows, err := c.conn.QueryContext(ctx, sqlt.GetQueuesQuery(c.schema))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []queue.Details
	for rows.Next() {
		d, err := queue.ScanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// DeleteQueue irreversibly drops queue name and its partition, taking the
// partition's jobs with it. Rows already moved to the archive are
// untouched.
func (c *Client) DeleteQueue(ctx context.Context, name string) error {
	_, err := c.conn.ExecContext(ctx, sqlt.CallDeleteQueue(c.schema), name)
	return err
}
