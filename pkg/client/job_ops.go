// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/xataio/pgqueue/pkg/db"
	"github.com/xataio/pgqueue/pkg/job"
	"github.com/xataio/pgqueue/pkg/sqlt"
)

// SendJob enqueues j, returning its id. A nil j.ID is generated by the
// database (gen_random_uuid). Constraint violations raised by the
// underlying INSERT are translated via job.TranslateConstraint; a NULL
// return (no matching queue) becomes a *job.DoesNotExistError.
func (c *Client) SendJob(ctx context.Context, j job.Job) (uuid.UUID, error) {
	data := j.Data
	if data == nil {
		data = json.RawMessage("null")
	}

	// create_job distinguishes absolute timestamps from relative intervals
	// by a trailing 'Z', so both option timestamps must serialize in UTC.
	o := j.Opts
	if o.StartAfter != nil {
		t := o.StartAfter.UTC()
		o.StartAfter = &t
	}
	if o.KeepUntil != nil {
		t := o.KeepUntil.UTC()
		o.KeepUntil = &t
	}
	opts, err := json.Marshal(o)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("pgqueue: marshalling job options: %w", err)
	}

	// json documents go over the wire as text: lib/pq would encode []byte
	// as a bytea hex literal, which jsonb parameters reject.
	var id *uuid.UUID
	row := c.conn.QueryRowContext(ctx, sqlt.CallCreateJob(c.schema), j.ID, j.Queue, string(data), string(opts))
	if err := row.Scan(&id); err != nil {
		return uuid.UUID{}, job.TranslateConstraint(err)
	}
	if id == nil {
		return uuid.UUID{}, &job.DoesNotExistError{Msg: "queue does not exist"}
	}
	return *id, nil
}

// SendData enqueues data onto queue with default options, returning its id.
func (c *Client) SendData(ctx context.Context, queue string, data any) (uuid.UUID, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("pgqueue: marshalling job data: %w", err)
	}
	return c.SendJob(ctx, job.Job{Queue: queue, Data: body})
}

// FetchJob claims and returns one eligible job from queue, or nil if none
// are eligible.
func (c *Client) FetchJob(ctx context.Context, queue string) (*job.Details, error) {
	jobs, err := c.FetchJobs(ctx, queue, 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// FetchJobs claims and returns up to n eligible jobs from queue, via the
// SKIP LOCKED claim query. n is a float64 because the underlying LIMIT
// parameter binds against a float8 column.
func (c *Client) FetchJobs(ctx context.Context, queue string, n float64) ([]job.Details, error) {
	rows, err := c.conn.QueryContext(ctx, sqlt.FetchJobsQuery(c.schema), queue, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []job.Details
	for rows.Next() {
		d, err := job.ScanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetJob returns id's details without transitioning its state, or nil if
// no such job exists in queue.
func (c *Client) GetJob(ctx context.Context, queue string, id uuid.UUID) (*job.Details, error) {
	row := c.conn.QueryRowContext(ctx, sqlt.GetJobQuery(c.schema), queue, id)
	d, err := job.ScanDetails(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteJob unconditionally removes id from queue, returning whether it
// existed.
func (c *Client) DeleteJob(ctx context.Context, queue string, id uuid.UUID) (bool, error) {
	n, err := c.DeleteJobs(ctx, queue, []uuid.UUID{id})
	return n == 1, err
}

// DeleteJobs unconditionally removes ids from queue, returning the number
// actually removed.
func (c *Client) DeleteJobs(ctx context.Context, queue string, ids []uuid.UUID) (int, error) {
	return c.scalarCount(ctx, sqlt.DeleteQuery(c.schema), queue, pq.Array(ids))
}

// CompleteJob transitions an active id to completed, recording output.
func (c *Client) CompleteJob(ctx context.Context, queue string, id uuid.UUID, output any) (bool, error) {
	n, err := c.CompleteJobs(ctx, queue, []uuid.UUID{id}, output)
	return n == 1, err
}

// CompleteJobs transitions every active id in ids to completed, returning
// the number actually transitioned.
func (c *Client) CompleteJobs(ctx context.Context, queue string, ids []uuid.UUID, output any) (int, error) {
	body, err := json.Marshal(output)
	if err != nil {
		return 0, fmt.Errorf("pgqueue: marshalling job output: %w", err)
	}
	return c.scalarCount(ctx, sqlt.CompleteQuery(c.schema), queue, pq.Array(ids), string(body))
}

// CancelJob transitions any non-terminal id to cancelled.
func (c *Client) CancelJob(ctx context.Context, queue string, id uuid.UUID) (bool, error) {
	n, err := c.CancelJobs(ctx, queue, []uuid.UUID{id})
	return n == 1, err
}

// CancelJobs transitions every non-terminal id in ids to cancelled.
func (c *Client) CancelJobs(ctx context.Context, queue string, ids []uuid.UUID) (int, error) {
	return c.scalarCount(ctx, sqlt.CancelQuery(c.schema), queue, pq.Array(ids))
}

// ResumeJob transitions a cancelled id back to created.
func (c *Client) ResumeJob(ctx context.Context, queue string, id uuid.UUID) (bool, error) {
	n, err := c.ResumeJobs(ctx, queue, []uuid.UUID{id})
	return n == 1, err
}

// ResumeJobs transitions every cancelled id in ids back to created.
func (c *Client) ResumeJobs(ctx context.Context, queue string, ids []uuid.UUID) (int, error) {
	return c.scalarCount(ctx, sqlt.ResumeQuery(c.schema), queue, pq.Array(ids))
}

// FailJob marks id failed with no output detail, retrying or
// dead-lettering it as its retry budget and queue configuration dictate.
func (c *Client) FailJob(ctx context.Context, queue string, id uuid.UUID) (bool, error) {
	return c.FailJobWithDetails(ctx, queue, id, nil)
}

// FailJobWithDetails marks id failed, recording output, retrying or
// dead-lettering it as its retry budget and queue configuration dictate.
func (c *Client) FailJobWithDetails(ctx context.Context, queue string, id uuid.UUID, output any) (bool, error) {
	n, err := c.FailJobsWithDetails(ctx, queue, []uuid.UUID{id}, output)
	return n == 1, err
}

// FailJobs marks every id in ids failed with no output detail.
func (c *Client) FailJobs(ctx context.Context, queue string, ids []uuid.UUID) (int, error) {
	return c.FailJobsWithDetails(ctx, queue, ids, nil)
}

// FailJobsWithDetails marks every id in ids failed, recording output. The
// returned count is the number of rows removed from their source state; it
// does not distinguish a reinserted retry from one that lost its
// throttling slot to a newer job and failed terminally instead.
func (c *Client) FailJobsWithDetails(ctx context.Context, queue string, ids []uuid.UUID, output any) (int, error) {
	body, err := json.Marshal(output)
	if err != nil {
		return 0, fmt.Errorf("pgqueue: marshalling job output: %w", err)
	}
	return c.scalarCount(ctx, sqlt.FailQuery(c.schema), queue, pq.Array(ids), string(body))
}

// scalarCount runs query, which is expected to return exactly one row
// containing one integer count, and returns it.
func (c *Client) scalarCount(ctx context.Context, query string, args ...any) (int, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	if err := db.ScanFirstValue(rows, &count); err != nil {
		return 0, err
	}
	return int(count), nil
}
