// SPDX-License-Identifier: Apache-2.0

// Package loadtest drives concurrent send/fetch traffic against a freshly
// installed schema to measure achievable throughput.
package loadtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xataio/pgqueue/pkg/client"
)

const queueName = "loadtest"

// Options configures a Run.
type Options struct {
	PostgresURL string
	JobsCount   int
	Threads     int
}

// Result reports the outcome of a Run.
type Result struct {
	Schema      string
	JobsSent    int64
	JobsFetched int64
	Elapsed     time.Duration
}

// Run installs a fresh, randomly named schema, spawns Threads goroutines
// that alternately send and fetch jobs against it, and reports the
// aggregate throughput once every thread has sent/fetched JobsCount jobs.
func Run(ctx context.Context, opts Options) (*Result, error) {
	schema := fmt.Sprintf("loadtest_%s", uuid.New().String()[:8])

	c, err := client.NewBuilder().Schema(schema).ConnectTo(ctx, opts.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("loadtest: connecting: %w", err)
	}
	defer c.Close()

	if err := c.CreateStandardQueue(ctx, queueName); err != nil {
		return nil, fmt.Errorf("loadtest: creating queue: %w", err)
	}

	start := time.Now()

	var sent, fetched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for range opts.Threads {
		g.Go(func() error {
			tc, err := client.NewBuilder().Schema(schema).ConnectTo(gctx, opts.PostgresURL)
			if err != nil {
				return err
			}
			defer tc.Close()

			for i := 0; i < opts.JobsCount; i++ {
				if i%2 == 0 {
					if _, err := tc.SendData(gctx, queueName, map[string]string{"key": "value"}); err != nil {
						return err
					}
					sent.Add(1)
				} else {
					if _, err := tc.FetchJob(gctx, queueName); err != nil {
						return err
					}
					fetched.Add(1)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Schema:      schema,
		JobsSent:    sent.Load(),
		JobsFetched: fetched.Load(),
		Elapsed:     time.Since(start),
	}, nil
}
