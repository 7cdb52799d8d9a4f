// SPDX-License-Identifier: Apache-2.0

package client_test

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xataio/pgqueue/internal/testutils"
	"github.com/xataio/pgqueue/pkg/client"
	"github.com/xataio/pgqueue/pkg/db"
	"github.com/xataio/pgqueue/pkg/install"
	"github.com/xataio/pgqueue/pkg/job"
	"github.com/xataio/pgqueue/pkg/queue"
	"github.com/xataio/pgqueue/pkg/sqlt"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func newClient(t *testing.T, conn *sql.DB, schema string) *client.Client {
	t.Helper()
	c, err := client.NewBuilder().Schema(schema).WithPool(context.Background(), conn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Scenario 1: fresh connect installs the schema and reports the current
// version; reconnecting is a no-op that leaves the version unchanged.
func TestConnectInstallsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()

		newClient(t, conn, schema)

		rdb := &db.RDB{DB: conn}
		v, err := install.Status(ctx, rdb, schema)
		require.NoError(t, err)
		assert.Equal(t, sqlt.CurrentVersion, v.Version)

		c2, err := client.NewBuilder().Schema(schema).WithPool(ctx, conn)
		require.NoError(t, err)
		defer c2.Close()

		v, err = install.Status(ctx, rdb, schema)
		require.NoError(t, err)
		assert.Equal(t, sqlt.CurrentVersion, v.Version)
	})
}

// Scenario 2: connecting against a schema claiming an older-than-supported
// version is fatal.
func TestConnectRejectsIncompatibleSchema(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()

		c := newClient(t, conn, schema)
		c.Close()

		_, err := conn.ExecContext(ctx, fmt.Sprintf("UPDATE %s.version SET version = 20", schema))
		require.NoError(t, err)

		_, err = client.NewBuilder().Schema(schema).WithPool(ctx, conn)
		assert.ErrorIs(t, err, install.ErrIncompatibleSchema)
	})
}

// Scenario 3: higher-priority jobs are fetched first; equal priority falls
// back to FIFO (creation order).
func TestFetchOrdersByPriorityThenFIFO(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "q"))

		low := 1
		high := 10
		idLow1, err := c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{Priority: &low}})
		require.NoError(t, err)
		idLow2, err := c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{Priority: &low}})
		require.NoError(t, err)
		idHigh, err := c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{Priority: &high}})
		require.NoError(t, err)

		jobs, err := c.FetchJobs(ctx, "q", 3)
		require.NoError(t, err)
		require.Len(t, jobs, 3)

		assert.Equal(t, idHigh, jobs[0].ID)
		assert.Equal(t, idLow1, jobs[1].ID)
		assert.Equal(t, idLow2, jobs[2].ID)
	})
}

// Scenario 4: a job with retry_limit=1 and a short retry_delay is not
// refetchable immediately after failing, but becomes eligible again once
// its delay elapses, and fails terminally on the second failure.
func TestFailRetriesWithDelayThenTerminates(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "q"))

		retryLimit := 1
		retryDelay := 2
		id, err := c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{
			RetryLimit: &retryLimit,
			RetryDelay: &retryDelay,
		}})
		require.NoError(t, err)

		fetched, err := c.FetchJob(ctx, "q")
		require.NoError(t, err)
		require.NotNil(t, fetched)
		assert.Equal(t, id, fetched.ID)

		n, err := c.FailJob(ctx, "q", id)
		require.NoError(t, err)
		assert.True(t, n)

		// not yet eligible: start_after is in the future
		again, err := c.FetchJob(ctx, "q")
		require.NoError(t, err)
		assert.Nil(t, again)

		time.Sleep(time.Duration(retryDelay+1) * time.Second)

		pending, err := c.GetJob(ctx, "q", id)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, job.Retry, pending.State)

		// fetching claims the retry, so the returned row is active again
		retried, err := c.FetchJob(ctx, "q")
		require.NoError(t, err)
		require.NotNil(t, retried)
		assert.Equal(t, id, retried.ID)
		assert.Equal(t, job.Active, retried.State)

		n, err = c.FailJob(ctx, "q", id)
		require.NoError(t, err)
		assert.True(t, n)

		final, err := c.GetJob(ctx, "q", id)
		require.NoError(t, err)
		require.NotNil(t, final)
		assert.Equal(t, job.Failed, final.State)
	})
}

// Scenario 5: two jobs sharing a singleton slot collide; once the slot has
// passed, a new send succeeds with a different id.
func TestSingletonSlotThrottlesWithinWindow(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "q"))

		singletonFor := 2
		id1, err := c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{SingletonFor: &singletonFor}})
		require.NoError(t, err)

		_, err = c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{SingletonFor: &singletonFor}})
		require.Error(t, err)
		var throttled *job.ThrottledError
		require.ErrorAs(t, err, &throttled)

		time.Sleep(time.Duration(singletonFor+1) * time.Second)

		id2, err := c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{SingletonFor: &singletonFor}})
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)
	})
}

// Scenario 6: a job whose terminal failure routes to a dead-letter queue
// produces a job there carrying the same data and output.
func TestFailRoutesTerminalFailureToDeadLetterQueue(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "a_dlq"))
		deadLetter := "a_dlq"
		require.NoError(t, c.CreateQueue(ctx, queue.Options{Name: "a", DeadLetter: &deadLetter}))

		retryLimit := 0
		data := json.RawMessage(`{"payload":true}`)
		id, err := c.SendJob(ctx, job.Job{Queue: "a", Data: data, Opts: job.Options{RetryLimit: &retryLimit}})
		require.NoError(t, err)

		fetched, err := c.FetchJob(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, fetched)
		assert.Equal(t, id, fetched.ID)

		n, err := c.FailJobWithDetails(ctx, "a", id, map[string]string{"err": "x"})
		require.NoError(t, err)
		assert.True(t, n)

		final, err := c.GetJob(ctx, "a", id)
		require.NoError(t, err)
		require.NotNil(t, final)
		assert.Equal(t, job.Failed, final.State)

		dlqJob, err := c.FetchJob(ctx, "a_dlq")
		require.NoError(t, err)
		require.NotNil(t, dlqJob)
		assert.JSONEq(t, string(data), string(dlqJob.Data))
		assert.JSONEq(t, `{"err":"x"}`, string(dlqJob.Output))
	})
}

// A queue whose dead_letter points at itself never loops.
func TestFailSuppressesSelfReferentialDeadLetter(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		selfName := "loopy"
		require.NoError(t, c.CreateQueue(ctx, queue.Options{Name: selfName, DeadLetter: &selfName}))

		retryLimit := 0
		id, err := c.SendJob(ctx, job.Job{Queue: selfName, Opts: job.Options{RetryLimit: &retryLimit}})
		require.NoError(t, err)

		_, err = c.FetchJob(ctx, selfName)
		require.NoError(t, err)

		_, err = c.FailJob(ctx, selfName, id)
		require.NoError(t, err)

		jobs, err := c.FetchJobs(ctx, selfName, 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

func TestCancelResumeRoundTrip(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "q"))

		id, err := c.SendData(ctx, "q", map[string]string{"a": "b"})
		require.NoError(t, err)

		ok, err := c.CancelJob(ctx, "q", id)
		require.NoError(t, err)
		assert.True(t, ok)

		cancelled, err := c.GetJob(ctx, "q", id)
		require.NoError(t, err)
		require.NotNil(t, cancelled)
		assert.Equal(t, job.Cancelled, cancelled.State)

		jobs, err := c.FetchJobs(ctx, "q", 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		ok, err = c.ResumeJob(ctx, "q", id)
		require.NoError(t, err)
		assert.True(t, ok)

		resumed, err := c.GetJob(ctx, "q", id)
		require.NoError(t, err)
		require.NotNil(t, resumed)
		assert.Equal(t, job.Created, resumed.State)
		assert.True(t, resumed.StartAfter.Equal(cancelled.StartAfter))

		fetched, err := c.FetchJob(ctx, "q")
		require.NoError(t, err)
		require.NotNil(t, fetched)
		assert.Equal(t, id, fetched.ID)
	})
}

func TestDeleteQueueDropsPartitionAndJobs(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "q"))
		id, err := c.SendData(ctx, "q", map[string]string{"a": "b"})
		require.NoError(t, err)

		require.NoError(t, c.DeleteQueue(ctx, "q"))

		got, err := c.GetQueue(ctx, "q")
		require.NoError(t, err)
		assert.Nil(t, got)

		gone, err := c.GetJob(ctx, "q", id)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})
}

// Two queued jobs in a short-policy queue sharing a singleton key collide
// on the partition's _i1 index.
func TestShortPolicyThrottlesQueuedJobs(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateQueue(ctx, queue.Options{Name: "q", Policy: queue.Short}))

		key := "k"
		_, err := c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{SingletonKey: &key}})
		require.NoError(t, err)

		_, err = c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{SingletonKey: &key}})
		var throttled *job.ThrottledError
		require.ErrorAs(t, err, &throttled)
		assert.Equal(t, "short", throttled.Policy)

		// claiming the queued job frees the short policy's created-state slot
		fetched, err := c.FetchJob(ctx, "q")
		require.NoError(t, err)
		require.NotNil(t, fetched)

		_, err = c.SendJob(ctx, job.Job{Queue: "q", Opts: job.Options{SingletonKey: &key}})
		require.NoError(t, err)
	})
}

// A caller-supplied job id already in use maps onto the partition pkey and
// is reported as a conflict.
func TestSendJobWithExplicitIDConflicts(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "q"))

		id := uuid.New()
		got, err := c.SendJob(ctx, job.Job{ID: &id, Queue: "q"})
		require.NoError(t, err)
		assert.Equal(t, id, got)

		_, err = c.SendJob(ctx, job.Job{ID: &id, Queue: "q"})
		var conflict *job.ConflictError
		require.ErrorAs(t, err, &conflict)
	})
}

// Concurrent fetchers racing over the same queue claim disjoint sets: no
// job is delivered twice, and nothing beyond the eligible set is returned.
func TestConcurrentFetchesClaimDisjointSets(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "q"))

		const total = 40
		for i := 0; i < total; i++ {
			_, err := c.SendData(ctx, "q", map[string]int{"i": i})
			require.NoError(t, err)
		}

		const fetchers = 4
		claimed := make([][]job.Details, fetchers)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < fetchers; i++ {
			g.Go(func() error {
				jobs, err := c.FetchJobs(gctx, "q", total)
				if err != nil {
					return err
				}
				claimed[i] = jobs
				return nil
			})
		}
		require.NoError(t, g.Wait())

		seen := make(map[uuid.UUID]bool)
		for _, jobs := range claimed {
			for _, j := range jobs {
				assert.False(t, seen[j.ID], "job %s claimed twice", j.ID)
				seen[j.ID] = true
			}
		}
		assert.Len(t, seen, total)
	})
}

// Every job row lives in the partition named after its queue's sha224 hash.
func TestJobsLandInHashNamedPartition(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		require.NoError(t, c.CreateStandardQueue(ctx, "myqueue"))
		id, err := c.SendData(ctx, "myqueue", map[string]string{"a": "b"})
		require.NoError(t, err)

		var partition string
		err = conn.QueryRowContext(ctx, fmt.Sprintf(
			"SELECT tableoid::regclass::text FROM %s.job WHERE name = $1 AND id = $2", schema,
		), "myqueue", id).Scan(&partition)
		require.NoError(t, err)

		h := sha256.New224()
		h.Write([]byte("myqueue"))
		want := fmt.Sprintf("%s.j%x", schema, h.Sum(nil))
		assert.Equal(t, want, partition)
	})
}

func TestSendJobToUnknownQueueIsDoesNotExist(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()
		c := newClient(t, conn, schema)

		_, err := c.SendData(ctx, "nope", map[string]string{})
		var dne *job.DoesNotExistError
		require.ErrorAs(t, err, &dne)
	})
}
