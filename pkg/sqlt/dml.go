// SPDX-License-Identifier: Apache-2.0

package sqlt

import "fmt"

// CheckAppInstalled reports whether the version table already exists in
// this schema -- the install gate's first probe, before anything else is
// touched.
func CheckAppInstalled(schema string) string {
	return fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables WHERE table_schema = '%[1]s' AND table_name = 'version'
		);
	`, schema)
}

// GetApp returns the single version row.
func GetApp(schema string) string {
	return fmt.Sprintf(`SELECT version, maintained_on, cron_on, monitored_on FROM %[1]s.version;`, schema)
}

// InsertVersion records the schema's version, idempotently.
func InsertVersion(schema string, version int) string {
	return fmt.Sprintf(`INSERT INTO %[1]s.version (version) VALUES (%[2]d) ON CONFLICT DO NOTHING;`, schema, version)
}

// CallCreateQueue invokes the already-installed create_queue($1 name, $2
// options) procedure. The procedure body itself is (re)installed by
// pkg/install, never by this call.
func CallCreateQueue(schema string) string {
	return fmt.Sprintf(`SELECT %[1]s.create_queue($1, $2);`, schema)
}

// CallDeleteQueue invokes delete_queue($1 name).
func CallDeleteQueue(schema string) string {
	return fmt.Sprintf(`SELECT %[1]s.delete_queue($1);`, schema)
}

// CallCreateJob invokes create_job($1 id, $2 name, $3 data, $4 options),
// returning the new job's id, or NULL if the named queue does not exist.
func CallCreateJob(schema string) string {
	return fmt.Sprintf(`SELECT %[1]s.create_job($1, $2, $3, $4);`, schema)
}

// GetQueueQuery selects a single queue row by name ($1).
func GetQueueQuery(schema string) string {
	return fmt.Sprintf(`
		SELECT
			name,
			policy,
			retry_limit,
			retry_delay,
			retry_backoff,
			expire_seconds,
			retention_minutes,
			dead_letter,
			created_on,
			updated_on
		FROM %[1]s.queue
		WHERE name = $1;
	`, schema)
}

// GetQueuesQuery selects every queue row.
func GetQueuesQuery(schema string) string {
	return fmt.Sprintf(`
		SELECT
			name,
			policy,
			retry_limit,
			retry_delay,
			retry_backoff,
			expire_seconds,
			retention_minutes,
			dead_letter,
			created_on,
			updated_on
		FROM %[1]s.queue;
	`, schema)
}

// FetchJobsQuery claims up to $2 created/retry jobs whose start_after has
// elapsed, highest priority first, then oldest, then by id, skipping rows
// already locked by another claimant, and returns the claimed rows in that
// same order. The UPDATE ... FROM a SKIP LOCKED CTE is the one place this
// package performs claim-and-mutate in a single round trip.
func FetchJobsQuery(schema string) string {
	return fmt.Sprintf(`
		WITH next AS (
			SELECT id FROM %[1]s.job
			WHERE name = $1 AND state < 'active' AND start_after < now()
			ORDER BY priority DESC, created_on, id
			LIMIT $2
			FOR UPDATE
			SKIP LOCKED
		), claimed AS (
			UPDATE %[1]s.job j SET
				state = 'active',
				started_on = now(),
				retry_count = CASE WHEN started_on IS NULL THEN retry_count ELSE retry_count + 1 END
			FROM next
			WHERE name = $1 AND j.id = next.id
			RETURNING
				j.id, j.name, j.priority, j.data, j.state, j.retry_limit, j.retry_count,
				j.retry_delay, j.retry_backoff, j.start_after, j.started_on, j.singleton_key,
				j.singleton_on, EXTRACT(epoch FROM j.expire_in)::float8 AS expire_in, j.created_on,
				j.completed_on, j.keep_until, j.output, j.dead_letter, j.policy
		)
		SELECT * FROM claimed ORDER BY priority DESC, created_on, id;
	`, schema)
}

// GetJobQuery returns one job's full detail row without transitioning its
// state -- the read-only counterpart to FetchJobsQuery.
func GetJobQuery(schema string) string {
	return fmt.Sprintf(`
		SELECT
			id, name, priority, data, state, retry_limit, retry_count, retry_delay,
			retry_backoff, start_after, started_on, singleton_key, singleton_on,
			EXTRACT(epoch FROM expire_in)::float8, created_on, completed_on, keep_until,
			output, dead_letter, policy
		FROM %[1]s.job
		WHERE name = $1 AND id = $2;
	`, schema)
}

// DeleteQuery removes jobs by id, returning the count actually removed.
func DeleteQuery(schema string) string {
	return fmt.Sprintf(`
		WITH results AS (
			DELETE FROM %[1]s.job
			WHERE name = $1 AND id IN (SELECT UNNEST($2::uuid[]))
			RETURNING 1
		)
		SELECT COUNT(*) FROM results;
	`, schema)
}

// CompleteQuery transitions active jobs to completed, recording the
// caller-supplied output. Only jobs actually claimed (state='active') are
// affected; a complete racing another transition loses and reports zero
// affected rows.
func CompleteQuery(schema string) string {
	return fmt.Sprintf(`
		WITH results AS (
			UPDATE %[1]s.job SET
				state = 'completed'::%[1]s.job_state,
				completed_on = now(),
				output = $3
			WHERE name = $1 AND id IN (SELECT UNNEST($2::uuid[])) AND state = 'active'::%[1]s.job_state
			RETURNING 1
		)
		SELECT COUNT(*) FROM results;
	`, schema)
}

// CancelQuery transitions any non-terminal job to cancelled. Because the
// _i4 throttling index excludes state='cancelled', a cancelled job frees
// its throttling slot immediately.
func CancelQuery(schema string) string {
	return fmt.Sprintf(`
		WITH results AS (
			UPDATE %[1]s.job SET
				state = 'cancelled'::%[1]s.job_state,
				completed_on = now()
			WHERE name = $1 AND id IN (SELECT UNNEST($2::uuid[])) AND state < 'completed'::%[1]s.job_state
			RETURNING 1
		)
		SELECT COUNT(*) FROM results;
	`, schema)
}

// ResumeQuery reopens cancelled jobs back to created, making them eligible
// for FetchJobsQuery again. Only jobs actually in state='cancelled' are
// affected.
func ResumeQuery(schema string) string {
	return fmt.Sprintf(`
		WITH results AS (
			UPDATE %[1]s.job SET
				state = 'created'::%[1]s.job_state,
				completed_on = NULL
			WHERE name = $1 AND id IN (SELECT UNNEST($2::uuid[])) AND state = 'cancelled'::%[1]s.job_state
			RETURNING 1
		)
		SELECT COUNT(*) FROM results;
	`, schema)
}

// FailQuery is a delete-then-reinsert CTE chain: deleted_jobs removes every
// targeted non-terminal row, retried_jobs reinserts the ones still under
// their retry budget as state='retry' (ON CONFLICT DO NOTHING -- a retry
// may lose its throttling slot to a newer job holding the same key, in
// which case it drops out of retried_jobs and falls through to
// failed_jobs, favoring the live job), failed_jobs inserts every deleted
// row not reinserted as a retry with state='failed', and dlq_jobs copies
// terminal failures into their queue's dead letter queue (skipped when
// dead_letter is unset or equals the source queue, preventing a
// self-loop). The dead-lettered copy's keep_until is the failed job's
// keep_until plus (keep_until - start_after); when start_after is later
// than keep_until that difference is negative and shortens retention. Deleting before reinserting lets the retry path re-enter
// through the very throttling indexes a plain UPDATE would bypass, so a
// retry is throttled exactly like a fresh submission.
func FailQuery(schema string) string {
	return fmt.Sprintf(`
		WITH deleted_jobs AS (
			DELETE FROM %[1]s.job
			WHERE name = $1 AND id IN (SELECT UNNEST($2::uuid[])) AND state < 'completed'::%[1]s.job_state
			RETURNING *
		), retried_jobs AS (
			INSERT INTO %[1]s.job (
				id, name, priority, data, state, retry_limit, retry_count, retry_delay,
				retry_backoff, start_after, started_on, singleton_key, singleton_on,
				expire_in, created_on, completed_on, keep_until, output, dead_letter, policy
			)
			SELECT
				id, name, priority, data, 'retry'::%[1]s.job_state, retry_limit, retry_count, retry_delay,
				retry_backoff,
				CASE
					WHEN retry_count = retry_limit THEN start_after
					WHEN NOT retry_backoff THEN now() + retry_delay * interval '1 second'
					ELSE now() + (
						retry_delay * 2 ^ LEAST(16, retry_count + 1) / 2 +
						retry_delay * 2 ^ LEAST(16, retry_count + 1) / 2 * random()
					) * interval '1 second'
				END,
				started_on, singleton_key, singleton_on, expire_in, created_on, NULL, keep_until, $3, dead_letter, policy
			FROM deleted_jobs
			WHERE retry_count < retry_limit
			ON CONFLICT DO NOTHING
			RETURNING *
		), failed_jobs AS (
			INSERT INTO %[1]s.job (
				id, name, priority, data, state, retry_limit, retry_count, retry_delay,
				retry_backoff, start_after, started_on, singleton_key, singleton_on,
				expire_in, created_on, completed_on, keep_until, output, dead_letter, policy
			)
			SELECT
				id, name, priority, data, 'failed'::%[1]s.job_state, retry_limit, retry_count, retry_delay,
				retry_backoff, start_after, started_on, singleton_key, singleton_on,
				expire_in, created_on, now(), keep_until, $3, dead_letter, policy
			FROM deleted_jobs
			WHERE id NOT IN (SELECT id FROM retried_jobs)
			RETURNING *
		), results AS (
			SELECT * FROM retried_jobs
			UNION ALL
			SELECT * FROM failed_jobs
		), dlq_jobs AS (
			INSERT INTO %[1]s.job (name, data, output, retry_limit, keep_until)
			SELECT dead_letter, data, output, retry_limit, keep_until + (keep_until - start_after)
			FROM results
			WHERE state = 'failed'::%[1]s.job_state AND dead_letter IS NOT NULL AND name <> dead_letter
		)
		SELECT COUNT(*) FROM deleted_jobs;
	`, schema)
}
