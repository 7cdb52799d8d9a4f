// SPDX-License-Identifier: Apache-2.0

package sqlt

import "fmt"

// createQueueProc creates %[1]s.create_queue(queue_name text, options jsonb),
// which inserts the queue row (leaving an existing row untouched) and, only when its INSERT actually inserted a
// row, materializes the queue's job partition: a LIKE %[1]s.job INCLUDING
// DEFAULTS table, the q_fkey/dlq_fkey deferrable foreign keys, the five
// throttling/claim indexes, the per-partition name CHECK, and the ATTACH
// PARTITION. The partition name is a content hash of the queue name
// ("j" + sha224 hex) so repeated calls for the same queue always land on
// the same physical table.
const createQueueProc = `
CREATE OR REPLACE FUNCTION %[1]s.create_queue (queue_name text, options jsonb)
RETURNS VOID AS
$$
DECLARE
	table_name varchar := 'j' || encode(sha224(queue_name::bytea), 'hex');
	queue_created_on timestamptz;
BEGIN
	WITH q AS (
		INSERT INTO %[1]s.queue (
			name,
			policy,
			retry_limit,
			retry_delay,
			retry_backoff,
			expire_seconds,
			retention_minutes,
			dead_letter,
			partition_name
		)
		VALUES (
			queue_name,
			options->>'policy',
			(options->>'retryLimit')::int,
			(options->>'retryDelay')::int,
			(options->>'retryBackoff')::bool,
			(options->>'expireInSeconds')::int,
			(options->>'retentionMinutes')::int,
			options->>'deadLetter',
			table_name
		)
		ON CONFLICT (name) DO NOTHING
		RETURNING created_on
	)
	SELECT created_on INTO queue_created_on FROM q;

	IF queue_created_on IS NULL THEN
		RETURN;
	END IF;

	EXECUTE format('CREATE TABLE %[1]s.%%I (LIKE %[1]s.job INCLUDING DEFAULTS)', table_name);
	EXECUTE format('ALTER TABLE %[1]s.%%I ADD PRIMARY KEY (name, id)', table_name);
	EXECUTE format('ALTER TABLE %[1]s.%%I ADD CONSTRAINT q_fkey FOREIGN KEY (name) REFERENCES %[1]s.queue (name) ON DELETE RESTRICT DEFERRABLE INITIALLY DEFERRED', table_name);
	EXECUTE format('ALTER TABLE %[1]s.%%I ADD CONSTRAINT dlq_fkey FOREIGN KEY (dead_letter) REFERENCES %[1]s.queue (name) ON DELETE RESTRICT DEFERRABLE INITIALLY DEFERRED', table_name);

	EXECUTE format('CREATE UNIQUE INDEX %%1$s_i1 ON %[1]s.%%1$I (name, COALESCE(singleton_key, '''')) WHERE state = ''created'' AND policy = ''short''', table_name);
	EXECUTE format('CREATE UNIQUE INDEX %%1$s_i2 ON %[1]s.%%1$I (name, COALESCE(singleton_key, '''')) WHERE state = ''active'' AND policy = ''singleton''', table_name);
	EXECUTE format('CREATE UNIQUE INDEX %%1$s_i3 ON %[1]s.%%1$I (name, state, COALESCE(singleton_key, '''')) WHERE state <= ''active'' AND policy = ''stately''', table_name);
	EXECUTE format('CREATE UNIQUE INDEX %%1$s_i4 ON %[1]s.%%1$I (name, singleton_on, COALESCE(singleton_key, '''')) WHERE state <> ''cancelled'' AND singleton_on IS NOT NULL', table_name);
	EXECUTE format('CREATE INDEX %%1$s_i5 ON %[1]s.%%1$I (name, start_after) INCLUDE (priority, created_on, id) WHERE state < ''active''', table_name);

	EXECUTE format('ALTER TABLE %[1]s.%%I ADD CONSTRAINT cjc CHECK (name=%%L)', table_name, queue_name);
	EXECUTE format('ALTER TABLE %[1]s.job ATTACH PARTITION %[1]s.%%I FOR VALUES IN (%%L)', table_name, queue_name);
END;
$$
LANGUAGE plpgsql;
`

func CreateQueueProc(schema string) string {
	return fmt.Sprintf(createQueueProc, schema)
}

// deleteQueueProc drops a queue's partition and row. Jobs already archived
// are untouched; active jobs in the partition are dropped with it.
const deleteQueueProc = `
CREATE OR REPLACE FUNCTION %[1]s.delete_queue (queue_name text)
RETURNS VOID AS
$$
DECLARE
	table_name varchar;
BEGIN
	SELECT partition_name INTO table_name FROM %[1]s.queue WHERE name = queue_name;
	IF table_name IS NOT NULL THEN
		EXECUTE format('ALTER TABLE %[1]s.job DETACH PARTITION %[1]s.%%I', table_name);
		EXECUTE format('DROP TABLE IF EXISTS %[1]s.%%I', table_name);
	END IF;
	DELETE FROM %[1]s.queue WHERE name = queue_name;
END;
$$
LANGUAGE plpgsql;
`

func DeleteQueueProc(schema string) string {
	return fmt.Sprintf(deleteQueueProc, schema)
}

// createJobProc creates %[1]s.create_job(id uuid, queue_name text, data
// jsonb, options jsonb) RETURNING uuid, the sole insertion path for jobs.
// It resolves retry/expire/retention defaults from the queue row (falling
// back to the constants below when the queue left them NULL), discretizes
// singleton_for/singleton_on into the singleton_on throttling slot, and
// returns NULL if the named queue does not exist -- the one failure mode
// create_job itself absorbs rather than raising, since "queue does not
// exist" must be distinguishable in Go from a constraint violation raised
// by the INSERT.
const createJobProc = `
CREATE OR REPLACE FUNCTION %[1]s.create_job (id uuid, queue_name text, data jsonb, options jsonb)
RETURNS uuid AS
$$
DECLARE
	q %[1]s.queue%%ROWTYPE;
	v_retry_limit int;
	v_retry_delay int;
	v_retry_backoff bool;
	v_expire_in interval;
	v_start_after timestamptz;
	v_keep_until timestamptz;
	v_singleton_for int;
	v_singleton_offset int;
	v_singleton_on timestamp without time zone;
	v_id uuid;
BEGIN
	SELECT * INTO q FROM %[1]s.queue WHERE name = queue_name;
	IF NOT FOUND THEN
		RETURN NULL;
	END IF;

	-- start_after: an absolute UTC timestamp when the string ends 'Z', else a
	-- relative interval from now (e.g. '5 minutes'); unset defaults to '0'.
	IF options->>'start_after' IS NULL THEN
		v_start_after := now();
	ELSIF right(options->>'start_after', 1) = 'Z' THEN
		v_start_after := (options->>'start_after')::timestamptz;
	ELSE
		v_start_after := now() + (options->>'start_after')::interval;
	END IF;

	v_retry_limit := COALESCE((options->>'retry_limit')::int, q.retry_limit, 2);
	v_retry_backoff := COALESCE((options->>'retry_backoff')::bool, q.retry_backoff, false);
	IF v_retry_backoff THEN
		v_retry_delay := GREATEST(COALESCE((options->>'retry_delay')::int, q.retry_delay, 0), 1);
	ELSE
		v_retry_delay := COALESCE((options->>'retry_delay')::int, q.retry_delay, 0);
	END IF;
	v_expire_in := COALESCE((options->>'expire_in')::int, q.expire_seconds, 900) * interval '1 second';

	-- keep_until: job override (absolute if it ends 'Z', else start_after plus
	-- an interval), else start_after plus the queue's retention, else the
	-- 14-day default.
	IF options->>'keep_until' IS NOT NULL THEN
		IF right(options->>'keep_until', 1) = 'Z' THEN
			v_keep_until := (options->>'keep_until')::timestamptz;
		ELSE
			v_keep_until := v_start_after + (options->>'keep_until')::interval;
		END IF;
	ELSIF q.retention_minutes IS NOT NULL THEN
		v_keep_until := v_start_after + q.retention_minutes * interval '1 minute';
	ELSE
		v_keep_until := v_start_after + interval '14 days';
	END IF;

	v_singleton_for := COALESCE((options->>'singleton_for')::int, (options->>'singleton_on')::int);
	v_singleton_offset := COALESCE((options->>'singleton_offset')::int, 0);
	IF v_singleton_for IS NOT NULL THEN
		v_singleton_on := 'epoch'::timestamp + interval '1 second' *
			(v_singleton_for * floor((extract(epoch FROM now()) + v_singleton_offset) / v_singleton_for));
	END IF;

	INSERT INTO %[1]s.job (
		id, name, data, priority, retry_limit, retry_delay, retry_backoff,
		start_after, singleton_key, singleton_on, expire_in, keep_until,
		dead_letter, policy
	)
	VALUES (
		COALESCE(id, gen_random_uuid()),
		queue_name,
		data,
		COALESCE((options->>'priority')::int, 0),
		v_retry_limit,
		v_retry_delay,
		v_retry_backoff,
		v_start_after,
		options->>'singleton_key',
		v_singleton_on,
		v_expire_in,
		v_keep_until,
		COALESCE(options->>'dead_letter', q.dead_letter),
		q.policy
	)
	RETURNING job.id INTO v_id;

	RETURN v_id;
END;
$$
LANGUAGE plpgsql;
`

func CreateJobProc(schema string) string {
	return fmt.Sprintf(createJobProc, schema)
}
