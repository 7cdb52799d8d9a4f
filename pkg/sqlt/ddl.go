// SPDX-License-Identifier: Apache-2.0

// Package sqlt renders schema-scoped SQL text for the queue installation,
// the per-queue partition DDL, and the client-facing DML. Every function
// here is a pure function of an already-validated schema name: nothing in
// this package opens a connection or executes a statement.
package sqlt

import "fmt"

// CreateSchema returns the statement that creates the queue's schema.
func CreateSchema(schema string) string {
	return fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %[1]s;`, schema)
}

// CreateJobStateEnum returns the statement that creates the %[1]s.job_state
// enum, guarded by an existence check against pg_type/pg_namespace rather
// than EXCEPTION WHEN duplicate_object, since CREATE TYPE has no IF NOT
// EXISTS form.
const createJobStateEnum = `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_type typ
		INNER JOIN pg_namespace nsp ON (typ.typnamespace = nsp.oid)
		WHERE typ.typname = 'job_state' AND nsp.nspname = '%[1]s'
	) THEN
		CREATE TYPE %[1]s.job_state AS ENUM ('created', 'retry', 'active', 'completed', 'cancelled', 'failed');
	END IF;
END $$;
`

func CreateJobStateEnum(schema string) string {
	return fmt.Sprintf(createJobStateEnum, schema)
}

// CreateVersionTable returns the statement creating the single-row-per-
// install version table. One row per completed install; version is the
// primary key rather than a singleton boolean guard, since this table's
// only invariant is "at most one row, picked by caller discipline", not
// "exactly one row" enforced structurally.
const createVersionTable = `
CREATE TABLE IF NOT EXISTS %[1]s.version (
	version				int PRIMARY KEY,
	maintained_on		timestamptz,
	cron_on				timestamptz,
	monitored_on		timestamptz
);
`

func CreateVersionTable(schema string) string {
	return fmt.Sprintf(createVersionTable, schema)
}

const createQueueTable = `
CREATE TABLE IF NOT EXISTS %[1]s.queue (
	name				text,
	policy				text,
	retry_limit			int,
	retry_delay			int,
	retry_backoff		bool,
	expire_seconds		int,
	retention_minutes	int,
	dead_letter			text REFERENCES %[1]s.queue (name),
	partition_name		text,
	created_on			timestamptz NOT NULL DEFAULT now(),
	updated_on			timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (name)
);
`

func CreateQueueTable(schema string) string {
	return fmt.Sprintf(createQueueTable, schema)
}

const createSubscriptionTable = `
CREATE TABLE IF NOT EXISTS %[1]s.subscription (
	event				text NOT NULL,
	name				text NOT NULL REFERENCES %[1]s.queue ON DELETE CASCADE,
	created_on			timestamptz NOT NULL DEFAULT now(),
	updated_on			timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (event, name)
);
`

func CreateSubscriptionTable(schema string) string {
	return fmt.Sprintf(createSubscriptionTable, schema)
}

// createJobTable is the parent, partitioned (by queue name) job table.
// Every per-queue partition is created LIKE this table INCLUDING DEFAULTS
// by CreateQueueProc.
const createJobTable = `
CREATE TABLE IF NOT EXISTS %[1]s.job (
	id					uuid NOT NULL DEFAULT gen_random_uuid(),
	name				text NOT NULL,
	priority			integer NOT NULL DEFAULT (0),
	data				jsonb,
	state				%[1]s.job_state NOT NULL DEFAULT ('created'),
	retry_limit			integer NOT NULL DEFAULT (0),
	retry_count			integer NOT NULL DEFAULT (0),
	retry_delay			integer NOT NULL DEFAULT (0),
	retry_backoff		boolean NOT NULL DEFAULT false,
	start_after			timestamptz NOT NULL DEFAULT now(),
	started_on			timestamptz,
	singleton_key		text,
	singleton_on		timestamp without time zone,
	expire_in			interval NOT NULL DEFAULT interval '15 minutes',
	created_on			timestamptz NOT NULL DEFAULT now(),
	completed_on		timestamptz,
	keep_until			timestamptz NOT NULL DEFAULT now() + interval '14 days',
	output				jsonb,
	dead_letter			text,
	policy				text
) PARTITION BY LIST (name);
`

func CreateJobTable(schema string) string {
	return fmt.Sprintf(createJobTable, schema)
}

// createArchiveTable mirrors the job table's shape plus archived_on, used
// as the terminal resting place for jobs evicted by retention. No operation
// in this module writes to it; it exists so external maintenance tooling
// has a stable place to move expired jobs into.
const createArchiveTable = `
CREATE TABLE IF NOT EXISTS %[1]s.archive (
	LIKE %[1]s.job,
	archived_on			timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (name, id)
);
CREATE INDEX IF NOT EXISTS archive_i1 ON %[1]s.archive (archived_on);
`

func CreateArchiveTable(schema string) string {
	return fmt.Sprintf(createArchiveTable, schema)
}
