// SPDX-License-Identifier: Apache-2.0

package sqlt

import "fmt"

// CurrentVersion is the schema version this package installs.
const CurrentVersion = 23

// MinSupportedVersion is the oldest preexisting schema version pkg/install
// will agree to operate against; anything older is fatal at connect time.
const MinSupportedVersion = CurrentVersion

// locked wraps the given statements in a single transaction guarded by a
// schema-derived advisory lock, so concurrent first-time installs targeting
// different schemas never contend with one another, while two processes
// racing to install the same schema serialize instead of both attempting
// CREATE TABLE at once.
func locked(schema string, stmts ...string) string {
	body := ""
	for _, s := range stmts {
		body += s + "\n"
	}
	return fmt.Sprintf(`
BEGIN;
SET LOCAL lock_timeout = '30s';
SET LOCAL idle_in_transaction_session_timeout = '30s';
SELECT pg_advisory_xact_lock(('x' || encode(sha224((current_database() || '.pgqueue.%[1]s')::bytea), 'hex'))::bit(64)::bigint);
%[2]s
COMMIT;
`, schema, body)
}

// InstallDDL returns the full first-time install script: schema, enum,
// tables, procedures, and the version row, all inside one advisory-locked
// transaction. pkg/install only runs this once, when the version table is
// not yet present.
func InstallDDL(schema string) string {
	return locked(schema,
		CreateSchema(schema),
		CreateJobStateEnum(schema),
		CreateVersionTable(schema),
		CreateQueueTable(schema),
		CreateSubscriptionTable(schema),
		CreateJobTable(schema),
		CreateArchiveTable(schema),
		CreateQueueProc(schema),
		DeleteQueueProc(schema),
		CreateJobProc(schema),
		InsertVersion(schema, CurrentVersion),
	)
}
