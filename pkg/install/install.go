// SPDX-License-Identifier: Apache-2.0

// Package install is the idempotent installer and version gate for a
// pgqueue schema: it creates the schema, enum, tables, and procedures on
// first use, and on every subsequent use re-checks the schema is no older
// than this package's supported floor before handing control back to the
// caller.
package install

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xataio/pgqueue/pkg/db"
	"github.com/xataio/pgqueue/pkg/sqlt"
)

// ErrIncompatibleSchema is returned when an existing schema's version is
// older than sqlt.MinSupportedVersion. This is fatal: the caller should
// not proceed against a schema this package does not know how to speak to.
var ErrIncompatibleSchema = errors.New("pgqueue: installed schema version is older than the minimum supported version")

// Version describes the single row in <schema>.version.
type Version struct {
	Version      int
	MaintainedOn sql.NullTime
	CronOn       sql.NullTime
	MonitoredOn  sql.NullTime
}

// Install ensures schema is ready for use: if the version table does not
// exist yet, the full DDL is applied inside one advisory-locked
// transaction; otherwise the existing version is checked against
// sqlt.MinSupportedVersion and the three procedures are unconditionally
// reinstalled, since CREATE OR REPLACE FUNCTION is cheap and this package
// never wants a stale procedure body left behind by an older client
// version.
func Install(ctx context.Context, conn db.DB, schema string) error {
	var exists bool
	row := conn.QueryRowContext(ctx, sqlt.CheckAppInstalled(schema))
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("pgqueue: checking for existing schema: %w", err)
	}

	if !exists {
		if _, err := conn.ExecContext(ctx, sqlt.InstallDDL(schema)); err != nil {
			return fmt.Errorf("pgqueue: installing schema %q: %w", schema, err)
		}
		return nil
	}

	v, err := Status(ctx, conn, schema)
	if err != nil {
		return fmt.Errorf("pgqueue: reading installed version: %w", err)
	}
	if v.Version < sqlt.MinSupportedVersion {
		return ErrIncompatibleSchema
	}

	if _, err := conn.ExecContext(ctx, sqlt.CreateQueueProc(schema)); err != nil {
		return fmt.Errorf("pgqueue: reinstalling create_queue: %w", err)
	}
	if _, err := conn.ExecContext(ctx, sqlt.DeleteQueueProc(schema)); err != nil {
		return fmt.Errorf("pgqueue: reinstalling delete_queue: %w", err)
	}
	if _, err := conn.ExecContext(ctx, sqlt.CreateJobProc(schema)); err != nil {
		return fmt.Errorf("pgqueue: reinstalling create_job: %w", err)
	}

	return nil
}

// Status returns the installed schema's version row.
func Status(ctx context.Context, conn db.DB, schema string) (*Version, error) {
	row := conn.QueryRowContext(ctx, sqlt.GetApp(schema))

	var v Version
	if err := row.Scan(&v.Version, &v.MaintainedOn, &v.CronOn, &v.MonitoredOn); err != nil {
		return nil, err
	}
	return &v, nil
}
