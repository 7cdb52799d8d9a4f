// SPDX-License-Identifier: Apache-2.0

package install_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xataio/pgqueue/internal/testutils"
	"github.com/xataio/pgqueue/pkg/db"
	"github.com/xataio/pgqueue/pkg/install"
	"github.com/xataio/pgqueue/pkg/sqlt"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestInstallCreatesSchema(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}
		schema := testutils.RandomSchemaName()

		require.NoError(t, install.Install(ctx, rdb, schema))

		v, err := install.Status(ctx, rdb, schema)
		require.NoError(t, err)
		assert.Equal(t, sqlt.CurrentVersion, v.Version)
	})
}

func TestInstallIsIdempotent(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}
		schema := testutils.RandomSchemaName()

		require.NoError(t, install.Install(ctx, rdb, schema))
		require.NoError(t, install.Install(ctx, rdb, schema))

		v, err := install.Status(ctx, rdb, schema)
		require.NoError(t, err)
		assert.Equal(t, sqlt.CurrentVersion, v.Version)
	})
}

func TestInstallIsSafeUnderConcurrency(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		schema := testutils.RandomSchemaName()

		const n = 5
		errCh := make(chan error, n)
		for i := 0; i < n; i++ {
			go func() {
				rdb := &db.RDB{DB: conn}
				errCh <- install.Install(ctx, rdb, schema)
			}()
		}
		for i := 0; i < n; i++ {
			require.NoError(t, <-errCh)
		}

		rdb := &db.RDB{DB: conn}
		v, err := install.Status(ctx, rdb, schema)
		require.NoError(t, err)
		assert.Equal(t, sqlt.CurrentVersion, v.Version)
	})
}

func TestInstallRejectsOlderSchema(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}
		schema := testutils.RandomSchemaName()

		require.NoError(t, install.Install(ctx, rdb, schema))

		_, err := conn.ExecContext(ctx, fmt.Sprintf("UPDATE %s.version SET version = version - 1", schema))
		require.NoError(t, err)

		err = install.Install(ctx, rdb, schema)
		assert.ErrorIs(t, err, install.ErrIncompatibleSchema)
	})
}
