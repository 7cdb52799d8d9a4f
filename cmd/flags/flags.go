// SPDX-License-Identifier: Apache-2.0

package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func PostgresURL() string {
	return viper.GetString("PG_URL")
}

func Schema() string {
	return viper.GetString("SCHEMA")
}

func PgConnectionFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("postgres-url", "postgres://localhost:5432", "Postgres URL")
	cmd.PersistentFlags().String("schema", "pgqueue", "Postgres schema the queue installation lives in")

	viper.BindPFlag("PG_URL", cmd.PersistentFlags().Lookup("postgres-url"))
	viper.BindPFlag("SCHEMA", cmd.PersistentFlags().Lookup("schema"))
}
