// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xataio/pgqueue/cmd/flags"
	"github.com/xataio/pgqueue/pkg/client"
)

// Version is the pgqueue CLI version.
var Version = "development"

func init() {
	viper.SetEnvPrefix("PGQUEUE")
	viper.AutomaticEnv()

	flags.PgConnectionFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "pgqueue",
	SilenceUsage: true,
	Version:      Version,
}

// NewClient connects to the Postgres instance and schema named by the
// root command's persistent flags, running the installer.
func NewClient(ctx context.Context) (*client.Client, error) {
	return client.NewBuilder().
		Schema(flags.Schema()).
		ConnectTo(ctx, flags.PostgresURL())
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(failCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(loadtestCmd())

	return rootCmd.Execute()
}
