// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xataio/pgqueue/cmd/flags"
	"github.com/xataio/pgqueue/internal/loadtest"
)

func loadtestCmd() *cobra.Command {
	var jobsCount int
	var threads int

	loadtestCmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive concurrent send/fetch traffic against a fresh schema and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := loadtest.Run(cmd.Context(), loadtest.Options{
				PostgresURL: flags.PostgresURL(),
				JobsCount:   jobsCount,
				Threads:     threads,
			})
			if err != nil {
				return err
			}

			seconds := result.Elapsed.Seconds()
			fmt.Printf(
				"schema=%s sent=%d fetched=%d elapsed=%.2fs rate=%.0f jobs/sec\n",
				result.Schema, result.JobsSent, result.JobsFetched, seconds,
				float64(result.JobsSent+result.JobsFetched)/seconds,
			)
			return nil
		},
	}

	loadtestCmd.Flags().IntVarP(&jobsCount, "jobs-count", "j", 30_000, "Number of send/fetch operations per thread")
	loadtestCmd.Flags().IntVarP(&threads, "threads-count", "t", 10, "Number of concurrent threads")

	return loadtestCmd
}
