// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	var count int

	fetchCmd := &cobra.Command{
		Use:   "fetch <queue>",
		Short: "Fetch and claim jobs from a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			jobs, err := c.FetchJobs(cmd.Context(), args[0], float64(count))
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(jobs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	fetchCmd.Flags().IntVarP(&count, "count", "n", 1, "Maximum number of jobs to fetch")

	return fetchCmd
}
