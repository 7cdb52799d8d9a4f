// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <queue> <job-id>...",
		Short: "Delete one or more jobs outright, regardless of state",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ids, err := parseJobIDs(args[1:])
			if err != nil {
				return err
			}

			n, err := c.DeleteJobs(cmd.Context(), args[0], ids)
			if err != nil {
				return err
			}

			fmt.Printf("%d job(s) deleted\n", n)
			return nil
		},
	}
}
