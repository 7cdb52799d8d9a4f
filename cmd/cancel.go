// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <queue> <job-id>...",
		Short: "Cancel one or more jobs that have not yet completed",
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

			n, err := c.CancelJobs(cmd.Context(), args[0], ids)
			if err != nil {
				return err
			}

			fmt.Printf("%d job(s) cancelled\n", n)
			return nil
		},
	}
}
