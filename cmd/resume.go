// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <queue> <job-id>...",
		Short: "Resume one or more cancelled jobs",
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

			n, err := c.ResumeJobs(cmd.Context(), args[0], ids)
			if err != nil {
				return err
			}

			fmt.Printf("%d job(s) resumed\n", n)
			return nil
		},
	}
}
