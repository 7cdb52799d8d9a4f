// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func failCmd() *cobra.Command {
	var output string

	failCmd := &cobra.Command{
		Use:   "fail <queue> <job-id>...",
		Short: "Mark one or more jobs as failed, retrying or dead-lettering them as their policy dictates",
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

			var outData any
			if output != "" {
				if !json.Valid([]byte(output)) {
					return fmt.Errorf("output argument is not valid JSON")
				}
				outData = json.RawMessage(output)
			}

			n, err := c.FailJobsWithDetails(cmd.Context(), args[0], ids, outData)
			if err != nil {
				return err
			}

			fmt.Printf("%d job(s) marked as failed\n", n)
			return nil
		},
	}

	failCmd.Flags().StringVar(&output, "output", "", "JSON output describing the failure to attach to the job(s)")

	return failCmd
}
