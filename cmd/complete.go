// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func completeCmd() *cobra.Command {
	var output string

	completeCmd := &cobra.Command{
		Use:   "complete <queue> <job-id>...",
		Short: "Mark one or more jobs as completed",
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

			n, err := c.CompleteJobs(cmd.Context(), args[0], ids, outData)
			if err != nil {
				return err
			}

			fmt.Printf("%d job(s) completed\n", n)
			return nil
		},
	}

	completeCmd.Flags().StringVar(&output, "output", "", "JSON output to attach to the completed job(s)")

	return completeCmd
}
