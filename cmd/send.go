// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xataio/pgqueue/pkg/job"
)

func sendCmd() *cobra.Command {
	var priority int
	var retryLimit int
	var retryDelay int
	var retryBackoff bool
	var expireIn int
	var singletonKey string
	var singletonFor int
	var deadLetter string

	sendCmd := &cobra.Command{
		Use:   "send <queue> [data-json]",
		Short: "Send a job to a queue",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			data := json.RawMessage("null")
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("data argument is not valid JSON")
				}
				data = json.RawMessage(args[1])
			}

			opts := job.Options{}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("retry-limit") {
				opts.RetryLimit = &retryLimit
			}
			if cmd.Flags().Changed("retry-delay") {
				opts.RetryDelay = &retryDelay
			}
			if cmd.Flags().Changed("retry-backoff") {
				opts.RetryBackoff = &retryBackoff
			}
			if cmd.Flags().Changed("expire-in") {
				opts.ExpireIn = &expireIn
			}
			if singletonKey != "" {
				opts.SingletonKey = &singletonKey
			}
			if cmd.Flags().Changed("singleton-for") {
				opts.SingletonFor = &singletonFor
			}
			if deadLetter != "" {
				opts.DeadLetter = &deadLetter
			}

			id, err := c.SendJob(cmd.Context(), job.Job{Queue: args[0], Data: data, Opts: opts})
			if err != nil {
				return err
			}

			fmt.Println(id.String())
			return nil
		},
	}

	sendCmd.Flags().IntVar(&priority, "priority", 0, "Job priority; higher values are fetched first")
	sendCmd.Flags().IntVar(&retryLimit, "retry-limit", 0, "Number of retries allowed before failing")
	sendCmd.Flags().IntVar(&retryDelay, "retry-delay", 0, "Delay in seconds before a retry becomes eligible")
	sendCmd.Flags().BoolVar(&retryBackoff, "retry-backoff", false, "Use exponential backoff between retries")
	sendCmd.Flags().IntVar(&expireIn, "expire-in", 0, "Seconds after being fetched before the job is considered expired")
	sendCmd.Flags().StringVar(&singletonKey, "singleton-key", "", "Key used to deduplicate jobs within a time slot")
	sendCmd.Flags().IntVar(&singletonFor, "singleton-for", 0, "Singleton slot width in seconds")
	sendCmd.Flags().StringVar(&deadLetter, "dead-letter", "", "Queue to route this job to if it fails terminally")

	return sendCmd
}
