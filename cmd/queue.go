// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/xataio/pgqueue/pkg/queue"
)

func queueCmd() *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Create, inspect, and delete queues",
	}

	queueCmd.AddCommand(queueCreateCmd())
	queueCmd.AddCommand(queueListCmd())
	queueCmd.AddCommand(queueGetCmd())
	queueCmd.AddCommand(queueDeleteCmd())

	return queueCmd
}

func queueCreateCmd() *cobra.Command {
	var policy string
	var retryLimit int
	var retryDelay int
	var retryBackoff bool
	var expireInSeconds int
	var retentionMinutes int
	var deadLetter string

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			opts := queue.Options{Name: args[0]}
			if policy != "" {
				p, err := queue.ParsePolicy(policy)
				if err != nil {
					return err
				}
				opts.Policy = p
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
				opts.ExpireInSeconds = &expireInSeconds
			}
			if cmd.Flags().Changed("retention") {
				opts.RetentionMinutes = &retentionMinutes
			}
			if deadLetter != "" {
				opts.DeadLetter = &deadLetter
			}

			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Creating queue %q...", args[0])).Start()
			if err := c.CreateQueue(cmd.Context(), opts); err != nil {
				sp.Fail(fmt.Sprintf("Failed to create queue: %s", err))
				return err
			}
			sp.Success("Queue created")
			return nil
		},
	}

	createCmd.Flags().StringVar(&policy, "policy", "", "Throttling policy: standard, short, singleton, or stately")
	createCmd.Flags().IntVar(&retryLimit, "retry-limit", 0, "Default retry limit for jobs in this queue")
	createCmd.Flags().IntVar(&retryDelay, "retry-delay", 0, "Default retry delay in seconds")
	createCmd.Flags().BoolVar(&retryBackoff, "retry-backoff", false, "Use exponential backoff between retries by default")
	createCmd.Flags().IntVar(&expireInSeconds, "expire-in", 0, "Default job expiry in seconds")
	createCmd.Flags().IntVar(&retentionMinutes, "retention", 0, "Default archive retention in minutes")
	createCmd.Flags().StringVar(&deadLetter, "dead-letter", "", "Queue to route terminally failed jobs to")

	return createCmd
}

func queueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			queues, err := c.GetQueues(cmd.Context())
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(queues, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func queueGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a queue's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			q, err := c.GetQueue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if q == nil {
				return fmt.Errorf("queue %q does not exist", args[0])
			}

			out, err := json.MarshalIndent(q, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func queueDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a queue and its partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Deleting queue %q...", args[0])).Start()
			if err := c.DeleteQueue(cmd.Context(), args[0]); err != nil {
				sp.Fail(fmt.Sprintf("Failed to delete queue: %s", err))
				return err
			}
			sp.Success("Queue deleted")
			return nil
		},
	}
}
