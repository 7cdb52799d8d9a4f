// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xataio/pgqueue/cmd/flags"
)

type statusLine struct {
	Schema string `json:"schema"`
	Queues int    `json:"queues"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pgqueue installation status: schema name and registered queue count",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c, err := NewClient(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		queues, err := c.GetQueues(ctx)
		if err != nil {
			return err
		}

		line := statusLine{Schema: flags.Schema(), Queues: len(queues)}

		out, err := json.MarshalIndent(line, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(out))
		return nil
	},
}
