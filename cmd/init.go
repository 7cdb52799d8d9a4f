// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes pgqueue, installing the schema, tables, and procedures if not already present",
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, _ := pterm.DefaultSpinner.WithText("Initializing pgqueue...").Start()

		c, err := NewClient(cmd.Context())
		if err != nil {
			sp.Fail(fmt.Sprintf("Failed to initialize pgqueue: %s", err))
			return err
		}
		defer c.Close()

		sp.Success("Initialization complete")
		return nil
	},
}
