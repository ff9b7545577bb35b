// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Reconcile the target database with the project directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := NewEngine(ctx)
		if err != nil {
			return err
		}

		sp, _ := pterm.DefaultSpinner.WithText("Reconciling database...").Start()
		if err := eng.Migrate(ctx); err != nil {
			sp.Fail(fmt.Sprintf("migrate error: %s", err))
			return err
		}

		sp.Success("Database matches the project")
		return nil
	},
}
