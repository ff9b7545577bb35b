// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var dropNoJoke bool

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Tear down the target database and its owning role",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := NewEngine(ctx)
		if err != nil {
			return err
		}

		if !dropNoJoke {
			fmt.Println("This will permanently drop the target database. Re-run with --no-joke to proceed.")
			return nil
		}

		sp, _ := pterm.DefaultSpinner.WithText("Tearing down database...").Start()
		if err := eng.Drop(ctx, dropNoJoke); err != nil {
			sp.Fail(fmt.Sprintf("drop error: %s", err))
			return err
		}

		sp.Success("Teardown complete")
		return nil
	},
}

func init() {
	dropCmd.Flags().BoolVar(&dropNoJoke, "no-joke", false, "actually perform the drop; without this flag the command is a no-op")
}
