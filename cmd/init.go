// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pgfine/pgfine/pkg/project"
)

var initCmd = &cobra.Command{
	Use:   "init <directory>",
	Short: "Write a starter project directory (bootstrap/teardown scripts and fixed subdirectories)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		connStr := os.Getenv("PGFINE_CONNECTION_STRING")

		sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Initializing %s...", dir)).Start()
		if err := project.Init(dir, connStr); err != nil {
			sp.Fail(fmt.Sprintf("Failed to initialize project: %s", err))
			return err
		}

		sp.Success("Project scaffolded")
		return nil
	},
}
