// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pgfine/pgfine/internal/config"
	"github.com/pgfine/pgfine/pkg/engine"
)

// Version is the pgfine version.
var Version = "development"

var rootCmd = &cobra.Command{
	Use:          "pgfine",
	SilenceUsage: true,
	Version:      Version,
}

// NewEngine reads the PGFINE_* environment into a Config and wires an
// Engine against it.
func NewEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return engine.New(cfg, engine.NewLogger(), engine.OpenPostgres), nil
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(initCmd)

	return rootCmd.Execute()
}
