package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/provision"
)

const (
	FlagForce       = "force"
	FlagPrune       = "prune"
	FlagConcurrency = "concurrency"
)

var errItemsFailed = errors.New("some items failed")

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Bring the installation in line with the configuration",
		Long: `Resolve the configured core and plugins, download everything whose build
differs from the lock file and record the new builds.

Frozen items are never updated once installed, not even with --force.
The command exits with status 1 when any item failed.`,
		Example: strings.TrimSpace(`
# Install or update everything in provision.toml
provision install

# Re-download every unfrozen item
provision install --force

# Remove plugins that are no longer configured
provision install --prune
`),
		Args: cobra.NoArgs,
		RunE: runInstall,
	}

	cmd.Flags().Bool(FlagForce, false, "re-download every item that is not frozen")
	cmd.Flags().Bool(FlagPrune, false, "remove installed plugins that are not configured")
	cmd.Flags().Int(FlagConcurrency, -1, "maximum parallel plugin downloads, 0 for unbounded; defaults to the configuration")
	return cmd
}

func runInstall(cmd *cobra.Command, _ []string) error {
	logger := loggerFor(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if force, _ := cmd.Flags().GetBool(FlagForce); force {
		cfg.Core.ForceUpdate = true
		for i := range cfg.Plugins {
			cfg.Plugins[i].ForceUpdate = true
		}
	}
	if prune, _ := cmd.Flags().GetBool(FlagPrune); prune {
		cfg.Prune = true
	}
	if n, _ := cmd.Flags().GetInt(FlagConcurrency); n >= 0 {
		cfg.Fetch.Concurrency = n
	}

	report, err := provision.Run(cmd.Context(), cfg, logger)
	if report == nil {
		return err
	}
	report.Render(cmd.OutOrStdout())

	if report.Core != nil && report.Core.Err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		logger.Error().Int("failed", len(failed)).Msg("provisioning finished with failures")
		return fmt.Errorf("%w: %d", errItemsFailed, len(failed))
	}
	return err
}
