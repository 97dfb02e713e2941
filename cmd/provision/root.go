package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/git-pkgs/provision/config"
	"github.com/git-pkgs/provision/internal/logging"
)

const (
	FlagConfig   = "config"
	FlagLogLevel = "log-level"
	FlagNoColor  = "no-color"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Install a game server core and its plugins",
		Long: `provision resolves the server core and plugins named in provision.toml,
downloads what changed since the last run, verifies every download against
its published hash and records the result in a lock file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	addGlobalFlags(cmd.PersistentFlags())

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newLockCmd())
	cmd.AddCommand(newProvidersCmd())
	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagConfig, "c", config.DefaultPath, "path to the configuration file")
	fs.String(FlagLogLevel, "", "log level (debug, info, warn, error); defaults to $"+logging.EnvLevel+" or info")
	fs.Bool(FlagNoColor, false, "disable colored log output")
}

func loggerFor(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString(FlagLogLevel)
	noColor, _ := cmd.Flags().GetBool(FlagNoColor)
	return logging.New("provision", logging.Options{
		Level:   level,
		NoColor: noColor,
		Out:     cmd.ErrOrStderr(),
	})
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString(FlagConfig)
	return config.Load(path)
}
