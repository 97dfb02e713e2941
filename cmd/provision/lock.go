package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/provision/lock"
)

const FlagRaw = "raw"

func newLockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect the lock file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newLockShowCmd())
	return cmd
}

func newLockShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print what the lock file records as installed",
		Args:  cobra.NoArgs,
		RunE:  runLockShow,
	}
	cmd.Flags().Bool(FlagRaw, false, "print the lock file as stored")
	return cmd
}

func runLockShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	state, err := lock.Load(cfg.Paths.Lock)
	if err != nil {
		return err
	}

	if raw, _ := cmd.Flags().GetBool(FlagRaw); raw {
		data, err := lock.Encode(state)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Item", "Kind", "Version", "Build", "Path"})
	if !state.Core.IsZero() {
		t.AppendRow(table.Row{state.Core.Provider, "core", state.Core.Version, state.Core.Build, state.Core.Path})
	}
	for _, name := range state.PluginNames() {
		p := state.Plugins[name]
		t.AppendRow(table.Row{name, "plugin", "", p.Build, p.Path})
	}
	t.AppendFooter(table.Row{"", "", "", "plugins", fmt.Sprint(len(state.Plugins))})
	t.Render()
	return nil
}
