package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/provision"
	_ "github.com/git-pkgs/provision/all"
	"github.com/git-pkgs/provision/internal/core"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported core providers and plugin sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Kind", "Loader", "API"})
			for _, p := range provision.SupportedProviders() {
				t.AppendRow(table.Row{p, "core", p.Loader(), core.DefaultCoreURL(p)})
			}
			for _, s := range provision.SupportedSources() {
				t.AppendRow(table.Row{s, "plugins", "", core.DefaultSourceURL(s)})
			}
			t.AppendRow(table.Row{core.URL, "plugins", "", "direct link"})
			t.Render()
			return nil
		},
	}
}
