package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/provision"
	"github.com/git-pkgs/provision/install"
)

const (
	FlagSizes = "sizes"
	FlagLinks = "links"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what install would download without changing anything",
		Args:  cobra.NoArgs,
		RunE:  runPlan,
	}
	cmd.Flags().Bool(FlagSizes, false, "ask download hosts for the size of every pending download")
	cmd.Flags().Bool(FlagLinks, false, "list project pages, download pages and package URLs of every item")
	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	logger := loggerFor(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	plan, err := provision.Plan(cmd.Context(), cfg)
	if plan == nil {
		return err
	}

	sizes, _ := cmd.Flags().GetBool(FlagSizes)
	fetcher := provision.NewFetcher(cfg.Fetch)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Item", "Kind", "Action", "Installed", "Resolved", "Version", "Size"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 7, Align: text.AlignRight}})

	pending := 0
	row := func(item install.PlanItem) {
		action, resolved, version, size := string(item.Reason), "", "", ""
		if item.Err != nil {
			action = "error: " + item.Err.Error()
		}
		if item.Target != nil {
			resolved, version = item.Target.Build, item.Target.Version
		}
		if item.Fetch() {
			pending++
			if sizes {
				n, _, err := fetcher.Head(cmd.Context(), item.Target.Link)
				switch {
				case err != nil:
					logger.Warn().Err(err).Str("item", item.Name).Msg("size lookup failed")
				case n >= 0:
					size = humanSize(n)
				}
			}
		}
		t.AppendRow(table.Row{item.Name, item.Kind, action, item.Installed, resolved, version, size})
	}

	row(plan.Core)
	for _, item := range plan.Plugins {
		row(item)
	}
	for _, name := range plan.Prune {
		t.AppendRow(table.Row{name, install.KindPlugin, "remove", "", "", "", ""})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d to fetch", pending), "", "", "", ""})
	t.Render()

	if links, _ := cmd.Flags().GetBool(FlagLinks); links {
		renderLinks(cmd, plan, provision.Links(cfg, plan))
	}
	return err
}

func renderLinks(cmd *cobra.Command, plan *install.Plan, links map[string]map[string]string) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Item", "Project", "Download", "PURL"})

	names := []string{plan.Core.Name}
	for _, item := range plan.Plugins {
		names = append(names, item.Name)
	}
	for _, name := range names {
		l, ok := links[name]
		if !ok {
			continue
		}
		t.AppendRow(table.Row{name, l["project"], l["download"], l["purl"]})
	}
	t.Render()
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
