package install

import (
	"errors"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/git-pkgs/provision/internal/core"
	"github.com/git-pkgs/provision/reconcile"
)

// ItemResult is the outcome of one item in a pass.
type ItemResult struct {
	Name    string
	Kind    Kind
	State   State
	Reason  reconcile.Reason
	Build   string
	Version string
	Path    string
	Err     error
}

// Fetched reports whether new bytes were committed for the item.
func (r ItemResult) Fetched() bool {
	return r.State == Committed && r.Reason != reconcile.Remove
}

// Report collects the item results of a pass.
type Report struct {
	Core    *ItemResult
	Plugins []ItemResult
	Pruned  []ItemResult
}

// Items returns every result, core first, then plugins and pruned entries by name.
func (r *Report) Items() []ItemResult {
	var out []ItemResult
	if r.Core != nil {
		out = append(out, *r.Core)
	}
	plugins := append([]ItemResult(nil), r.Plugins...)
	sort.SliceStable(plugins, func(i, j int) bool { return plugins[i].Name < plugins[j].Name })
	out = append(out, plugins...)
	pruned := append([]ItemResult(nil), r.Pruned...)
	sort.SliceStable(pruned, func(i, j int) bool { return pruned[i].Name < pruned[j].Name })
	return append(out, pruned...)
}

// Failed returns the results that ended in Failed.
func (r *Report) Failed() []ItemResult {
	var out []ItemResult
	for _, item := range r.Items() {
		if item.State == Failed {
			out = append(out, item)
		}
	}
	return out
}

// Counts returns how many items were fetched, skipped and failed.
func (r *Report) Counts() (fetched, skipped, failed int) {
	for _, item := range r.Items() {
		switch {
		case item.State == Failed:
			failed++
		case item.State == Skipped:
			skipped++
		case item.Fetched():
			fetched++
		}
	}
	return fetched, skipped, failed
}

// Err joins the errors of all failed items. It is nil when nothing failed.
func (r *Report) Err() error {
	var errs []error
	for _, item := range r.Failed() {
		errs = append(errs, item.Err)
	}
	return errors.Join(errs...)
}

// Render writes the report as a table.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Item", "Kind", "State", "Reason", "Version", "Build", "Error"})
	for _, item := range r.Items() {
		msg := ""
		if item.Err != nil {
			msg = item.Err.Error()
		}
		t.AppendRow(table.Row{item.Name, item.Kind, item.State, item.Reason, item.Version, shortBuild(item.Build), msg})
	}
	fetched, skipped, failed := r.Counts()
	t.AppendFooter(table.Row{"", "", "", "", "fetched", fetched, ""})
	t.AppendFooter(table.Row{"", "", "", "", "skipped", skipped, ""})
	t.AppendFooter(table.Row{"", "", "", "", "failed", failed, ""})
	t.Render()
}

func shortBuild(build string) string {
	if h, err := core.ParseHash(build); err == nil && !h.IsZero() && len(h.Value) > 12 {
		return h.Algorithm + ":" + h.Value[:12]
	}
	if len(build) > 24 {
		return build[:24] + "…"
	}
	return build
}
