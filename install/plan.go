package install

import (
	"context"

	"github.com/git-pkgs/provision/internal/core"
	"github.com/git-pkgs/provision/reconcile"
)

// PlanItem is what a pass would do for one item.
type PlanItem struct {
	Name      string
	Kind      Kind
	Reason    reconcile.Reason
	Installed string // recorded build, empty when nothing is installed
	Target    *core.Target
	Err       error
}

// Fetch reports whether the pass would download the item.
func (p PlanItem) Fetch() bool {
	return p.Err == nil && reconcile.Decision{Reason: p.Reason}.Fetch()
}

// Plan lists the decisions of a pass without downloading anything.
type Plan struct {
	Core    PlanItem
	Plugins []PlanItem
	Prune   []string
}

// Plan resolves every desired item and decides what Run would do with it.
// Nothing is fetched and the lock record is not touched. A core resolution
// failure is returned as the error; plugin failures stay on their item.
func (i *Installer) Plan(ctx context.Context, desired Desired) (*Plan, error) {
	state := i.store.Read()
	plan := &Plan{Core: PlanItem{Name: string(desired.Core.Provider), Kind: KindCore}}

	target, err := i.resolver.ResolveCore(ctx, desired.Core)
	if err != nil {
		plan.Core.Err = err
		return plan, err
	}
	plan.Core.Target = target

	current := installedCore(state.Core, desired.Core.Provider, target.Version)
	if current != nil {
		plan.Core.Installed = state.Core.Build
	}
	decision := reconcile.Decide(reconcile.Flags{Freeze: desired.Core.Freeze, ForceUpdate: desired.Core.ForceUpdate}, target.Build, current)
	plan.Core.Reason = decision.Reason

	gameVersion := target.Version
	if !decision.Fetch() && current != nil && state.Core.Version != "" {
		gameVersion = state.Core.Version
	}
	platform := core.Platform{Loader: desired.Core.Provider.Loader(), GameVersion: gameVersion}

	wanted := make(map[string]bool, len(desired.Plugins))
	for _, spec := range desired.Plugins {
		wanted[spec.Name] = true
		item := PlanItem{Name: spec.Name, Kind: KindPlugin}

		target, err := i.resolver.ResolvePlugin(ctx, spec, platform)
		if err != nil {
			item.Err = err
			plan.Plugins = append(plan.Plugins, item)
			continue
		}
		item.Target = target

		current := installedPlugin(state, spec.Name)
		if current != nil {
			item.Installed = current.Build
		}
		item.Reason = reconcile.Decide(reconcile.Flags{Freeze: spec.Freeze, ForceUpdate: spec.ForceUpdate}, target.Build, current).Reason
		plan.Plugins = append(plan.Plugins, item)
	}

	if desired.Prune {
		for _, name := range state.PluginNames() {
			if !wanted[name] {
				plan.Prune = append(plan.Prune, name)
			}
		}
	}
	return plan, nil
}
