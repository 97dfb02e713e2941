package install

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/provision/internal/core"
	"github.com/git-pkgs/provision/lock"
	"github.com/git-pkgs/provision/reconcile"
)

func TestPlanDoesNotFetch(t *testing.T) {
	h := newHarness(t)
	h.resolver.plugin("foo", "1")
	h.resolver.plugin("bar", "2")
	h.resolver.errs["baz"] = core.ErrNotFound
	h.store.UpsertPlugin(lock.PluginMeta{Name: "foo", Build: "1", Path: "foo.jar"})
	h.store.UpsertPlugin(lock.PluginMeta{Name: "old", Build: "3", Path: "old.jar"})

	plan, err := h.installer.Plan(context.Background(), Desired{
		Core:    paperCore(),
		Plugins: []core.PluginSpec{modrinthPlugin("foo"), modrinthPlugin("bar"), modrinthPlugin("baz")},
		Prune:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, reconcile.Install, plan.Core.Reason)
	assert.True(t, plan.Core.Fetch())

	require.Len(t, plan.Plugins, 3)
	assert.Equal(t, reconcile.UpToDate, plan.Plugins[0].Reason)
	assert.Equal(t, "1", plan.Plugins[0].Installed)
	assert.Equal(t, reconcile.Install, plan.Plugins[1].Reason)
	assert.True(t, plan.Plugins[1].Fetch())
	assert.Error(t, plan.Plugins[2].Err)
	assert.False(t, plan.Plugins[2].Fetch())
	assert.Equal(t, []string{"old"}, plan.Prune)

	assert.Zero(t, h.transport.totalFetches())
	assert.Len(t, h.store.Read().Plugins, 2)
	assert.Equal(t, "1.21.4", h.resolver.platforms["foo"].GameVersion)
}

func TestPlanCoreFailure(t *testing.T) {
	h := newHarness(t)
	h.resolver.coreErr = core.ErrNoMatchingVersion

	plan, err := h.installer.Plan(context.Background(), Desired{Core: paperCore()})
	assert.ErrorIs(t, err, core.ErrNoMatchingVersion)
	assert.Error(t, plan.Core.Err)
	assert.Empty(t, plan.Plugins)
}
