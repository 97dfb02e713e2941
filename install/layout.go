package install

import (
	"path/filepath"

	"github.com/git-pkgs/provision/internal/core"
)

// Layout maps items to artifact paths. Two desired items must never share a path.
type Layout struct {
	CoreDir    string
	PluginsDir string
}

// DefaultLayout puts the core in the working directory and plugins under plugins/.
func DefaultLayout() Layout {
	return Layout{CoreDir: ".", PluginsDir: "plugins"}
}

// CorePath is the canonical path of a provider's server binary.
func (l Layout) CorePath(provider core.Provider) string {
	return filepath.Join(l.CoreDir, string(provider)+".jar")
}

// PluginPath is the canonical path of a plugin binary.
func (l Layout) PluginPath(name string) string {
	return filepath.Join(l.PluginsDir, name+".jar")
}
