// Package all imports all supported provider implementations.
//
// Import this package for its side effects to register every core provider
// and plugin source:
//
//	import (
//		"github.com/git-pkgs/provision"
//		_ "github.com/git-pkgs/provision/all"
//	)
//
//	// Now all providers are available
//	providers := provision.SupportedProviders()
//	// ["folia", "paper", "purpur", "vanilla", "velocity", "waterfall"]
package all

import (
	_ "github.com/git-pkgs/provision/internal/hangar"
	_ "github.com/git-pkgs/provision/internal/modrinth"
	_ "github.com/git-pkgs/provision/internal/papermc"
	_ "github.com/git-pkgs/provision/internal/purpur"
	_ "github.com/git-pkgs/provision/internal/vanilla"
)
