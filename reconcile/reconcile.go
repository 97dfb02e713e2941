// Package reconcile decides whether an item has to be fetched.
package reconcile

// Flags are the per-item policy switches from the desired state.
type Flags struct {
	Freeze      bool
	ForceUpdate bool
}

// Installed is what the lock records for an item.
type Installed struct {
	Build string
}

// Reason explains a Decision.
type Reason string

const (
	// Install means nothing is recorded for the item yet.
	Install Reason = "install"
	// Update means the resolved build differs from the recorded one.
	Update Reason = "update"
	// Force means the recorded build matches but a refetch was requested.
	Force Reason = "force"
	// UpToDate means the recorded build matches the resolved one.
	UpToDate Reason = "up-to-date"
	// Frozen means the item is pinned to whatever is installed.
	Frozen Reason = "frozen"
	// Remove means the item is recorded but no longer desired.
	// Decide never returns it; pruning does.
	Remove Reason = "remove"
)

// Decision is the outcome for one item.
type Decision struct {
	Reason Reason
}

// Fetch reports whether the item has to be downloaded.
func (d Decision) Fetch() bool {
	switch d.Reason {
	case Install, Update, Force:
		return true
	default:
		return false
	}
}

func (d Decision) String() string {
	return string(d.Reason)
}

// Decide applies the reconciliation policy in order:
// nothing installed fetches; an identical build without force skips;
// freeze skips; anything else fetches.
//
// Freeze wins over force, but never prevents the first install.
func Decide(flags Flags, resolvedBuild string, current *Installed) Decision {
	if current == nil {
		return Decision{Reason: Install}
	}
	if resolvedBuild == current.Build && !flags.ForceUpdate {
		return Decision{Reason: UpToDate}
	}
	if flags.Freeze {
		return Decision{Reason: Frozen}
	}
	if resolvedBuild == current.Build {
		return Decision{Reason: Force}
	}
	return Decision{Reason: Update}
}

// NeedsUpdate reports whether Decide would fetch.
func NeedsUpdate(flags Flags, resolvedBuild string, current *Installed) bool {
	return Decide(flags, resolvedBuild, current).Fetch()
}
