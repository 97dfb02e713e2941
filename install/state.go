package install

import "fmt"

// State is the lifecycle position of one item in a pass.
type State int

const (
	Planned State = iota
	Skipped
	Fetching
	Verifying
	Replacing
	Committed
	Failed
)

var stateNames = [...]string{
	Planned:   "planned",
	Skipped:   "skipped",
	Fetching:  "fetching",
	Verifying: "verifying",
	Replacing: "replacing",
	Committed: "committed",
	Failed:    "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Skipped || s == Committed || s == Failed
}

var transitions = map[State][]State{
	Planned:   {Skipped, Fetching, Failed},
	Fetching:  {Verifying, Failed},
	Verifying: {Replacing, Failed},
	Replacing: {Committed, Failed},
}

// CanTransition reports whether to may follow s.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
