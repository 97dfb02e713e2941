package install

import "fmt"

// tracked is an item moving through the state machine. Each item is owned
// by exactly one goroutine at a time.
type tracked struct {
	result ItemResult
	sink   Sink
}

func (i *Installer) track(name string, kind Kind) *tracked {
	return &tracked{
		result: ItemResult{Name: name, Kind: kind, State: Planned},
		sink:   i.sink,
	}
}

func (t *tracked) emit(status Status, detail string) {
	t.sink.Emit(Event{Item: t.result.Name, Kind: t.result.Kind, Status: status, Detail: detail})
}

// enter moves to a new state without reporting it.
func (t *tracked) enter(to State) {
	if !t.result.State.CanTransition(to) {
		panic(fmt.Sprintf("install: %s cannot move from %s to %s", t.result.Name, t.result.State, to))
	}
	t.result.State = to
}

func (t *tracked) advance(to State, status Status, detail string) {
	t.enter(to)
	t.emit(status, detail)
}

func (t *tracked) skip() ItemResult {
	t.advance(Skipped, StatusSkipped, string(t.result.Reason))
	return t.result
}

func (t *tracked) commit() ItemResult {
	t.advance(Committed, StatusDone, string(t.result.Reason))
	return t.result
}

func (t *tracked) fail(err error) ItemResult {
	if t.result.State.Terminal() {
		panic(fmt.Sprintf("install: %s failed after reaching %s", t.result.Name, t.result.State))
	}
	t.result.State = Failed
	t.result.Err = err
	t.sink.Emit(Event{Item: t.result.Name, Kind: t.result.Kind, Status: StatusFailed, Err: err})
	return t.result
}
