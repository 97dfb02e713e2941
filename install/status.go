package install

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Status is a progress step reported for an item.
type Status string

const (
	StatusResolving  Status = "resolving"
	StatusSkipped    Status = "skipped"
	StatusFetching   Status = "fetching"
	StatusVerifying  Status = "verifying"
	StatusRemoving   Status = "removing"
	StatusSaving     Status = "saving"
	StatusCommitting Status = "committing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Kind tells the core apart from plugins.
type Kind string

const (
	KindCore   Kind = "core"
	KindPlugin Kind = "plugin"
)

// Event is one status change of one item.
type Event struct {
	Item   string
	Kind   Kind
	Status Status
	Detail string
	Err    error
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type discard struct{}

func (discard) Emit(Event) {}

// Messages maps each status to a format string. The format receives the
// item name and then the event detail.
type Messages map[Status]string

// DefaultMessages are the built-in status texts.
var DefaultMessages = Messages{
	StatusResolving:  "%s: resolving %s",
	StatusSkipped:    "%s: skipped (%s)",
	StatusFetching:   "%s: fetching %s",
	StatusVerifying:  "%s: verifying %s",
	StatusRemoving:   "%s: removing %s",
	StatusSaving:     "%s: saving %s",
	StatusCommitting: "%s: committing build %s",
	StatusDone:       "%s: done (%s)",
	StatusFailed:     "%s: failed: %s",
}

// Format renders e. Statuses missing from m fall back to DefaultMessages.
func (m Messages) Format(e Event) string {
	format, ok := m[e.Status]
	if !ok {
		format, ok = DefaultMessages[e.Status]
	}
	if !ok {
		return e.Item + ": " + string(e.Status)
	}
	detail := e.Detail
	if e.Status == StatusFailed && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf(format, e.Item, detail)
}

// LogSink writes events through a zerolog logger.
type LogSink struct {
	Logger   zerolog.Logger
	Messages Messages
}

// NewLogSink creates a LogSink with the default messages.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{Logger: logger, Messages: DefaultMessages}
}

func (s *LogSink) Emit(e Event) {
	ev := s.Logger.Info()
	switch e.Status {
	case StatusFailed:
		ev = s.Logger.Error().Err(e.Err)
	case StatusResolving, StatusVerifying, StatusSaving, StatusCommitting:
		ev = s.Logger.Debug()
	}
	ev.Str("item", e.Item).
		Str("kind", string(e.Kind)).
		Str("status", string(e.Status)).
		Msg(s.Messages.Format(e))
}

// Recorder keeps every event in order. It is useful in tests and for
// callers that render progress after the fact.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Statuses returns the statuses recorded for item, in order.
func (r *Recorder) Statuses(item string) []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Status
	for _, e := range r.events {
		if e.Item == item {
			out = append(out, e.Status)
		}
	}
	return out
}
