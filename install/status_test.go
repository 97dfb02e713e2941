package install

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestMessagesFormat(t *testing.T) {
	e := Event{Item: "foo", Status: StatusFetching, Detail: "https://cdn.modrinth.com/foo.jar"}
	assert.Equal(t, "foo: fetching https://cdn.modrinth.com/foo.jar", DefaultMessages.Format(e))

	failed := Event{Item: "foo", Status: StatusFailed, Err: errors.New("boom")}
	assert.Equal(t, "foo: failed: boom", DefaultMessages.Format(failed))

	custom := Messages{StatusSkipped: "%s ist aktuell (%s)"}
	assert.Equal(t, "foo ist aktuell (up-to-date)", custom.Format(Event{Item: "foo", Status: StatusSkipped, Detail: "up-to-date"}))
	assert.Equal(t, "foo: done (install)", custom.Format(Event{Item: "foo", Status: StatusDone, Detail: "install"}))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	sink.Emit(Event{Item: "foo", Kind: KindPlugin, Status: StatusDone, Detail: "install"})
	sink.Emit(Event{Item: "bar", Kind: KindPlugin, Status: StatusFailed, Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, `"item":"foo"`)
	assert.Contains(t, out, `"status":"done"`)
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, Planned.CanTransition(Fetching))
	assert.True(t, Planned.CanTransition(Skipped))
	assert.True(t, Replacing.CanTransition(Committed))
	assert.False(t, Planned.CanTransition(Committed))
	assert.False(t, Fetching.CanTransition(Replacing))
	assert.False(t, Skipped.CanTransition(Fetching))
	assert.True(t, Committed.Terminal())
	assert.Equal(t, "replacing", Replacing.String())
}
