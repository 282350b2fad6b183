package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silk-runtime/silk/pkg/ipc"
	"github.com/silk-runtime/silk/pkg/value"
)

type scriptSink struct {
	scripts []string
}

func (s *scriptSink) Enqueue(script string) { s.scripts = append(s.scripts, script) }

func TestEmitBuildsEventEnvelope(t *testing.T) {
	sink := &scriptSink{}
	e := NewEmitter(sink)
	e.newID = func() string { return "fixed-id" }

	e.Emit("window:focus", value.Object(value.Member{Key: "focused", Value: value.Bool(true)}))

	require.Len(t, sink.scripts, 1)
	env, err := ipc.ParseDispatchScript(sink.scripts[0])
	require.NoError(t, err)

	kind, _ := env.Get("kind")
	s, _ := kind.AsString()
	require.Equal(t, "event", s)

	name, _ := env.Get("event")
	s, _ = name.AsString()
	require.Equal(t, "window:focus", s)

	id, _ := env.Get("id")
	s, _ = id.AsString()
	require.Equal(t, "fixed-id", s)

	payload, ok := env.Get("payload")
	require.True(t, ok)
	focused, _ := payload.Get("focused")
	b, _ := focused.AsBool()
	require.True(t, b)
}

func TestEmitAssignsUniqueIDs(t *testing.T) {
	sink := &scriptSink{}
	e := NewEmitter(sink)
	e.Emit("a", value.Null())
	e.Emit("a", value.Null())
	require.NotEqual(t, sink.scripts[0], sink.scripts[1])
}
