// Package events delivers back-channel events from the runtime to the
// webview. Emission reuses the reply pump, so events and responses share one
// serialized script channel and never interleave mid-evaluation.
package events

import (
	"github.com/google/uuid"

	"github.com/silk-runtime/silk/pkg/ipc"
	"github.com/silk-runtime/silk/pkg/value"
)

// Sink receives serialized event scripts. *pump.Pump satisfies it.
type Sink interface {
	Enqueue(script string)
}

// Emitter fans events out to the webview's listen subscribers.
type Emitter struct {
	sink  Sink
	newID func() string
}

// NewEmitter wires an emitter to the reply sink.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink, newID: uuid.NewString}
}

// Emit enqueues one event. Safe from any goroutine; delivery order follows
// enqueue order like every other script.
func (e *Emitter) Emit(event string, payload value.Value) {
	e.sink.Enqueue(ipc.EventScript(e.newID(), event, payload))
}
