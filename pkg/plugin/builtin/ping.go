// Package builtin ships the baseline capability plugins the runtime registers
// unless its options supply a different plugin set.
package builtin

import (
	"github.com/silk-runtime/silk/pkg/plugin"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/value"
)

// Ping answers liveness probes from the page.
type Ping struct{}

func (Ping) Name() string { return "ping" }

func (Ping) Routes(reg plugin.Registrar) {
	reg.Register("silk:ping", func(_ *router.Context, _ value.Value) (value.Value, error) {
		return value.String("pong"), nil
	})
}
