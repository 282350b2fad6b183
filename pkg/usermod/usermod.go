// Package usermod is the Mode B registration path: an externally supplied
// module registers in-process handlers through a narrow host surface. The
// Module interface is the compile-time check; a module that does not
// conform does not build.
package usermod

import (
	"fmt"

	"github.com/silk-runtime/silk/pkg/router"
)

// Host is the only surface a user module sees.
type Host interface {
	Register(cmd string, handler router.HandlerFunc)
}

// Module is implemented by user-supplied registration entry points.
// Implementations conventionally assert conformance:
//
//	var _ usermod.Module = (*MyModule)(nil)
type Module interface {
	Register(host Host) error
}

// Nop is the default stub module; it registers nothing.
type Nop struct{}

// Register implements Module.
func (Nop) Register(Host) error { return nil }

var _ Module = Nop{}

// hostAdapter forwards Host.Register into the router. It adds no behavior
// beyond what the router already guarantees.
type hostAdapter struct {
	router *router.Router
}

func (h hostAdapter) Register(cmd string, handler router.HandlerFunc) {
	h.router.Register(cmd, handler)
}

// Apply runs each module's registration against the router. Must complete
// before the first dispatch.
func Apply(r *router.Router, modules ...Module) error {
	host := hostAdapter{router: r}
	for _, m := range modules {
		if m == nil {
			continue
		}
		if err := m.Register(host); err != nil {
			return fmt.Errorf("usermod: register %T: %w", m, err)
		}
	}
	return nil
}
