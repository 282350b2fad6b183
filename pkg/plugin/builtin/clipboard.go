package builtin

import (
	"errors"
	"sync"

	"github.com/silk-runtime/silk/pkg/plugin"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/value"
)

// Clipboard is an in-process clipboard store. Hosts with a native clipboard
// replace it by registering their own plugin over the same commands.
type Clipboard struct {
	mu      sync.Mutex
	content string
}

func (c *Clipboard) Name() string { return "clipboard" }

func (c *Clipboard) Routes(reg plugin.Registrar) {
	reg.RegisterGuarded("silk:clipboard/readText", "clipboard", c.readText)
	reg.RegisterGuarded("silk:clipboard/writeText", "clipboard", c.writeText)
}

func (c *Clipboard) readText(_ *router.Context, _ value.Value) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return value.String(c.content), nil
}

func (c *Clipboard) writeText(_ *router.Context, args value.Value) (value.Value, error) {
	textVal, ok := args.Get("text")
	if !ok {
		return value.Null(), errors.New("MissingText: text argument is required")
	}
	text, ok := textVal.AsString()
	if !ok {
		return value.Null(), errors.New("MissingText: text argument must be a string")
	}
	c.mu.Lock()
	c.content = text
	c.mu.Unlock()
	return value.Null(), nil
}
