package api

import (
	"log/slog"

	"github.com/silk-runtime/silk/pkg/config"
	"github.com/silk-runtime/silk/pkg/plugin"
	"github.com/silk-runtime/silk/pkg/plugin/builtin"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/usermod"
	"github.com/silk-runtime/silk/pkg/webview"
)

// Options configures a Runtime. Host is required; everything else has a
// working default.
type Options struct {
	Config *config.Config
	Host   webview.Host

	// Plugins defaults to the builtin set. Supplying a non-nil slice
	// replaces it entirely.
	Plugins []plugin.Plugin

	// Modules are Mode B registrations, applied after plugins.
	Modules []usermod.Module

	// Hooks observe every dispatch.
	Hooks router.Hooks

	Logger       *slog.Logger
	PumpCapacity int
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Plugins == nil {
		o.Plugins = builtin.Defaults(o.Config.App.Name, o.Config.App.Version)
	}
	return o
}
