// Package api assembles the IPC core into a single Runtime value and owns
// the UI-thread entry point the native layer calls for every webview
// message. Nothing in this package keeps module-level state; the Runtime is
// threaded to callbacks explicitly.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/silk-runtime/silk/pkg/bridge"
	"github.com/silk-runtime/silk/pkg/config"
	"github.com/silk-runtime/silk/pkg/events"
	"github.com/silk-runtime/silk/pkg/ipc"
	"github.com/silk-runtime/silk/pkg/permission"
	"github.com/silk-runtime/silk/pkg/plugin"
	"github.com/silk-runtime/silk/pkg/pump"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/usermod"
	"github.com/silk-runtime/silk/pkg/value"
	"github.com/silk-runtime/silk/pkg/webview"
)

// ErrMissingHost is returned when no webview host is supplied.
var ErrMissingHost = errors.New("api: webview host is required")

// Runtime binds the router, pump, policy, and optional bridge to one
// webview host.
type Runtime struct {
	id     string
	cfg    *config.Config
	log    *slog.Logger
	host   webview.Host
	policy *permission.Policy
	router *router.Router
	pump   *pump.Pump
	bridge *bridge.Bridge
	events *events.Emitter
}

// New builds a runtime from the options. Registration (plugins, then user
// modules) completes before New returns; further routes may be added through
// Router() until the first dispatch, after which the router is read-only.
func New(opts Options) (*Runtime, error) {
	opts = opts.withDefaults()
	if opts.Host == nil {
		return nil, ErrMissingHost
	}

	policy := permission.New(opts.Config.PolicySpec())
	rt := &Runtime{
		id:     uuid.NewString(),
		cfg:    opts.Config,
		log:    opts.Logger,
		host:   opts.Host,
		policy: policy,
	}

	rt.pump = pump.New(opts.Host.ScheduleOnUI, opts.Host.PostScript,
		pump.WithLogger(opts.Logger), pump.WithCapacity(opts.PumpCapacity))

	rt.router = router.New(policy,
		router.WithLogger(opts.Logger), router.WithHooks(opts.Hooks))

	plugin.Install(rt.router, opts.Plugins...)
	if err := usermod.Apply(rt.router, opts.Modules...); err != nil {
		return nil, err
	}

	if mode := opts.Config.ModeA; mode != nil && mode.Enabled {
		b, err := bridge.New(bridge.Options{
			Argv:   mode.Argv,
			Logger: opts.Logger,
			Hooks:  opts.Hooks,
		}, rt.router, rt.pump)
		if err != nil {
			return nil, err
		}
		rt.bridge = b
	}

	rt.events = events.NewEmitter(rt.pump)
	return rt, nil
}

// InjectionScript returns the webview-side client to inject at document
// start.
func (rt *Runtime) InjectionScript() string {
	return webview.InjectionScript()
}

// HandleMessage is the UI-thread entry point for one raw webview message.
// Parse failures are logged and dropped; every parsed request produces
// exactly one enqueued response.
func (rt *Runtime) HandleMessage(ctx context.Context, raw []byte) {
	req, err := ipc.ParseInvoke(raw)
	if err != nil {
		rt.log.Warn("ipc: dropping unparseable envelope", "error", err)
		return
	}

	if rt.router.Has(req.Cmd) {
		rt.pump.Enqueue(rt.router.Dispatch(ctx, req))
		return
	}

	if rt.bridge == nil {
		rt.pump.Enqueue(rt.router.NotFoundScript(req.Callback))
		return
	}
	if !rt.policy.Allows(req.Cmd) {
		rt.pump.Enqueue(rt.router.DeniedScript(req.Callback))
		return
	}
	rt.bridge.Submit(req)
}

// Emit delivers a back-channel event to the page's listen subscribers.
func (rt *Runtime) Emit(event string, payload value.Value) {
	rt.events.Emit(event, payload)
}

// ApplyPolicy swaps the permission policy via the UI thread (dev config
// reload). Dispatching continues with the new policy once the swap task
// runs.
func (rt *Runtime) ApplyPolicy(p *permission.Policy) {
	if p == nil {
		return
	}
	rt.host.ScheduleOnUI(func() {
		rt.policy = p
		rt.router.SetPolicy(p)
		rt.log.Info("permissions: policy reloaded")
	})
}

// ID identifies this runtime instance in logs and traces.
func (rt *Runtime) ID() string { return rt.id }

// Router exposes the registry, e.g. for host shells that register extra
// routes before first dispatch.
func (rt *Runtime) Router() *router.Router { return rt.router }

// Close shuts down the bridge worker if one exists.
func (rt *Runtime) Close() {
	if rt.bridge != nil {
		rt.bridge.Close()
	}
}
