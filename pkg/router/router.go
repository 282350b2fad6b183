// Package router owns the command registry and the dispatch state machine:
// permission check, handler invocation, and translation of every outcome
// into a response script. Handler failures never escape the dispatch path.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/silk-runtime/silk/pkg/ipc"
	"github.com/silk-runtime/silk/pkg/permission"
	"github.com/silk-runtime/silk/pkg/value"
)

// Error codes carried in response envelopes.
const (
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeMethodNotFound    = "METHOD_NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeBridgeUnavailable = "BRIDGE_UNAVAILABLE"
	CodeBridgeProtocol    = "BRIDGE_PROTOCOL"
)

// Canonical response messages.
const (
	msgPermissionDenied = "Command denied by permissions"
	msgMethodNotFound   = "Command not found"
)

// Context carries per-request data into a handler.
type Context struct {
	Ctx      context.Context
	Cmd      string
	Callback int64
	Policy   *permission.Policy
}

// HandlerFunc services one invoke. Returning an error produces an error
// response; the router never lets a failure unwind further.
type HandlerFunc func(ctx *Context, args value.Value) (value.Value, error)

// CodedError lets a handler pick the response code. Plain errors map to
// INTERNAL_ERROR.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string { return e.Message }

// Hooks observe every dispatch, local or remote. They must not block.
type Hooks struct {
	Before func(cmd string)
	After  func(cmd string, success bool)
}

type route struct {
	handler HandlerFunc
	permKey string
}

// Router maps command identifiers to handlers. Registration happens at
// startup; once dispatching begins the map is read-only.
type Router struct {
	routes map[string]route
	policy *permission.Policy
	hooks  Hooks
	log    *slog.Logger
	tracer trace.Tracer
}

// Option configures a Router.
type Option func(*Router)

// WithHooks installs dispatch observers.
func WithHooks(h Hooks) Option {
	return func(r *Router) { r.hooks = h }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithTracer overrides the default tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New creates a router bound to a permission policy.
func New(policy *permission.Policy, opts ...Option) *Router {
	if policy == nil {
		policy = permission.Default()
	}
	r := &Router{
		routes: make(map[string]route),
		policy: policy,
		log:    slog.Default(),
		tracer: otel.Tracer("silk/router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts an unguarded route. Last-wins on duplicate commands.
func (r *Router) Register(cmd string, h HandlerFunc) {
	r.routes[cmd] = route{handler: h}
}

// RegisterGuarded inserts a route gated by a permission key.
func (r *Router) RegisterGuarded(cmd, permissionKey string, h HandlerFunc) {
	r.routes[cmd] = route{handler: h, permKey: permissionKey}
}

// Has reports whether a command is registered in-process. The UI-thread
// entry uses this to decide local versus remote dispatch.
func (r *Router) Has(cmd string) bool {
	_, ok := r.routes[cmd]
	return ok
}

// Policy exposes the active permission policy.
func (r *Router) Policy() *permission.Policy { return r.policy }

// SetPolicy swaps the policy. Only the UI thread may call this, via the
// host's scheduler, and only between dispatches (dev config reload).
func (r *Router) SetPolicy(p *permission.Policy) {
	if p != nil {
		r.policy = p
	}
}

// Dispatch runs one request to completion and returns the response script.
// The contract: permission denial, unknown command, and handler failure all
// become error responses; success serializes the handler's value.
func (r *Router) Dispatch(ctx context.Context, req *ipc.Invoke) string {
	if ctx == nil {
		ctx = context.Background()
	}
	spanCtx, span := r.tracer.Start(ctx, "silk.dispatch",
		trace.WithAttributes(attribute.String("silk.cmd", req.Cmd)))
	defer span.End()

	if r.hooks.Before != nil {
		r.hooks.Before(req.Cmd)
	}

	script, success := r.dispatch(spanCtx, req)
	span.SetAttributes(attribute.Bool("silk.ok", success))

	if r.hooks.After != nil {
		r.hooks.After(req.Cmd, success)
	}
	return script
}

func (r *Router) dispatch(ctx context.Context, req *ipc.Invoke) (script string, success bool) {
	rt, ok := r.routes[req.Cmd]
	if !ok {
		return r.BuildErrorScript(req.Callback, CodeMethodNotFound, msgMethodNotFound), false
	}
	if rt.permKey != "" && !r.policy.AllowsCommand(rt.permKey, req.Cmd) {
		return r.BuildErrorScript(req.Callback, CodePermissionDenied, msgPermissionDenied), false
	}

	result, err := r.invoke(ctx, rt.handler, req)
	if err != nil {
		code := CodeInternalError
		if coded, ok := err.(*CodedError); ok && coded.Code != "" {
			code = coded.Code
		}
		r.log.Debug("router: handler failed", "cmd", req.Cmd, "error", err)
		return r.BuildErrorScript(req.Callback, code, err.Error()), false
	}
	return r.BuildSuccessScript(req.Callback, result), true
}

// invoke shields the dispatch thread from handler panics.
func (r *Router) invoke(ctx context.Context, h HandlerFunc, req *ipc.Invoke) (result value.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	hctx := &Context{
		Ctx:      ctx,
		Cmd:      req.Cmd,
		Callback: req.Callback,
		Policy:   r.policy,
	}
	return h(hctx, req.Args)
}

// BuildSuccessScript constructs a success response without going through
// Dispatch. The external handler bridge uses it when the child replies.
func (r *Router) BuildSuccessScript(callback int64, result value.Value) string {
	return ipc.SuccessScript(callback, result)
}

// BuildErrorScript is the error counterpart of BuildSuccessScript.
func (r *Router) BuildErrorScript(callback int64, code, message string) string {
	return ipc.ErrorScript(callback, code, message)
}

// NotFoundScript builds the canonical unknown-command response.
func (r *Router) NotFoundScript(callback int64) string {
	return r.BuildErrorScript(callback, CodeMethodNotFound, msgMethodNotFound)
}

// DeniedScript builds the canonical permission-denied response.
func (r *Router) DeniedScript(callback int64) string {
	return r.BuildErrorScript(callback, CodePermissionDenied, msgPermissionDenied)
}
