// Package bridge forwards commands with no in-process route to a long-lived
// child process speaking newline-delimited JSON on its standard streams
// (Mode A). One worker goroutine owns the child; requests are strictly FIFO.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/silk-runtime/silk/pkg/ipc"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/value"
)

// ErrNoCommand is returned when the bridge is configured without an argv.
var ErrNoCommand = errors.New("bridge: argv is empty")

const (
	defaultQueueSize    = 64
	defaultMaxLineBytes = 4 << 20 // response line cap, comfortably above the 2 MiB floor
)

// Responder builds response scripts. *router.Router satisfies it.
type Responder interface {
	BuildSuccessScript(callback int64, result value.Value) string
	BuildErrorScript(callback int64, code, message string) string
}

// Sink receives finished response scripts. *pump.Pump satisfies it.
type Sink interface {
	Enqueue(script string)
}

// Options configures the external handler bridge.
type Options struct {
	Argv         []string // child command vector; Argv[0] is the program
	Env          []string // extra environment entries appended to os.Environ
	Dir          string   // child working directory
	QueueSize    int
	MaxLineBytes int
	Logger       *slog.Logger
	Tracer       trace.Tracer

	// Hooks observe remote dispatches the same way the router observes
	// local ones. Before fires on Submit, After when the outcome is known.
	Hooks router.Hooks
}

// Bridge owns the worker and the child process. The UI thread produces
// requests; the worker consumes them one at a time.
type Bridge struct {
	opts      Options
	responder Responder
	sink      Sink
	log       *slog.Logger
	tracer    trace.Tracer

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*ipc.Invoke
	closed bool
	broken bool

	child *childProcess
	done  chan struct{}
}

type childProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *bufio.Scanner
	stderr strings.Builder
}

// New validates the options and starts the worker. The child process itself
// is started lazily on first use.
func New(opts Options, responder Responder, sink Sink) (*Bridge, error) {
	if len(opts.Argv) == 0 {
		return nil, ErrNoCommand
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = defaultMaxLineBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("silk/bridge")
	}

	b := &Bridge{
		opts:      opts,
		responder: responder,
		sink:      sink,
		log:       opts.Logger,
		tracer:    opts.Tracer,
		done:      make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.worker()
	return b, nil
}

// Enabled reports whether the bridge can still accept work. A bridge that
// detected a broken child stays disabled for the process lifetime.
func (b *Bridge) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.broken && !b.closed
}

// Submit deep-copies the request and hands it to the worker. Called on the
// UI thread; never blocks. When the bridge is unavailable or the queue is
// full, the error response is enqueued immediately.
func (b *Bridge) Submit(req *ipc.Invoke) {
	copied := req.Clone()
	if b.opts.Hooks.Before != nil {
		b.opts.Hooks.Before(copied.Cmd)
	}

	b.mu.Lock()
	switch {
	case b.broken, b.closed:
		b.mu.Unlock()
		b.finish(copied.Cmd, false, b.responder.BuildErrorScript(copied.Callback,
			router.CodeBridgeUnavailable, "External handler unavailable"))
		return
	case len(b.queue) >= b.opts.QueueSize:
		b.mu.Unlock()
		b.log.Error("bridge: worker queue full, rejecting request", "cmd", copied.Cmd)
		b.finish(copied.Cmd, false, b.responder.BuildErrorScript(copied.Callback,
			router.CodeBridgeUnavailable, "External handler queue full"))
		return
	}
	b.queue = append(b.queue, copied)
	b.mu.Unlock()
	b.cond.Signal()
}

// finish fires the after-hook and enqueues the response, mirroring the
// router's order for local dispatches.
func (b *Bridge) finish(cmd string, success bool, script string) {
	if b.opts.Hooks.After != nil {
		b.opts.Hooks.After(cmd, success)
	}
	b.sink.Enqueue(script)
}

// Close signals the worker, kills the child, and joins. The child's reply to
// a request in flight is abandoned: killing the child closes its output, so
// that request is answered with a BRIDGE_UNAVAILABLE error response. Requests
// still waiting in the queue get no response.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.killChildLocked()
	b.mu.Unlock()
	b.cond.Broadcast()
	<-b.done
}

func (b *Bridge) worker() {
	defer close(b.done)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.closed {
			b.mu.Unlock()
			return
		}
		req := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.process(req)
	}
}

func (b *Bridge) process(req *ipc.Invoke) {
	_, span := b.tracer.Start(context.Background(), "silk.bridge.invoke",
		trace.WithAttributes(attribute.String("silk.cmd", req.Cmd)))
	script, success := b.roundTrip(req)
	span.SetAttributes(attribute.Bool("silk.ok", success))
	span.End()
	b.finish(req.Cmd, success, script)
}

// roundTrip writes one request line and reads one response line. Transport
// failures disable the bridge; a malformed response line is a per-request
// protocol error and the child keeps running.
func (b *Bridge) roundTrip(req *ipc.Invoke) (script string, success bool) {
	child, err := b.ensureChild()
	if err != nil {
		b.markBroken()
		b.log.Error("bridge: failed to start external handler", "error", err)
		return b.responder.BuildErrorScript(req.Callback, router.CodeBridgeUnavailable,
			"External handler failed to start: " + err.Error()), false
	}

	if _, err := io.WriteString(child.stdin, req.EncodeJSON()+"\n"); err != nil {
		b.markBroken()
		b.log.Error("bridge: external handler stdin closed", "error", err, "stderr", child.stderr.String())
		return b.responder.BuildErrorScript(req.Callback, router.CodeBridgeUnavailable,
			"External handler closed its input"), false
	}

	if !child.out.Scan() {
		b.markBroken()
		detail := "External handler closed its output"
		if err := child.out.Err(); err != nil {
			detail = "External handler read failed: " + err.Error()
		}
		b.log.Error("bridge: external handler stdout unavailable", "detail", detail, "stderr", child.stderr.String())
		return b.responder.BuildErrorScript(req.Callback, router.CodeBridgeUnavailable, detail), false
	}

	return b.decodeReply(req.Callback, child.out.Bytes())
}

func (b *Bridge) decodeReply(callback int64, line []byte) (script string, success bool) {
	reply, err := value.Decode(line)
	if err != nil {
		return b.responder.BuildErrorScript(callback, router.CodeBridgeProtocol,
			"External handler produced a malformed line: " + err.Error()), false
	}
	okVal, found := reply.Get("ok")
	ok, isBool := okVal.AsBool()
	if !found || !isBool {
		return b.responder.BuildErrorScript(callback, router.CodeBridgeProtocol,
			"External handler reply is missing a boolean ok field"), false
	}
	if ok {
		result, _ := reply.Get("result")
		return b.responder.BuildSuccessScript(callback, result), true
	}
	return b.responder.BuildErrorScript(callback, router.CodeInternalError, replyErrorMessage(reply)), false
}

func replyErrorMessage(reply value.Value) string {
	errVal, ok := reply.Get("error")
	if !ok {
		return "External handler reported failure"
	}
	if msg, ok := errVal.AsString(); ok {
		return msg
	}
	// Tolerate a structured {code,message} error object.
	if msgVal, ok := errVal.Get("message"); ok {
		if msg, ok := msgVal.AsString(); ok {
			return msg
		}
	}
	return errVal.EncodeJSON()
}

func (b *Bridge) ensureChild() (*childProcess, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.child != nil {
		return b.child, nil
	}

	argv := b.opts.Argv
	cmd := exec.Command(argv[0], argv[1:]...)
	if b.opts.Dir != "" {
		cmd.Dir = b.opts.Dir
	}
	if len(b.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), b.opts.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	child := &childProcess{cmd: cmd, stdin: stdin}
	cmd.Stderr = &child.stderr

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), b.opts.MaxLineBytes)
	child.out = scanner

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	b.log.Info("bridge: external handler started", "program", argv[0], "pid", cmd.Process.Pid)
	b.child = child
	return child, nil
}

func (b *Bridge) markBroken() {
	b.mu.Lock()
	b.broken = true
	b.killChildLocked()
	b.mu.Unlock()
}

func (b *Bridge) killChildLocked() {
	if b.child == nil {
		return
	}
	if b.child.stdin != nil {
		_ = b.child.stdin.Close()
	}
	if cmd := b.child.cmd; cmd.Process != nil {
		_ = cmd.Process.Kill()
		go func() { _ = cmd.Wait() }() // reap; exit status is not interesting here
	}
	b.child = nil
}
