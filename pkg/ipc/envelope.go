// Package ipc implements the envelope codec between the webview and the
// runtime: it decodes incoming invoke envelopes and serializes response
// envelopes into dispatch scripts. It performs no I/O.
package ipc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/silk-runtime/silk/pkg/value"
)

// ParseErrorKind distinguishes the ways an incoming envelope can be rejected.
type ParseErrorKind int

const (
	InvalidEnvelope ParseErrorKind = iota
	MissingKind
	InvalidKind
	UnsupportedKind
	MissingCallback
	InvalidCallback
	MissingCommand
	InvalidCommand
)

func (k ParseErrorKind) String() string {
	switch k {
	case InvalidEnvelope:
		return "invalid envelope"
	case MissingKind:
		return "missing kind"
	case InvalidKind:
		return "invalid kind"
	case UnsupportedKind:
		return "unsupported kind"
	case MissingCallback:
		return "missing callback"
	case InvalidCallback:
		return "invalid callback"
	case MissingCommand:
		return "missing command"
	case InvalidCommand:
		return "invalid command"
	default:
		return "parse error " + strconv.Itoa(int(k))
	}
}

// ParseError reports why an envelope was rejected. Envelopes that fail to
// parse carry no trustworthy callback, so callers log and drop them.
type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return "ipc: " + e.Kind.String()
	}
	return "ipc: " + e.Kind.String() + ": " + e.Detail
}

// MaxCallback bounds callback identifiers to the 63-bit non-negative range.
const MaxCallback = int64(math.MaxInt64)

// Invoke is one parsed call from the webview.
type Invoke struct {
	Callback int64
	Cmd      string
	Args     value.Value
}

// Clone deep-copies the request for hand-off to another goroutine.
func (r *Invoke) Clone() *Invoke {
	return &Invoke{Callback: r.Callback, Cmd: r.Cmd, Args: r.Args.Clone()}
}

// EncodeJSON serializes the invoke back into its wire form. The external
// handler bridge writes this, one line per request, to the child process.
func (r *Invoke) EncodeJSON() string {
	envelope := value.Object(
		value.Member{Key: "kind", Value: value.String("invoke")},
		value.Member{Key: "callback", Value: value.Int(r.Callback)},
		value.Member{Key: "cmd", Value: value.String(r.Cmd)},
		value.Member{Key: "args", Value: r.Args},
	)
	return envelope.EncodeJSON()
}

// ParseInvoke decodes a webview message into an Invoke. Missing args are
// materialized as null. A float callback with zero fractional part is
// accepted and coerced; anything else out of the 63-bit non-negative range
// is rejected.
func ParseInvoke(data []byte) (*Invoke, error) {
	doc, err := value.Decode(data)
	if err != nil {
		return nil, &ParseError{Kind: InvalidEnvelope, Detail: err.Error()}
	}
	if doc.Kind() != value.KindObject {
		return nil, &ParseError{Kind: InvalidEnvelope, Detail: "not a JSON object"}
	}

	kindVal, ok := doc.Get("kind")
	if !ok {
		return nil, &ParseError{Kind: MissingKind}
	}
	kind, ok := kindVal.AsString()
	if !ok {
		return nil, &ParseError{Kind: InvalidKind, Detail: kindVal.Kind().String()}
	}
	if kind != "invoke" {
		return nil, &ParseError{Kind: UnsupportedKind, Detail: kind}
	}

	callbackVal, ok := doc.Get("callback")
	if !ok {
		return nil, &ParseError{Kind: MissingCallback}
	}
	callback, err := coerceCallback(callbackVal)
	if err != nil {
		return nil, err
	}

	cmdVal, ok := doc.Get("cmd")
	if !ok {
		return nil, &ParseError{Kind: MissingCommand}
	}
	cmd, ok := cmdVal.AsString()
	if !ok {
		return nil, &ParseError{Kind: InvalidCommand, Detail: cmdVal.Kind().String()}
	}
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	args, ok := doc.Get("args")
	if !ok {
		args = value.Null()
	}

	return &Invoke{Callback: callback, Cmd: cmd, Args: args}, nil
}

func coerceCallback(v value.Value) (int64, error) {
	if i, ok := v.AsInt(); ok {
		if i < 0 || i > MaxCallback {
			return 0, &ParseError{Kind: InvalidCallback, Detail: strconv.FormatInt(i, 10)}
		}
		return i, nil
	}
	if f, ok := v.AsFloat(); ok {
		// Floats are only trusted up to the contiguous integer range of a
		// JS number.
		const maxExact = float64(int64(1) << 53)
		if math.Trunc(f) != f || f < 0 || f > maxExact {
			return 0, &ParseError{Kind: InvalidCallback, Detail: strconv.FormatFloat(f, 'g', -1, 64)}
		}
		return int64(f), nil
	}
	return 0, &ParseError{Kind: InvalidCallback, Detail: v.Kind().String()}
}

func validateCommand(cmd string) error {
	if cmd == "" {
		return &ParseError{Kind: InvalidCommand, Detail: "empty"}
	}
	if !utf8.ValidString(cmd) {
		return &ParseError{Kind: InvalidCommand, Detail: "not valid UTF-8"}
	}
	for _, r := range cmd {
		if !unicode.IsPrint(r) {
			return &ParseError{Kind: InvalidCommand, Detail: fmt.Sprintf("unprintable rune %q", r)}
		}
	}
	return nil
}

// The literal dispatch wrapper is part of the external interface; the
// webview-side client installs window.__silk.__dispatch.
const (
	scriptPrefix = "window.__silk && window.__silk.__dispatch("
	scriptSuffix = ");"
)

// SuccessScript serializes a success response envelope wrapped in the
// dispatch script.
func SuccessScript(callback int64, result value.Value) string {
	envelope := value.Object(
		value.Member{Key: "kind", Value: value.String("response")},
		value.Member{Key: "callback", Value: value.Int(callback)},
		value.Member{Key: "ok", Value: value.Bool(true)},
		value.Member{Key: "result", Value: result},
	)
	return scriptPrefix + envelope.EncodeJSON() + scriptSuffix
}

// ErrorScript serializes an error response envelope wrapped in the dispatch
// script. Errors carry a {code,message} object; the webview client accepts
// both the object form and a bare string.
func ErrorScript(callback int64, code, message string) string {
	envelope := value.Object(
		value.Member{Key: "kind", Value: value.String("response")},
		value.Member{Key: "callback", Value: value.Int(callback)},
		value.Member{Key: "ok", Value: value.Bool(false)},
		value.Member{Key: "error", Value: value.Object(
			value.Member{Key: "code", Value: value.String(code)},
			value.Member{Key: "message", Value: value.String(message)},
		)},
	)
	return scriptPrefix + envelope.EncodeJSON() + scriptSuffix
}

// EventScript serializes a back-channel event envelope wrapped in the
// dispatch script. Event delivery reuses the reply pump.
func EventScript(id, event string, payload value.Value) string {
	members := []value.Member{
		{Key: "kind", Value: value.String("event")},
		{Key: "event", Value: value.String(event)},
		{Key: "payload", Value: payload},
	}
	if id != "" {
		members = append(members, value.Member{Key: "id", Value: value.String(id)})
	}
	return scriptPrefix + value.Object(members...).EncodeJSON() + scriptSuffix
}

// ParseDispatchScript strips the dispatch wrapper and decodes the inner
// envelope. Used by tests and by host harnesses that replay scripts.
func ParseDispatchScript(script string) (value.Value, error) {
	body, ok := strings.CutPrefix(script, scriptPrefix)
	if !ok {
		return value.Value{}, fmt.Errorf("ipc: script missing dispatch prefix")
	}
	body, ok = strings.CutSuffix(body, scriptSuffix)
	if !ok {
		return value.Value{}, fmt.Errorf("ipc: script missing dispatch suffix")
	}
	return value.Decode([]byte(body))
}
