package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/silk-runtime/silk/pkg/ipc"
	"github.com/silk-runtime/silk/pkg/permission"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/value"
)

// collector is a Sink that lets tests wait for enqueued scripts.
type collector struct {
	mu      sync.Mutex
	scripts []string
	arrived chan struct{}
}

func newCollector() *collector {
	return &collector{arrived: make(chan struct{}, 128)}
}

func (c *collector) Enqueue(script string) {
	c.mu.Lock()
	c.scripts = append(c.scripts, script)
	c.mu.Unlock()
	c.arrived <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-c.arrived:
		case <-deadline:
			t.Fatalf("timed out waiting for %d scripts, have %d", n, len(c.all()))
		}
	}
	return c.all()
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.scripts...)
}

func newBridge(t *testing.T, shellScript string) (*Bridge, *collector) {
	t.Helper()
	sink := newCollector()
	rt := router.New(permission.Default())
	b, err := New(Options{Argv: []string{"/bin/sh", "-c", shellScript}}, rt, sink)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, sink
}

func TestNewRequiresArgv(t *testing.T) {
	rt := router.New(permission.Default())
	_, err := New(Options{}, rt, newCollector())
	require.ErrorIs(t, err, ErrNoCommand)
}

func TestForwardSuccess(t *testing.T) {
	spool := filepath.Join(t.TempDir(), "requests")
	script := `while read line; do echo "$line" >> ` + spool + `; echo '{"ok":true,"result":{"x":1}}'; done`
	b, sink := newBridge(t, script)

	req := &ipc.Invoke{Callback: 9, Cmd: "ts:echo", Args: value.Object(
		value.Member{Key: "x", Value: value.Int(1)},
	)}
	b.Submit(req)
	scripts := sink.wait(t, 1)

	require.Contains(t, scripts[0], `"callback":9`)
	require.Contains(t, scripts[0], `"ok":true`)
	require.Contains(t, scripts[0], `"result":{"x":1}`)

	// The child received exactly one line holding the envelope.
	data, err := os.ReadFile(spool)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	require.Equal(t, req.EncodeJSON(), lines[0])
}

func TestForwardChildError(t *testing.T) {
	b, sink := newBridge(t, `while read line; do echo '{"ok":false,"error":"handler exploded"}'; done`)

	b.Submit(&ipc.Invoke{Callback: 3, Cmd: "ts:boom", Args: value.Null()})
	scripts := sink.wait(t, 1)

	require.Contains(t, scripts[0], `"ok":false`)
	require.Contains(t, scripts[0], "handler exploded")
}

func TestForwardChildStructuredError(t *testing.T) {
	b, sink := newBridge(t, `while read line; do echo '{"ok":false,"error":{"code":"E_NOPE","message":"structured"}}'; done`)

	b.Submit(&ipc.Invoke{Callback: 4, Cmd: "ts:boom", Args: value.Null()})
	scripts := sink.wait(t, 1)

	require.Contains(t, scripts[0], "structured")
}

func TestMalformedLineIsProtocolErrorAndChildSurvives(t *testing.T) {
	script := `first=1; while read line; do
  if [ "$first" = 1 ]; then echo 'not json'; first=0; else echo '{"ok":true,"result":null}'; fi
done`
	b, sink := newBridge(t, script)

	b.Submit(&ipc.Invoke{Callback: 1, Cmd: "a", Args: value.Null()})
	scripts := sink.wait(t, 1)
	require.Contains(t, scripts[0], router.CodeBridgeProtocol)
	require.True(t, b.Enabled(), "protocol fault must not disable the bridge")

	b.Submit(&ipc.Invoke{Callback: 2, Cmd: "b", Args: value.Null()})
	scripts = sink.wait(t, 1)
	require.Contains(t, scripts[1], `"callback":2`)
	require.Contains(t, scripts[1], `"ok":true`)
}

func TestBrokenChildDisablesBridge(t *testing.T) {
	b, sink := newBridge(t, `exit 0`)

	b.Submit(&ipc.Invoke{Callback: 1, Cmd: "a", Args: value.Null()})
	scripts := sink.wait(t, 1)
	require.Contains(t, scripts[0], router.CodeBridgeUnavailable)

	require.Eventually(t, func() bool { return !b.Enabled() }, 2*time.Second, 10*time.Millisecond)

	// Subsequent submissions fail fast without a child.
	b.Submit(&ipc.Invoke{Callback: 2, Cmd: "b", Args: value.Null()})
	scripts = sink.wait(t, 1)
	require.Contains(t, scripts[1], router.CodeBridgeUnavailable)
	require.Contains(t, scripts[1], `"callback":2`)
}

func TestRequestsAreFIFO(t *testing.T) {
	b, sink := newBridge(t, `while read line; do echo '{"ok":true,"result":"r"}'; done`)

	for i := int64(1); i <= 5; i++ {
		b.Submit(&ipc.Invoke{Callback: i, Cmd: "seq", Args: value.Null()})
	}
	scripts := sink.wait(t, 5)

	for i, script := range scripts {
		env, err := ipc.ParseDispatchScript(script)
		require.NoError(t, err)
		cb, ok := env.Get("callback")
		require.True(t, ok)
		got, _ := cb.AsInt()
		require.Equal(t, int64(i+1), got)
	}
}

func TestSubmitDeepCopiesRequest(t *testing.T) {
	spool := filepath.Join(t.TempDir(), "requests")
	b, sink := newBridge(t, `while read line; do echo "$line" >> `+spool+`; echo '{"ok":true,"result":null}'; done`)

	args := value.Array(value.Int(1))
	req := &ipc.Invoke{Callback: 1, Cmd: "a", Args: args}
	b.Submit(req)
	// Mutating the caller's args after Submit must not affect the line the
	// worker writes; Clone severed the sharing.
	items, _ := args.AsArray()
	items[0] = value.Int(99)
	sink.wait(t, 1)

	data, err := os.ReadFile(spool)
	require.NoError(t, err)
	require.Equal(t, `{"kind":"invoke","callback":1,"cmd":"a","args":[1]}`, strings.TrimSpace(string(data)))
}

func TestHooksObserveRemoteDispatch(t *testing.T) {
	sink := newCollector()
	rt := router.New(permission.Default())

	var mu sync.Mutex
	var seen []string
	hooks := router.Hooks{
		Before: func(cmd string) {
			mu.Lock()
			seen = append(seen, "before:"+cmd)
			mu.Unlock()
		},
		After: func(cmd string, ok bool) {
			mu.Lock()
			seen = append(seen, fmt.Sprintf("after:%s:%t", cmd, ok))
			mu.Unlock()
		},
	}
	b, err := New(Options{
		Argv:  []string{"/bin/sh", "-c", `while read line; do echo '{"ok":true,"result":null}'; done`},
		Hooks: hooks,
	}, rt, sink)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	b.Submit(&ipc.Invoke{Callback: 1, Cmd: "ts:echo", Args: value.Null()})
	sink.wait(t, 1)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"before:ts:echo", "after:ts:echo:true"}, seen)
}

func TestCloseJoinsWorker(t *testing.T) {
	sink := newCollector()
	rt := router.New(permission.Default())
	b, err := New(Options{Argv: []string{"/bin/sh", "-c", `while read line; do echo '{"ok":true,"result":null}'; done`}}, rt, sink)
	require.NoError(t, err)

	b.Submit(&ipc.Invoke{Callback: 1, Cmd: "a", Args: value.Null()})
	sink.wait(t, 1)
	b.Close()
	require.False(t, b.Enabled())

	b.Submit(&ipc.Invoke{Callback: 2, Cmd: "b", Args: value.Null()})
	scripts := sink.wait(t, 1)
	require.Contains(t, scripts[1], router.CodeBridgeUnavailable)
}
