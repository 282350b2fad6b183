package webview

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInjectionScriptIsGuarded(t *testing.T) {
	script := InjectionScript()
	require.True(t, strings.HasPrefix(script, "(function () {"))
	require.Contains(t, script, "if (window.__silk) {")
	require.Contains(t, script, "window.__silk = silk;")
	// One publish site, one guard: running twice leaves a single client.
	require.Equal(t, 1, strings.Count(script, "window.__silk = "))
}

func TestInjectionScriptTransportProbeOrder(t *testing.T) {
	script := InjectionScript()
	order := []string{
		"handlers.silk &&",
		"handlers.silk_ipc",
		"chrome.webview.postMessage",
		"__silkPostMessage",
	}
	last := -1
	for _, probe := range order {
		idx := strings.Index(script, probe)
		require.Greater(t, idx, last, "probe %q out of order", probe)
		last = idx
	}
	require.Contains(t, script, "Silk transport unavailable")
}

func TestInjectionScriptPendingCap(t *testing.T) {
	script := InjectionScript()
	require.Contains(t, script, "var MAX_PENDING = 1000;")
	require.Contains(t, script, "Silk invoke limit reached")
}

func TestInjectionScriptEnvelopeShape(t *testing.T) {
	script := InjectionScript()
	require.Contains(t, script, `kind: "invoke"`)
	require.Contains(t, script, "args === undefined ? null : args")
	require.Contains(t, script, `msg.kind === "response"`)
	require.Contains(t, script, `msg.kind === "event"`)
}

func TestLoopRunsScheduledTasksInOrder(t *testing.T) {
	var posted []string
	loop := NewLoop(func(s string) { posted = append(posted, s) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	ran := make(chan struct{})
	loop.ScheduleOnUI(func() { loop.PostScript("a") })
	loop.ScheduleOnUI(func() { loop.PostScript("b") })
	loop.ScheduleOnUI(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not run scheduled tasks")
	}
	cancel()
	<-done

	require.Equal(t, []string{"a", "b"}, posted)
}

func TestLoopCloseDiscardsTasks(t *testing.T) {
	loop := NewLoop(nil)
	loop.Close()
	loop.ScheduleOnUI(func() { t.Fatal("must not run") })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	loop.Run(ctx)
}
