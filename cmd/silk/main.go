// Command silk runs the IPC core against a line-based host: invoke
// envelopes arrive on stdin, response scripts leave on stdout. A desktop
// shell embeds pkg/api directly and supplies its own webview host; this
// binary is the development harness for external handlers and policies.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/silk-runtime/silk/pkg/api"
	"github.com/silk-runtime/silk/pkg/config"
	"github.com/silk-runtime/silk/pkg/permission"
	"github.com/silk-runtime/silk/pkg/webview"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "silk:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.String("config", "", "path to silk.json / silk.yaml")
		watch      = pflag.Bool("watch", false, "hot-reload the permission policy on config change")
	)
	pflag.Parse()

	loader := &config.Loader{Path: *configPath}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEndpoint != "" {
		shutdown, err := setupTracing(ctx, cfg.OTELEndpoint)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	loop := webview.NewLoop(func(script string) {
		fmt.Fprintln(out, script)
		out.Flush()
	})

	rt, err := api.New(api.Options{
		Config: cfg,
		Host:   loop,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	if (*watch || (cfg.Dev != nil && cfg.Dev.WatchConfig)) && *configPath != "" {
		w, err := config.NewWatcher(loader,
			config.OnChange(func(next *config.Config) {
				rt.ApplyPolicy(permission.New(next.PolicySpec()))
			}),
			config.OnError(func(err error) {
				logger.Warn("config: reload failed", "error", err)
			}),
		)
		if err != nil {
			return err
		}
		if _, err := w.Start(); err != nil {
			return err
		}
		defer w.Close()
	}

	go readMessages(ctx, rt, loop)

	logger.Info("silk: runtime ready", "id", rt.ID(), "app", cfg.App.Name)
	loop.Run(ctx)
	loop.Close()
	return nil
}

// readMessages feeds stdin lines into the UI-thread entry point.
func readMessages(ctx context.Context, rt *api.Runtime, loop *webview.Loop) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		loop.ScheduleOnUI(func() {
			rt.HandleMessage(ctx, line)
		})
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func setupTracing(ctx context.Context, endpoint string) (func(), error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}
