// Command pocketdesk is a terminal companion for a PocketDesk desktop: it
// pairs with a desktop host, keeps a live mirror of its workspace state,
// and dispatches commands against it.
//
// Usage:
//
//	pocketdesk pair <host> <code>    pair with a desktop and store credentials
//	pocketdesk watch                 follow the mirror until interrupted
//	pocketdesk send <action> [json]  dispatch one command
//	pocketdesk forget                drop the stored pairing
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pocketdesk/pocketdesk/internal/client"
	"github.com/pocketdesk/pocketdesk/internal/credstore"
	"github.com/pocketdesk/pocketdesk/internal/engine"
	"github.com/pocketdesk/pocketdesk/internal/infrastructure/config"
	"github.com/pocketdesk/pocketdesk/internal/infrastructure/logging"
	"github.com/pocketdesk/pocketdesk/internal/infrastructure/monitoring"
	"github.com/pocketdesk/pocketdesk/internal/mirror"
)

func main() {
	cfg := config.LoadOrDefault()

	deviceName := flag.String("device", cfg.Desktop.DeviceName, "Device name shown on the desktop")
	credsPath := flag.String("creds", cfg.Desktop.CredentialsPath, "Credentials file path")
	flag.Parse()

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: pocketdesk <pair|watch|send|forget> [args]")
		os.Exit(2)
	}

	path := *credsPath
	if path == "" {
		path, err = credstore.DefaultPath()
		if err != nil {
			log.Fatal("cannot resolve credentials path", zap.Error(err))
		}
	}
	store := credstore.NewFile(path)

	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.New()
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	eng := engine.New(client.New(), mirror.NewStore(), store,
		engine.WithLogger(log),
		engine.WithMetrics(metrics),
	)

	switch flag.Arg(0) {
	case "pair":
		runPair(eng, log, flag.Arg(1), flag.Arg(2), *deviceName)
	case "watch":
		runWatch(eng, log)
	case "send":
		runSend(eng, store, log, flag.Arg(1), flag.Arg(2))
	case "forget":
		runForget(eng, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		os.Exit(2)
	}
}

func runPair(eng *engine.Engine, log *logging.Logger, host, code, deviceName string) {
	if host == "" || code == "" {
		fmt.Fprintln(os.Stderr, "usage: pocketdesk pair <host> <code>")
		os.Exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	creds, err := eng.Pair(ctx, host, code, deviceName)
	if err != nil {
		log.Fatal("pairing failed", zap.Error(err))
	}
	fmt.Printf("paired as %s with %s\n", creds.DeviceID, creds.BaseURL)
}

func runWatch(eng *engine.Engine, log *logging.Logger) {
	unsubStatus := eng.SubscribeStatus(func(change engine.StatusChange) {
		if change.Message != "" {
			log.Warn("status", zap.String("status", string(change.Status)), zap.String("message", change.Message))
			return
		}
		log.Info("status", zap.String("status", string(change.Status)), zap.Bool("stable", change.Stable))
	})
	defer unsubStatus()

	unsubMirror := eng.Store().Subscribe(func(change mirror.Change) {
		active := change.Mirror.Active
		log.Info("mirror updated",
			zap.Uint64("watermark", change.Watermark),
			zap.String("outcome", change.Outcome.String()),
			zap.String("workspace", active.ActiveWorkspaceID),
			zap.String("terminal", active.ActiveTerminalID),
			zap.String("session", active.ActiveSessionID),
			zap.String("project", active.ProjectPath))
	})
	defer unsubMirror()

	paired, err := eng.Start(context.Background())
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	if !paired {
		fmt.Fprintln(os.Stderr, "not paired; run: pocketdesk pair <host> <code>")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	eng.Stop()
}

func runSend(eng *engine.Engine, store credstore.Store, log *logging.Logger, action, payloadJSON string) {
	if action == "" {
		fmt.Fprintln(os.Stderr, "usage: pocketdesk send <action> [payload-json]")
		os.Exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// One-shot dispatch does not need the realtime stream, only credentials.
	creds, err := store.Load(ctx)
	if err != nil || creds == nil {
		fmt.Fprintln(os.Stderr, "not paired; run: pocketdesk pair <host> <code>")
		os.Exit(1)
	}

	var payload map[string]any
	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			log.Fatal("invalid payload JSON", zap.Error(err))
		}
	}

	result, err := eng.SendCommandWithCreds(ctx, creds, action, payload)
	if err != nil {
		log.Fatal("command failed", zap.Error(err))
	}
	if result.Status == "failed" {
		fmt.Printf("%s: failed: %s\n", result.ActionID, result.Error)
		os.Exit(1)
	}
	fmt.Printf("%s: %s (sequence %d)\n", result.ActionID, result.Status, result.Sequence)
}

func runForget(eng *engine.Engine, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.Forget(ctx); err != nil {
		log.Fatal("forget failed", zap.Error(err))
	}
	fmt.Println("pairing forgotten")
}

func serveMetrics(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics listener failed", zap.Error(err))
	}
}
