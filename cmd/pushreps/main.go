package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/pushreps/internal/backend"
	"github.com/claude/pushreps/internal/config"
	"github.com/claude/pushreps/internal/mcp"
	"github.com/claude/pushreps/internal/metrics"
	"github.com/claude/pushreps/internal/notify"
	"github.com/claude/pushreps/internal/progress"
	"github.com/claude/pushreps/internal/server"
	"github.com/claude/pushreps/internal/session"
	"github.com/claude/pushreps/internal/workout"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to SQL migrations (postgres driver)")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("PushReps starting", "version", Version, "storage", cfg.Storage.Driver)

	ctx := context.Background()

	// Open storage
	be, err := backend.Open(ctx, cfg, *migrationsPath, log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer be.Close()

	loc, err := cfg.Tracker.Location()
	if err != nil {
		log.Error("invalid timezone", "error", err)
		os.Exit(1)
	}
	store, err := progress.Open(ctx, be.Progress, log, progress.Options{Location: loc})
	if err != nil {
		log.Error("failed to load progress", "error", err)
		os.Exit(1)
	}

	// Notifications
	var sinks []notify.Sink
	if cfg.Notifications.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notifications.WebhookURL))
	}
	dispatcher := notify.New(be.Settings, log, notify.Options{
		ReminderAfter: cfg.Notifications.ReminderAfter,
		Sinks:         sinks,
	})
	defer dispatcher.Close()

	// Session engine
	plan, err := cfg.Tracker.Plan()
	if err != nil {
		log.Error("invalid default plan", "error", err)
		os.Exit(1)
	}
	engine := session.NewEngine(plan, session.Options{
		TickInterval: cfg.Tracker.RestTick,
		Log:          log,
	})
	defer engine.Close()

	svc := workout.New(engine, store, dispatcher, log)

	// Create server
	srv := server.New(svc, dispatcher, cfg.Auth.APIKey, log)
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry(be.Collectors...)
		m := metrics.NewManager(reg)
		svc.SetObserver(m)
		srv.MountMetrics(m, reg)
		log.Info("metrics enabled", "path", "/metrics")
	}
	mcpSrv := mcp.New(mcp.NewLocal(svc), Version, log)
	srv.MountMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	// Start server on tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if pending := svc.Pending(); len(pending) > 0 {
		log.Warn("exiting with unsaved sessions", "count", len(pending))
	}
	log.Info("server stopped")
}
