package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/meltforce/gymbot/internal/config"
	"github.com/meltforce/gymbot/internal/engine"
	"github.com/meltforce/gymbot/internal/mcp"
	"github.com/meltforce/gymbot/internal/storage"
	"github.com/meltforce/gymbot/internal/telegram"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("gymbot starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Rest-timer scheduler
	sched, err := engine.NewGocronScheduler()
	if err != nil {
		log.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}
	defer sched.Shutdown()

	// Bot API client doubles as the engine's out-of-band notifier
	client := telegram.NewClient(cfg.Telegram.Token)
	eng := engine.New(db, sched, client, log)

	srv := telegram.New(eng, client, cfg.Telegram.Token, log)

	if cfg.MCP.Enabled {
		mcpSrv := mcp.New(db, Version, cfg.MCP.DefaultUser, log)
		srv.Mount("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv))
		log.Info("mcp endpoint enabled", "path", "/mcp")
	}

	if cfg.Telegram.WebhookURL != "" {
		if err := client.SetWebhook(ctx, cfg.Telegram.WebhookURL); err != nil {
			log.Error("webhook registration failed", "url", cfg.Telegram.WebhookURL, "error", err)
			os.Exit(1)
		}
		log.Info("webhook registered", "url", cfg.Telegram.WebhookURL)
	}

	// Start the listener, tsnet when configured and plain HTTP otherwise.
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Hostname != "" {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			AuthKey:  cfg.Tailscale.AuthKey,
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
		log.Info("server starting", "addr", addr, "mode", "plain http (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
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
	log.Info("server stopped")
}
