package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tv_snapshot/internal/config"
	"github.com/dgnsrekt/tv_snapshot/internal/session"
	"github.com/dgnsrekt/tv_snapshot/internal/snapshot"
	"github.com/dgnsrekt/tv_snapshot/internal/tools"
)

const serverVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}

	// Stdout carries the MCP stdio transport, so logs go to file only.
	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintln(os.Stderr, "logger setup failed:", err)
		os.Exit(1)
	}

	slog.Info("tv_snapshot_mcp starting",
		"base_url", cfg.BaseURL,
		"nav_timeout", cfg.NavTimeout,
		"render_timeout", cfg.RenderTimeout,
		"archive_dir", cfg.ArchiveDir,
	)

	manager := session.NewManager(cfg)
	defer manager.Close()

	var svc tools.Service = manager
	if cfg.ArchiveDir != "" {
		store, err := snapshot.NewStore(cfg.ArchiveDir)
		if err != nil {
			slog.Error("failed to create snapshot archive", "dir", cfg.ArchiveDir, "error", err)
			os.Exit(1)
		}
		svc = snapshot.ArchivingService{Inner: manager, Store: store}
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "tv-snapshot", Version: serverVersion}, nil)
	tools.Register(server, svc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		slog.Error("tv_snapshot_mcp server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("tv_snapshot_mcp stopped")
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
