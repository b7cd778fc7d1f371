package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/felixgeelhaar/codepractice/internal/app"
	"github.com/felixgeelhaar/codepractice/internal/config"
	mcpserver "github.com/felixgeelhaar/codepractice/internal/mcp"
)

// cmdMCP starts the MCP server on stdio. It opens its own app over the
// same data directory as the daemon.
func cmdMCP() error {
	// stdout carries the protocol
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	dir, err := config.EnsureDir()
	if err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(ctx, app.AppConfig{
		Config:  cfg,
		DataDir: filepath.Join(dir, "data"),
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer a.Close()

	return mcpserver.NewServer(mcpserver.ConfigFromApp(a)).ServeStdio(ctx)
}
