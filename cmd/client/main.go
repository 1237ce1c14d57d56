// Package main runs the inventaris admin console: an interactive shell for
// managing products and users of a remote inventory API.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/atinyakov/InventarisHub/internal/client/api"
	"github.com/atinyakov/InventarisHub/internal/client/session"
	"github.com/atinyakov/InventarisHub/internal/client/ui"
	"github.com/atinyakov/InventarisHub/internal/config"
	"github.com/atinyakov/InventarisHub/internal/logger"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Inventaris Console %s (%s)\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	sessions := session.NewStore(options.SessionFile)
	client, err := api.New(api.Options{
		BaseURL:            options.BaseURL,
		Timeout:            options.Timeout,
		InsecureSkipVerify: options.InsecureSkipVerify,
		CAFile:             options.CAFile,
		Logger:             zapLogger,
	}, sessions)
	if err != nil {
		zapLogger.Fatal("failed to create API client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shell := ui.NewShell(ui.Config{
		In:             os.Stdin,
		Out:            os.Stdout,
		Sessions:       sessions,
		Client:         client,
		AssetOrigin:    options.AssetOrigin,
		SearchDebounce: options.SearchDebounce,
		Logger:         zapLogger,
	})
	zapLogger.Debug("console started",
		zap.String("base_url", options.BaseURL),
		zap.String("session_file", sessions.Path()),
	)
	if err := shell.Run(ctx); err != nil && ctx.Err() == nil {
		zapLogger.Error("shell stopped", zap.Error(err))
		os.Exit(1)
	}
}
