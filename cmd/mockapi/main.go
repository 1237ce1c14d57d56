// Package main serves a seeded in-memory inventory API for running the
// console locally, over HTTP or, with -tls, over HTTPS signed by a
// development CA.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/InventarisHub/internal/apitest"
	"github.com/atinyakov/InventarisHub/internal/certgen"
	"github.com/atinyakov/InventarisHub/internal/config"
	"github.com/atinyakov/InventarisHub/internal/logger"
)

func main() {
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := newLogger(options.LogLevel, os.Stderr)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	srv := apitest.New(options.MockSecret, apitest.WithLogger(zapLogger))
	srv.Seed()

	server := &http.Server{
		Addr:              options.MockAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if options.MockTLSDir != "" {
		host, _, err := net.SplitHostPort(options.MockAddr)
		if err != nil || host == "" {
			host = "localhost"
		}
		pair, err := certgen.WriteDevCerts(options.MockTLSDir, host)
		if err != nil {
			zapLogger.Fatal("failed to prepare TLS certificates", zap.Error(err))
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{pair},
			MinVersion:   tls.VersionTLS12,
		}
		zapLogger.Info("console can trust the mock API with -ca",
			zap.String("ca", filepath.Join(options.MockTLSDir, certgen.CAFile)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	zapLogger.Info("starting mock inventory API",
		zap.String("addr", options.MockAddr),
		zap.Bool("tls", server.TLSConfig != nil),
		zap.String("admin", apitest.AdminUsername),
	)
	if server.TLSConfig != nil {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLogger.Fatal("mock API stopped", zap.Error(err))
	}
}

// newLogger builds the process logger. An Init failure goes to stderr as no
// logger exists yet.
func newLogger(level string, stderr io.Writer) (*logger.Logger, error) {
	log := logger.New()
	if err := log.Init(level); err != nil {
		fmt.Fprintln(stderr, "failed to init logger:", err)
		return nil, err
	}
	return log, nil
}
