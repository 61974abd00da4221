package main

import (
	"context"
	"fetchgate/internal/config"
	"fetchgate/internal/eventlog"
	"fetchgate/internal/fetch"
	"fetchgate/internal/health"
	"fetchgate/internal/logger"
	"fetchgate/internal/server"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fs := pflag.NewFlagSet("fetchgate", pflag.ExitOnError)
	cfg.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug)

	recent := eventlog.NewMemorySink(500)
	events := eventlog.New(eventlog.NewWriterSink(os.Stdout), recent)

	handler := fetch.Handler(fetch.HTTPFactory(fetch.HTTPConfig{
		Timeout:      cfg.FetchTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		UserAgent:    cfg.UserAgent,
	}))

	srv := server.New(handler, events, server.Config{
		MaxConnections: cfg.MaxConnections,
		AcceptRate:     cfg.AcceptRate,
		AcceptBurst:    cfg.AcceptBurst,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	})

	if err := srv.Start(uint16(cfg.Port)); err != nil {
		logger.Fatal("Error starting server", "port", cfg.Port, "error", err)
	}

	var hs *health.Server
	if cfg.HealthPort != "" {
		hs = health.New(":"+cfg.HealthPort, func() bool { return srv.State() == server.Running }, recent)
		hs.Start()
	}

	failed := make(chan error, 1)
	go func() { failed <- srv.Wait() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case <-sigChan:
		srv.Stop()
		logger.Info("Server gracefully stopped")
	case err := <-failed:
		if err != nil {
			logger.Error("Server error", "error", err)
			code = 1
		}
		// The accept loop is gone but clients may still be connected.
		srv.Stop()
	}

	if hs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := hs.Stop(ctx); err != nil {
			logger.Warn("Health server shutdown", "error", err)
		}
		cancel()
	}

	// Nothing may reach stdout once we are tearing down.
	events.Close()
	os.Exit(code)
}
