package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
	"tc.com/oracle-relayer/pkg/metrics"
	"tc.com/oracle-relayer/pkg/publisher"
	"tc.com/oracle-relayer/pkg/resolver"
	"tc.com/oracle-relayer/pkg/signer"
	"tc.com/oracle-relayer/pkg/sources/hermes"
	"tc.com/oracle-relayer/pkg/sources/hyperliquid"
	"tc.com/oracle-relayer/pkg/sources/lazer"
	"tc.com/oracle-relayer/pkg/sources/seda"
	"tc.com/oracle-relayer/pkg/state"
	"tc.com/oracle-relayer/pkg/store"
	"tc.com/oracle-relayer/pkg/version"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
	noPublish  = flag.Bool("no-publish", false, "Resolve and sign but never push (overrides enable_publish)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("oracle-relayer version %s\n", version.Version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *noPublish {
		cfg.Hyperliquid.EnablePublish = false
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting oracle-relayer",
		"version", version.Version, "dex", cfg.Hyperliquid.MarketName)

	if !cfg.Hyperliquid.EnablePublish {
		logger.Warn("PUBLISHING DISABLED - updates will be resolved but NOT pushed to the venue")
	}

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Construction errors below are fatal: a relayer that cannot sign or
	// reach its configured stores must not start.
	sgn, err := signer.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize signer", "error", err)
	}
	logger.Info("Signer ready", "address", sgn.Address().Hex())

	var snapshots *store.Store
	if cfg.Redis.Addr != "" {
		snapshots, err = store.New(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		defer snapshots.Close()
	}

	states := state.NewSet()

	sedaPoller, err := seda.New(cfg, states, logger)
	if err != nil {
		logger.Fatal("Failed to initialize SEDA poller", "error", err)
	}

	res := resolver.New(cfg, states, logger)
	pub := publisher.New(cfg, res, sgn, snapshots, logger)
	limits := publisher.NewRateLimitPoller(cfg, sgn.Address(), logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}

	run(hyperliquid.New(cfg, states, logger).Run)
	run(lazer.New(cfg, states, logger).Run)
	run(hermes.New(cfg, states, logger).Run)
	run(sedaPoller.Run)
	run(pub.Run)
	run(limits.Run)

	s := <-sigChan
	logger.Info("Received shutdown signal", "signal", s.String())
	cancel()

	// Graceful shutdown with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("Shutdown timed out, exiting anyway")
	}
	logger.Info("Shutdown complete")
}
