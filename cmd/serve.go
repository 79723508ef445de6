package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/etendo/erp-gateway/internal/config"
	"github.com/etendo/erp-gateway/internal/gateway"
	"github.com/etendo/erp-gateway/internal/monitoring"
)

// loadConfig reads .env files, then the config file, then applies CLI overrides.
func loadConfig(opts cliOptions) (*config.Config, error) {
	config.LoadEnvFiles()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.debug {
		cfg.Monitoring.LogLevel = "debug"
	}
	return cfg, nil
}

// runServeCommand runs the gateway until SIGINT/SIGTERM.
func runServeCommand(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		printError(err.Error())
		printUsage()
		return 1
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		printError(fmt.Sprintf("loading config: %v", err))
		return 1
	}

	logCloser, err := monitoring.SetupLogging(cfg.Monitoring)
	if err != nil {
		printError(fmt.Sprintf("logging: %v", err))
		return 1
	}
	defer func() { _ = logCloser.Close() }()

	gw, err := gateway.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("gateway init failed")
		return 1
	}
	defer func() {
		if err := gw.Close(); err != nil {
			log.Warn().Err(err).Msg("closing stores")
		}
	}()

	gwErrCh := make(chan error, 1)
	go func() {
		gwErrCh <- gw.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-gwErrCh:
		if err != nil {
			log.Error().Err(err).Msg("gateway stopped")
			return 1
		}
		return 0
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := gw.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown incomplete")
		return 1
	}
	log.Info().Msg("gateway stopped")
	return 0
}
