package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"duoaccount/internal/backend"
	"duoaccount/internal/cache"
	"duoaccount/internal/cli"
	"duoaccount/internal/core"
	apphttp "duoaccount/internal/http"
	"duoaccount/internal/ledger"
	"duoaccount/internal/localcache"
	"duoaccount/internal/log"
	"duoaccount/internal/realtime"
	"duoaccount/internal/settings"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	local, err := localcache.New(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open local cache", log.FieldError, err, "dir", cfg.DataDir)
		os.Exit(1)
	}
	pair, err := settings.Open(local, cfg.DuoID)
	if err != nil {
		logger.Error("Failed to load settings", log.FieldError, err)
		os.Exit(1)
	}

	instanceID := uuid.NewString()
	hub := realtime.NewHub(logger, pair.DuoID)

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithBroadcaster(hub),
		ledger.WithInstanceID(instanceID),
		ledger.WithSettlementThreshold(core.Cents(cfg.SettlementThresholdCents)),
		ledger.WithSummaryTTL(10 * time.Minute),
	}
	if res.Events != nil {
		opts = append(opts, ledger.WithPublisher(res.Events))
	}
	svc := ledger.New(res.Store, local, pair, opts...)
	if err := svc.Refresh(ctx); err != nil {
		logger.Warn("Initial refresh failed", log.FieldError, err)
	}

	janitor := cache.NewJanitor(logger, svc.SummaryCache())
	janitor.Start(5 * time.Minute)
	defer janitor.Stop()

	if res.Events != nil {
		relay := realtime.NewRelay(hub, svc, instanceID, logger)
		go func() {
			if err := res.Events.Run(ctx, res.Events.Subscribe, relay.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change event subscription stopped", log.FieldError, err)
			}
		}()
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, pair, res.Store,
		apphttp.WithRealtime(hub),
		apphttp.WithLogger(logger),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting duoaccount server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			log.FieldDuoID, pair.DuoID(),
			"instance_id", instanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	if err := hub.Close(); err != nil {
		logger.Warn("Websocket hub close failed", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
