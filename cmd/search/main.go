// Command search serves the provider search API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/truck-provider-search/internal/adapter/http"
	"github.com/couchcryptid/truck-provider-search/internal/autocomplete"
	"github.com/couchcryptid/truck-provider-search/internal/config"
	"github.com/couchcryptid/truck-provider-search/internal/gateway"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
	"github.com/couchcryptid/truck-provider-search/internal/search"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers closerStack
	defer closers.closeAll(logger)

	store, err := openStore(ctx, cfg, logger, &closers)
	if err != nil {
		return err
	}

	backends, err := buildBackends(cfg, logger, metrics)
	if err != nil {
		return err
	}
	gw := gateway.New(backends, gateway.Options{
		Timeout:     cfg.GeocodeTimeout,
		MaxNearby:   cfg.NearbyMaxResults,
		Concurrency: cfg.Concurrency,
	}, logger, metrics)

	acStore, err := openAutocompleteStore(ctx, cfg, logger, &closers)
	if err != nil {
		return err
	}
	suggestions := autocomplete.New(gw, acStore, cfg.AutocompleteTTL, logger, metrics)

	publisher, events := buildPublisher(cfg, logger, metrics, &closers)
	engine := search.New(store, gw, publisher, searchOptions(cfg), logger, metrics)

	ready := httpadapter.ReadinessFunc(func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return err
		}
		if events != nil {
			return events.CheckReadiness(ctx)
		}
		return nil
	})
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Handlers{
		Search:  engine,
		Suggest: suggestions,
		Locate:  gw,
		Ready:   ready,
	}, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start the search event pipeline.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if events == nil {
			return
		}
		if err := events.Run(ctx); err != nil {
			logger.Error("event pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("event pipeline did not drain before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}

func searchOptions(cfg *config.Config) search.Options {
	return search.Options{
		PageSize:            cfg.PageSize,
		DefaultRadiusKm:     cfg.DefaultRadiusKm,
		FallbackMode:        cfg.FallbackMode,
		FallbackMinResults:  cfg.FallbackMinResults,
		ApplyServiceFilter:  cfg.ApplyServiceFilter,
		StatusLookup:        cfg.StatusLookup,
		Concurrency:         cfg.Concurrency,
		PlaceholderImageURL: cfg.PlaceholderImageURL,
	}
}
