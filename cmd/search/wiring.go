package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/truck-provider-search/internal/adapter/geonames"
	"github.com/couchcryptid/truck-provider-search/internal/adapter/google"
	kafkaadapter "github.com/couchcryptid/truck-provider-search/internal/adapter/kafka"
	"github.com/couchcryptid/truck-provider-search/internal/adapter/mapbox"
	"github.com/couchcryptid/truck-provider-search/internal/adapter/memory"
	"github.com/couchcryptid/truck-provider-search/internal/adapter/postgres"
	"github.com/couchcryptid/truck-provider-search/internal/autocomplete"
	"github.com/couchcryptid/truck-provider-search/internal/config"
	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/gateway"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
	"github.com/couchcryptid/truck-provider-search/internal/pipeline"
)

const (
	eventBatchSize  = 100
	eventBufferSize = 1000
)

// closerStack closes resources in reverse order of registration.
type closerStack []namedCloser

type namedCloser struct {
	name string
	c    io.Closer
}

func (s *closerStack) push(name string, c io.Closer) {
	*s = append(*s, namedCloser{name, c})
}

func (s closerStack) closeAll(logger *slog.Logger) {
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].c.Close(); err != nil {
			logger.Error("close error", "resource", s[i].name, "error", err)
		}
	}
}

// openStore connects to Postgres when DATABASE_URL is set, otherwise it
// returns an empty in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, closers *closerStack) (domain.ProviderStore, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using empty in-memory provider store")
		return memory.NewStore(), nil
	}
	store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	closers.push("postgres", store)
	return store, nil
}

// buildBackends wires the configured geocoding and nearby back-ends. Forward
// and reverse geocoding go through an LRU cache. Business status needs the
// Places API and is available only with a Google key.
func buildBackends(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (gateway.Backends, error) {
	var b gateway.Backends

	var googleClient *google.Client
	if cfg.GoogleMapsAPIKey != "" {
		c, err := google.NewClient(cfg.GoogleMapsAPIKey, cfg.GeocodeTimeout, logger)
		if err != nil {
			return b, fmt.Errorf("create google maps client: %w", err)
		}
		googleClient = c
		b.Status = c
	}

	var geonamesClient *geonames.Client
	if cfg.GeoapifyAPIKey != "" && cfg.GeoNamesUsername != "" {
		geonamesClient = geonames.NewClient(cfg.GeoapifyAPIKey, cfg.GeoNamesUsername, cfg.GeocodeTimeout, logger)
	}

	switch cfg.GeocoderBackend {
	case config.BackendGoogle:
		b.Autocompleter = googleClient
		b.Geocoder = gateway.NewCachedGeocoder(googleClient, cfg.GeocodeCacheSize, metrics)
	case config.BackendGeoNames:
		b.Autocompleter = geonamesClient
		b.Geocoder = gateway.NewCachedGeocoder(geonamesClient, cfg.GeocodeCacheSize, metrics)
	case config.BackendMapbox:
		mapboxClient := mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, logger)
		b.Autocompleter = mapboxClient
		b.Geocoder = gateway.NewCachedGeocoder(mapboxClient, cfg.GeocodeCacheSize, metrics)
	default:
		logger.Warn("geocoding disabled, autocomplete and nearby search return no results")
	}

	switch cfg.NearbyBackend {
	case config.BackendGoogle:
		b.Nearby = googleClient
	case config.BackendGeoNames:
		b.Nearby = geonamesClient
	}

	logger.Info("geocoding configured",
		"geocoder", cfg.GeocoderBackend,
		"nearby", cfg.NearbyBackend,
		"status_lookup", b.Status != nil && cfg.StatusLookup,
		"cache_size", cfg.GeocodeCacheSize,
		"timeout", cfg.GeocodeTimeout,
	)
	return b, nil
}

// openAutocompleteStore connects to Redis when REDIS_URL is set, otherwise it
// returns an in-process store.
func openAutocompleteStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, closers *closerStack) (autocomplete.Store, error) {
	if cfg.RedisURL == "" {
		return autocomplete.NewMemoryStore(nil), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	closers.push("redis", client)
	logger.Info("autocomplete cache using redis", "addr", opts.Addr)
	return autocomplete.NewRedisStore(client), nil
}

// buildPublisher returns the search event publisher and, when Kafka is
// enabled, the pipeline that must be run to drain it.
func buildPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, closers *closerStack) (domain.SearchEventPublisher, *pipeline.Pipeline) {
	if !cfg.KafkaEnabled() {
		logger.Info("search event publishing disabled")
		return domain.NopPublisher{}, nil
	}
	writer := kafkaadapter.NewWriter(cfg, logger)
	closers.push("kafka writer", writer)
	p := pipeline.New(writer, logger, metrics, eventBatchSize, eventBufferSize)
	logger.Info("search events publishing to kafka", "topic", cfg.KafkaSearchTopic, "brokers", cfg.KafkaBrokers)
	return p, p
}
