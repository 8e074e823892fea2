package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fallback modes for the nearby-city search.
const (
	FallbackEmpty     = "empty"
	FallbackThreshold = "threshold"
	FallbackAlways    = "always"
	FallbackNever     = "never"
)

// Geocoding back-ends.
const (
	BackendGoogle   = "google"
	BackendGeoNames = "geonames"
	BackendMapbox   = "mapbox"
	BackendNone     = "none"
)

const defaultPlaceholderImage = "https://www.gynprog.com.br/wp-content/uploads/2017/06/wood-blog-placeholder.jpg"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Storage. An empty DatabaseURL selects the in-memory provider store and
	// an empty RedisURL selects the in-memory autocomplete cache.
	DatabaseURL string
	RedisURL    string

	// Geocoding configuration.
	GeocoderBackend  string
	NearbyBackend    string
	GoogleMapsAPIKey string
	GeoapifyAPIKey   string
	GeoNamesUsername string
	MapboxToken      string
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int
	NearbyMaxResults int
	AutocompleteTTL  time.Duration

	// Search behaviour.
	PageSize            int
	DefaultRadiusKm     int
	FallbackMode        string
	FallbackMinResults  int
	ApplyServiceFilter  bool
	StatusLookup        bool
	Concurrency         int
	PlaceholderImageURL string

	// Search analytics. Empty KafkaBrokers disables publishing.
	KafkaBrokers     []string
	KafkaSearchTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	autocompleteTTL, err := parseDuration("AUTOCOMPLETE_TTL", "6h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:            envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		GoogleMapsAPIKey:    os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeoapifyAPIKey:      os.Getenv("GEOAPIFY_API_KEY"),
		GeoNamesUsername:    os.Getenv("GEONAMES_USERNAME"),
		MapboxToken:         os.Getenv("MAPBOX_TOKEN"),
		GeocodeTimeout:      geocodeTimeout,
		AutocompleteTTL:     autocompleteTTL,
		FallbackMode:        strings.ToLower(envOrDefault("SEARCH_FALLBACK_MODE", FallbackEmpty)),
		PlaceholderImageURL: envOrDefault("SEARCH_PLACEHOLDER_IMAGE_URL", defaultPlaceholderImage),
		KafkaBrokers:        parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaSearchTopic:    envOrDefault("KAFKA_SEARCH_TOPIC", "provider-searches"),
	}

	for name, spec := range map[string]struct {
		dst *int
		def int
		min int
		max int
	}{
		"GEOCODE_CACHE_SIZE":          {&cfg.GeocodeCacheSize, 1000, 1, 1_000_000},
		"NEARBY_MAX_RESULTS":          {&cfg.NearbyMaxResults, 20, 1, 20},
		"SEARCH_PAGE_SIZE":            {&cfg.PageSize, 10, 1, 100},
		"SEARCH_DEFAULT_RADIUS_KM":    {&cfg.DefaultRadiusKm, 50, 1, 500},
		"SEARCH_FALLBACK_MIN_RESULTS": {&cfg.FallbackMinResults, 1, 1, 1000},
		"SEARCH_CONCURRENCY":          {&cfg.Concurrency, 8, 1, 64},
	} {
		n, err := parseInt(name, spec.def, spec.min, spec.max)
		if err != nil {
			return nil, err
		}
		*spec.dst = n
	}

	if cfg.ApplyServiceFilter, err = parseBool("SEARCH_APPLY_SERVICE_FILTER", false); err != nil {
		return nil, err
	}
	if cfg.StatusLookup, err = parseBool("SEARCH_STATUS_LOOKUP", true); err != nil {
		return nil, err
	}

	defaultBackend := BackendNone
	if cfg.GoogleMapsAPIKey != "" {
		defaultBackend = BackendGoogle
	} else if cfg.GeoapifyAPIKey != "" {
		defaultBackend = BackendGeoNames
	} else if cfg.MapboxToken != "" {
		defaultBackend = BackendMapbox
	}
	cfg.GeocoderBackend = strings.ToLower(envOrDefault("GEOCODER_BACKEND", defaultBackend))

	// Mapbox has no nearby search.
	defaultNearby := cfg.GeocoderBackend
	if defaultNearby == BackendMapbox {
		defaultNearby = BackendNone
	}
	cfg.NearbyBackend = strings.ToLower(envOrDefault("NEARBY_BACKEND", defaultNearby))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.FallbackMode {
	case FallbackEmpty, FallbackThreshold, FallbackAlways, FallbackNever:
	default:
		return fmt.Errorf("invalid SEARCH_FALLBACK_MODE %q", c.FallbackMode)
	}

	for name, backend := range map[string]string{"GEOCODER_BACKEND": c.GeocoderBackend, "NEARBY_BACKEND": c.NearbyBackend} {
		switch backend {
		case BackendNone:
		case BackendGoogle:
			if c.GoogleMapsAPIKey == "" {
				return fmt.Errorf("%s is %q but GOOGLE_MAPS_API_KEY is not set", name, backend)
			}
		case BackendGeoNames:
			if c.GeoapifyAPIKey == "" {
				return fmt.Errorf("%s is %q but GEOAPIFY_API_KEY is not set", name, backend)
			}
			if c.GeoNamesUsername == "" {
				return fmt.Errorf("%s is %q but GEONAMES_USERNAME is not set", name, backend)
			}
		case BackendMapbox:
			if name == "NEARBY_BACKEND" {
				return fmt.Errorf("%s %q does not support nearby search", name, backend)
			}
			if c.MapboxToken == "" {
				return fmt.Errorf("%s is %q but MAPBOX_TOKEN is not set", name, backend)
			}
		default:
			return fmt.Errorf("invalid %s %q", name, backend)
		}
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaSearchTopic == "" {
		return errors.New("KAFKA_SEARCH_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// KafkaEnabled reports whether search events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minVal, maxVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < minVal || n > maxVal {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, minVal, maxVal)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
