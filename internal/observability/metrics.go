package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "provider_search"

// Metrics holds the Prometheus counters and histograms for the search service.
type Metrics struct {
	// Search metrics.
	Searches        *prometheus.CounterVec // labels: outcome={results,empty,failed}
	SearchFallbacks prometheus.Counter
	SearchFailures  prometheus.Counter
	SearchDuration  prometheus.Histogram
	SearchResults   prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method

	// Autocomplete cache metrics.
	AutocompleteCache *prometheus.CounterVec // labels: result={hit,miss,error}

	// HTTP metrics.
	HTTPRequests *prometheus.CounterVec // labels: path, method, code

	// Event publishing metrics.
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error,dropped}
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      help("Provider searches by outcome."),
		}, []string{"outcome"}),
		SearchFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_fallbacks_total",
			Help:      help("Searches that widened to nearby cities."),
		}),
		SearchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_failures_total",
			Help:      help("Searches that returned the generic error page."),
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      help("End-to-end provider search duration."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SearchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_result_count",
			Help:      help("Total matching providers per search."),
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      help("Geocoding gateway calls by method and outcome."),
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      help("Geocoding cache lookups by method and result."),
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      help("Geocoding back-end call duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		AutocompleteCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autocomplete_cache_total",
			Help:      help("Autocomplete cache lookups by result."),
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      help("HTTP requests by path, method and status code."),
		}, []string{"path", "method", "code"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_events_published_total",
			Help:      help("Search analytics events by publish outcome."),
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.Searches,
		m.SearchFallbacks,
		m.SearchFailures,
		m.SearchDuration,
		m.SearchResults,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.AutocompleteCache,
		m.HTTPRequests,
		m.EventsPublished,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
