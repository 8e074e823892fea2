// Package search resolves a free-text location into a ranked, paginated and
// enriched page of providers, widening to nearby cities when the requested
// city has too few matches.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

// User-facing messages carried in SearchResultPage.ErrorMessage.
const (
	MsgNoResults = "No services found in this area. Try increasing the search radius or searching a nearby city."
	MsgFailure   = "Something went wrong. Please try again."
)

// Fallback modes decide when nearby cities are searched.
const (
	FallbackEmpty     = "empty"
	FallbackThreshold = "threshold"
	FallbackAlways    = "always"
	FallbackNever     = "never"
)

// Geo is the subset of the geocoding gateway the engine needs. Both methods
// soft-fail.
type Geo interface {
	FindNearbyCities(ctx context.Context, location string, radiusKm int) []domain.Place
	BusinessStatus(ctx context.Context, name, city, region, country string) domain.BusinessStatus
}

// Request is one provider search.
type Request struct {
	Location string
	Service  string
	Page     int
	RadiusKm int
}

// Options tunes the engine. Zero values select the documented defaults.
type Options struct {
	PageSize            int
	DefaultRadiusKm     int
	FallbackMode        string
	FallbackMinResults  int
	ApplyServiceFilter  bool
	StatusLookup        bool
	Concurrency         int
	PlaceholderImageURL string
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 10
	}
	if o.DefaultRadiusKm <= 0 {
		o.DefaultRadiusKm = 50
	}
	if o.FallbackMode == "" {
		o.FallbackMode = FallbackEmpty
	}
	if o.FallbackMinResults <= 0 {
		o.FallbackMinResults = 1
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	return o
}

// Engine runs provider searches.
type Engine struct {
	store     domain.ProviderStore
	geo       Geo
	publisher domain.SearchEventPublisher
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	// shuffle orders unpaid providers; replaced in tests.
	shuffle func([]domain.ProviderRecord)
}

// New creates an Engine. A nil publisher disables search events and nil
// metrics disables instrumentation. Publish is called inline after every
// search, so it must not block.
func New(store domain.ProviderStore, geo Geo, publisher domain.SearchEventPublisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if publisher == nil {
		publisher = domain.NopPublisher{}
	}
	return &Engine{
		store:     store,
		geo:       geo,
		publisher: publisher,
		opts:      opts.withDefaults(),
		logger:    logger,
		metrics:   metrics,
		shuffle: func(rs []domain.ProviderRecord) {
			rand.Shuffle(len(rs), func(i, j int) { rs[i], rs[j] = rs[j], rs[i] })
		},
	}
}

// outcome carries bookkeeping from a search run to its event.
type outcome struct {
	usedFallback bool
	nearby       int
}

// Search returns a page of providers. It never fails: store errors and panics
// produce a zero-result page with MsgFailure.
func (e *Engine) Search(ctx context.Context, req Request) (page domain.SearchResultPage) {
	start := domain.Clock().Now()
	req = e.normalize(req)

	var out outcome
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("search panicked",
				"panic", r,
				"location", req.Location,
				"stack", string(debug.Stack()),
			)
			page = e.failurePage(req)
		}
		e.finish(ctx, req, page, out, start)
	}()

	page, err := e.run(ctx, req, &out)
	if err != nil {
		e.logger.Error("search failed", "error", err, "location", req.Location, "service", req.Service)
		page = e.failurePage(req)
	}
	return page
}

func (e *Engine) normalize(req Request) Request {
	req.Location = strings.TrimSpace(req.Location)
	req.Service = strings.TrimSpace(req.Service)
	if req.Page < 1 {
		req.Page = 1
	}
	if req.RadiusKm <= 0 {
		req.RadiusKm = e.opts.DefaultRadiusKm
	}
	return req
}

func (e *Engine) run(ctx context.Context, req Request, out *outcome) (domain.SearchResultPage, error) {
	q := domain.NewLocationQuery(req.Location)
	primary := q.Filter()
	if e.opts.ApplyServiceFilter {
		primary = primary.WithService(req.Service)
	}

	count, err := e.store.CountMatching(ctx, primary)
	if err != nil {
		return domain.SearchResultPage{}, fmt.Errorf("count primary matches: %w", err)
	}

	var records []domain.ProviderRecord
	if count > 0 {
		if records, err = e.store.FindMatching(ctx, primary); err != nil {
			return domain.SearchResultPage{}, fmt.Errorf("find primary matches: %w", err)
		}
	}

	var nearby []domain.Place
	if !q.IsEmpty() && e.shouldFallback(count) {
		out.usedFallback = true
		if e.metrics != nil {
			e.metrics.SearchFallbacks.Inc()
		}

		nearby = e.geo.FindNearbyCities(ctx, req.Location, req.RadiusKm)
		out.nearby = len(nearby)

		extra, err := e.findCandidates(ctx, q, req.Service, nearby)
		if err != nil {
			return domain.SearchResultPage{}, err
		}
		records = unionByID(records, extra...)
	}

	ranked := e.rank(records)
	pageRecords := paginate(ranked, req.Page, e.opts.PageSize)

	providers, err := e.enrich(ctx, pageRecords)
	if err != nil {
		return domain.SearchResultPage{}, err
	}

	page := domain.SearchResultPage{
		Providers:    providers,
		CurrentPage:  req.Page,
		TotalCount:   len(ranked),
		PageSize:     e.opts.PageSize,
		TotalPages:   domain.TotalPagesFor(len(ranked), e.opts.PageSize),
		Location:     req.Location,
		Service:      req.Service,
		RadiusKm:     req.RadiusKm,
		NearbyCities: nearby,
	}
	if page.TotalCount == 0 {
		page.ErrorMessage = MsgNoResults
	}
	return page, nil
}

func (e *Engine) shouldFallback(count int) bool {
	switch e.opts.FallbackMode {
	case FallbackAlways:
		return true
	case FallbackNever:
		return false
	case FallbackThreshold:
		return count < e.opts.FallbackMinResults
	default:
		return count == 0
	}
}

// findCandidates runs one store query per nearby city concurrently and
// returns the results in candidate order.
func (e *Engine) findCandidates(ctx context.Context, q domain.LocationQuery, service string, nearby []domain.Place) ([][]domain.ProviderRecord, error) {
	results := make([][]domain.ProviderRecord, len(nearby))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, p := range nearby {
		f := q.CandidateFilter(p)
		if f.City == "" {
			continue
		}
		if e.opts.ApplyServiceFilter {
			f = f.WithService(service)
		}
		goSafe(g, func() error {
			rs, err := e.store.FindMatching(gctx, f)
			if err != nil {
				return fmt.Errorf("find providers near %q: %w", p.City, err)
			}
			results[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// rank puts paid providers first in store order and shuffles the rest.
func (e *Engine) rank(records []domain.ProviderRecord) []domain.ProviderRecord {
	ranked := make([]domain.ProviderRecord, 0, len(records))
	var unpaid []domain.ProviderRecord
	for _, r := range records {
		if r.IsPaid {
			ranked = append(ranked, r)
		} else {
			unpaid = append(unpaid, r)
		}
	}
	e.shuffle(unpaid)
	return append(ranked, unpaid...)
}

// enrich builds the presentation form of each record concurrently. The
// result preserves input order.
func (e *Engine) enrich(ctx context.Context, records []domain.ProviderRecord) ([]domain.EnrichedProvider, error) {
	out := make([]domain.EnrichedProvider, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, r := range records {
		goSafe(g, func() error {
			status := domain.StatusUnknown
			if e.opts.StatusLookup {
				status = e.geo.BusinessStatus(gctx, r.CompanyName, r.City, r.Region, r.Country)
			}
			out[i] = enriched(r, domain.ImageDataURI(r.Image, e.opts.PlaceholderImageURL), status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func enriched(r domain.ProviderRecord, image string, status domain.BusinessStatus) domain.EnrichedProvider {
	services := slices.Clone(r.ActiveServices)
	if services == nil {
		services = []string{}
	}
	return domain.EnrichedProvider{
		ID:                 r.ID,
		CompanyName:        r.CompanyName,
		StreetAddress:      r.StreetAddress,
		City:               r.City,
		Region:             r.Region,
		Country:            r.Country,
		MobileNumber:       r.MobileNumber,
		SecondMobileNumber: r.SecondMobileNumber,
		Email:              r.Email,
		Source:             r.Source,
		IsPaid:             r.IsPaid,
		ImageURI:           image,
		Status:             status,
		Services:           services,
	}
}

func (e *Engine) failurePage(req Request) domain.SearchResultPage {
	return domain.SearchResultPage{
		Providers:    []domain.EnrichedProvider{},
		CurrentPage:  1,
		PageSize:     e.opts.PageSize,
		Location:     req.Location,
		Service:      req.Service,
		RadiusKm:     req.RadiusKm,
		ErrorMessage: MsgFailure,
	}
}

// finish records metrics and publishes the search event.
func (e *Engine) finish(ctx context.Context, req Request, page domain.SearchResultPage, out outcome, start time.Time) {
	elapsed := domain.Clock().Since(start)
	failed := page.ErrorMessage == MsgFailure
	e.record(page, failed, elapsed)

	event := domain.SearchEvent{
		ID:           uuid.NewString(),
		Location:     req.Location,
		Service:      req.Service,
		Page:         req.Page,
		RadiusKm:     req.RadiusKm,
		TotalCount:   page.TotalCount,
		UsedFallback: out.usedFallback,
		NearbyCities: out.nearby,
		Failed:       failed,
		Duration:     elapsed,
		OccurredAt:   domain.Clock().Now().UTC(),
	}
	if err := e.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Warn("publish search event failed", "error", err, "event_id", event.ID)
	}

	e.logger.Debug("search completed",
		"location", req.Location,
		"page", req.Page,
		"radius_km", req.RadiusKm,
		"total_count", page.TotalCount,
		"used_fallback", out.usedFallback,
		"nearby_cities", out.nearby,
		"duration", elapsed,
	)
}

func (e *Engine) record(page domain.SearchResultPage, failed bool, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	switch {
	case failed:
		e.metrics.SearchFailures.Inc()
		e.metrics.Searches.WithLabelValues("failed").Inc()
	case page.TotalCount == 0:
		e.metrics.Searches.WithLabelValues("empty").Inc()
	default:
		e.metrics.Searches.WithLabelValues("results").Inc()
	}
	e.metrics.SearchDuration.Observe(elapsed.Seconds())
	e.metrics.SearchResults.Observe(float64(page.TotalCount))
}

// unionByID appends every record from extra not already present, keeping the
// first occurrence of each id.
func unionByID(base []domain.ProviderRecord, extra ...[]domain.ProviderRecord) []domain.ProviderRecord {
	seen := make(map[int64]struct{}, len(base))
	out := make([]domain.ProviderRecord, 0, len(base))
	add := func(rs []domain.ProviderRecord) {
		for _, r := range rs {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	add(base)
	for _, rs := range extra {
		add(rs)
	}
	return out
}

func paginate(records []domain.ProviderRecord, page, size int) []domain.ProviderRecord {
	// Compare page numbers before multiplying so huge pages cannot overflow.
	if size <= 0 || page < 1 || page-1 >= domain.TotalPagesFor(len(records), size) {
		return nil
	}
	skip := (page - 1) * size
	return records[skip:min(skip+size, len(records))]
}

// errPanic wraps a panic recovered in a fan-out goroutine.
var errPanic = errors.New("panic in search worker")

func goSafe(g *errgroup.Group, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errPanic, r)
			}
		}()
		return fn()
	})
}
