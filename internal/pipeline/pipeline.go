// Package pipeline moves search events off the request path: searches
// enqueue events without blocking and a background loop loads them to the
// analytics sink in batches.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

// ErrQueueFull is returned by Publish when the buffer has no room.
var ErrQueueFull = errors.New("search event queue full")

// BatchLoader writes multiple events to the sink.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.SearchEvent) error
}

const (
	maxAttempts  = 3
	flushTimeout = 5 * time.Second
)

// Pipeline buffers events and loads them in batches. It implements
// domain.SearchEventPublisher.
type Pipeline struct {
	events    chan domain.SearchEvent
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	batchSize int
	running   atomic.Bool
}

// New creates a Pipeline holding up to bufferSize pending events.
func New(loader BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize, bufferSize int) *Pipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	if bufferSize < batchSize {
		bufferSize = batchSize
	}
	return &Pipeline{
		events:    make(chan domain.SearchEvent, bufferSize),
		loader:    loader,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// Publish enqueues an event without blocking. A full queue drops the event.
func (p *Pipeline) Publish(_ context.Context, event domain.SearchEvent) error {
	select {
	case p.events <- event:
		return nil
	default:
		p.metrics.EventsPublished.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// CheckReadiness returns an error while the load loop is not running.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.running.Load() {
		return errors.New("search event pipeline is not running")
	}
	return nil
}

// Run loads batches until the context is cancelled, then flushes whatever is
// still buffered.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("event pipeline started", "batch_size", p.batchSize, "buffer", cap(p.events))
	p.running.Store(true)
	defer p.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event pipeline stopping", "reason", ctx.Err())
			p.flush()
			return nil
		case first := <-p.events:
			p.load(ctx, p.collect(first))
		}
	}
}

// collect gathers first plus any immediately available events, up to the
// batch size.
func (p *Pipeline) collect(first domain.SearchEvent) []domain.SearchEvent {
	batch := make([]domain.SearchEvent, 0, p.batchSize)
	batch = append(batch, first)
	for len(batch) < p.batchSize {
		select {
		case e := <-p.events:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

// load writes a batch, retrying with backoff. A batch that still fails after
// maxAttempts is dropped.
func (p *Pipeline) load(ctx context.Context, batch []domain.SearchEvent) {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for attempt := 1; ; attempt++ {
		err := p.loader.LoadBatch(ctx, batch)
		if err == nil {
			p.metrics.EventsPublished.WithLabelValues("success").Add(float64(len(batch)))
			return
		}
		if attempt >= maxAttempts || ctx.Err() != nil {
			p.logger.Error("load search events failed, dropping batch",
				"error", err, "batch_size", len(batch), "attempts", attempt)
			p.metrics.EventsPublished.WithLabelValues("error").Add(float64(len(batch)))
			return
		}
		p.logger.Warn("load search events failed, retrying",
			"error", err, "batch_size", len(batch), "backoff", backoff)
		if !sleepWithContext(ctx, backoff) {
			p.metrics.EventsPublished.WithLabelValues("error").Add(float64(len(batch)))
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// flush drains the buffer with a fresh deadline after shutdown begins.
func (p *Pipeline) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for {
		select {
		case first := <-p.events:
			p.load(ctx, p.collect(first))
		default:
			return
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
