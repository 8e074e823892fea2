package domain

import (
	"context"
	"time"
)

// SearchEvent records one completed provider search for analytics.
type SearchEvent struct {
	ID           string        `json:"id"`
	Location     string        `json:"location"`
	Service      string        `json:"service,omitempty"`
	Page         int           `json:"page"`
	RadiusKm     int           `json:"radius_km"`
	TotalCount   int           `json:"total_count"`
	UsedFallback bool          `json:"used_fallback"`
	NearbyCities int           `json:"nearby_cities"`
	Failed       bool          `json:"failed"`
	Duration     time.Duration `json:"duration_ns"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// SearchEventPublisher delivers search events to an analytics sink.
type SearchEventPublisher interface {
	Publish(ctx context.Context, event SearchEvent) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SearchEvent) error { return nil }
