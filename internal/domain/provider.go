package domain

import (
	"context"
	"errors"
)

// ErrProviderNotFound is returned by a ProviderStore when no record has the
// requested id.
var ErrProviderNotFound = errors.New("provider not found")

// ProviderRecord is a service provider as stored in the directory.
type ProviderRecord struct {
	ID                 int64
	CompanyName        string
	StreetAddress      string
	City               string
	Region             string
	Country            string
	MobileNumber       string
	SecondMobileNumber string
	Email              string
	Source             string
	IsPaid             bool
	Image              []byte

	// ActiveServices lists the names of active services linked to the
	// provider, sorted by name.
	ActiveServices []string
}

// OffersService reports whether name is among the provider's active services.
func (r ProviderRecord) OffersService(name string) bool {
	key := Fold(name)
	for _, s := range r.ActiveServices {
		if Fold(s) == key {
			return true
		}
	}
	return false
}

// ProviderStore is the persistence boundary consumed by the search engine.
type ProviderStore interface {
	// FindMatching returns every provider satisfying the filter.
	FindMatching(ctx context.Context, f ProviderFilter) ([]ProviderRecord, error)

	// CountMatching returns the number of providers satisfying the filter.
	CountMatching(ctx context.Context, f ProviderFilter) (int, error)

	// FindByID returns ErrProviderNotFound when no provider has the id.
	FindByID(ctx context.Context, id int64) (ProviderRecord, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// ProviderWriter inserts or updates a provider. A zero ID is assigned by the
// store; a non-zero ID replaces the existing record and its service links.
type ProviderWriter interface {
	Save(ctx context.Context, r *ProviderRecord) error
}

// BusinessStatus is the live open/closed state of a provider.
type BusinessStatus string

const (
	StatusOpen              BusinessStatus = "Open"
	StatusClosed            BusinessStatus = "Closed"
	StatusClosedPermanently BusinessStatus = "Closed Permanently"
	StatusClosedTemporarily BusinessStatus = "Closed Temporarily"
	StatusUnknown           BusinessStatus = "Unknown"
)

// EnrichedProvider is a provider prepared for presentation.
type EnrichedProvider struct {
	ID                 int64          `json:"id"`
	CompanyName        string         `json:"company_name"`
	StreetAddress      string         `json:"street_address,omitempty"`
	City               string         `json:"city"`
	Region             string         `json:"state"`
	Country            string         `json:"country"`
	MobileNumber       string         `json:"mobile_number,omitempty"`
	SecondMobileNumber string         `json:"second_mobile_number,omitempty"`
	Email              string         `json:"email,omitempty"`
	Source             string         `json:"source,omitempty"`
	IsPaid             bool           `json:"is_paid"`
	ImageURI           string         `json:"image"`
	Status             BusinessStatus `json:"status"`
	Services           []string       `json:"services"`
}

// SearchResultPage is the response of a provider search. It is always well
// formed, even when the search failed.
type SearchResultPage struct {
	Providers    []EnrichedProvider `json:"providers"`
	CurrentPage  int                `json:"current_page"`
	TotalCount   int                `json:"total_count"`
	PageSize     int                `json:"page_size"`
	TotalPages   int                `json:"total_pages"`
	Location     string             `json:"location"`
	Service      string             `json:"service"`
	RadiusKm     int                `json:"radius_km"`
	NearbyCities []Place            `json:"nearby_cities,omitempty"`
	ErrorMessage string             `json:"error_message"`
}

// TotalPagesFor returns ceil(total/pageSize), or zero for a non-positive page size.
func TotalPagesFor(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
