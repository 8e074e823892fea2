package domain

import "strings"

// ParsedLocation holds the raw segments of a "City, Region, Country" query.
// Empty fields were absent in the input and must not be filtered on.
type ParsedLocation struct {
	City    string
	Region  string
	Country string
}

// ParseLocation splits free text on commas, trims each segment and drops empty
// ones. Segments beyond the third are ignored.
func ParseLocation(text string) ParsedLocation {
	var parts []string
	for _, p := range strings.Split(text, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	var loc ParsedLocation
	if len(parts) > 0 {
		loc.City = parts[0]
	}
	if len(parts) > 1 {
		loc.Region = parts[1]
	}
	if len(parts) > 2 {
		loc.Country = parts[2]
	}
	return loc
}

// LocationQuery is the normalized form of a location search, derived once per
// request.
type LocationQuery struct {
	Raw             string
	City            string
	RegionVariants  VariantSet
	CountryVariants VariantSet
}

// NewLocationQuery parses text and expands the region and country tokens into
// their variant sets.
func NewLocationQuery(text string) LocationQuery {
	loc := ParseLocation(text)
	return LocationQuery{
		Raw:             text,
		City:            loc.City,
		RegionVariants:  RegionVariants(loc.Region),
		CountryVariants: CountryVariants(loc.Country),
	}
}

// IsEmpty reports whether the query names no location at all.
func (q LocationQuery) IsEmpty() bool {
	return q.City == "" && q.RegionVariants.IsEmpty() && q.CountryVariants.IsEmpty()
}

// Filter returns the primary provider filter for the query.
func (q LocationQuery) Filter() ProviderFilter {
	return ProviderFilter{
		City:      q.City,
		Regions:   q.RegionVariants,
		Countries: q.CountryVariants,
	}
}

// CandidateFilter returns the filter for a nearby city. The candidate's own
// region and country win when present; otherwise the requested variant sets
// are reused.
func (q LocationQuery) CandidateFilter(p Place) ProviderFilter {
	f := ProviderFilter{
		City:      strings.TrimSpace(p.City),
		Regions:   q.RegionVariants,
		Countries: q.CountryVariants,
	}
	if vs := RegionVariants(p.Region); !vs.IsEmpty() {
		f.Regions = vs
	}
	if vs := CountryVariants(p.Country); !vs.IsEmpty() {
		f.Countries = vs
	}
	return f
}

// ProviderFilter is one set of location predicates evaluated against the
// provider store. Zero-valued dimensions are not filtered.
type ProviderFilter struct {
	City      string
	Regions   VariantSet
	Countries VariantSet

	// Service, when set, restricts matches to providers offering an active
	// service with this name (case-insensitive).
	Service string
}

// WithService returns a copy of the filter restricted to the named service.
func (f ProviderFilter) WithService(service string) ProviderFilter {
	f.Service = strings.TrimSpace(service)
	return f
}

// Matches reports whether r satisfies every non-empty predicate. Stores that
// translate filters to queries must produce the same result.
func (f ProviderFilter) Matches(r ProviderRecord) bool {
	if f.City != "" && Fold(r.City) != Fold(f.City) {
		return false
	}
	if !f.Regions.IsEmpty() && (strings.TrimSpace(r.Region) == "" || !f.Regions.Contains(r.Region)) {
		return false
	}
	if !f.Countries.IsEmpty() && (strings.TrimSpace(r.Country) == "" || !f.Countries.Contains(r.Country)) {
		return false
	}
	if f.Service != "" && !r.OffersService(f.Service) {
		return false
	}
	return true
}
