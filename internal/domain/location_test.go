package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ParsedLocation
	}{
		{"full", "Dallas, TX, USA", ParsedLocation{City: "Dallas", Region: "TX", Country: "USA"}},
		{"city only", "Dallas", ParsedLocation{City: "Dallas"}},
		{"city and region", "Fort Worth,Texas", ParsedLocation{City: "Fort Worth", Region: "Texas"}},
		{"empty segments dropped", " , Dallas,, TX ,", ParsedLocation{City: "Dallas", Region: "TX"}},
		{"extra segments ignored", "Dallas, TX, USA, Earth", ParsedLocation{City: "Dallas", Region: "TX", Country: "USA"}},
		{"blank", "   ", ParsedLocation{}},
		{"empty", "", ParsedLocation{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLocation(tt.input))
		})
	}
}

func TestNewLocationQuery(t *testing.T) {
	q := NewLocationQuery("Dallas, TX, USA")

	assert.Equal(t, "Dallas", q.City)
	assert.True(t, q.RegionVariants.Contains("Texas"))
	assert.True(t, q.CountryVariants.Contains("United States"))
	assert.False(t, q.IsEmpty())

	cityOnly := NewLocationQuery("Dallas")
	assert.True(t, cityOnly.RegionVariants.IsEmpty())
	assert.True(t, cityOnly.CountryVariants.IsEmpty())

	assert.True(t, NewLocationQuery(" , ").IsEmpty())
}

func TestProviderFilter_Matches(t *testing.T) {
	dallas := ProviderRecord{ID: 1, City: "Dallas", Region: "Texas", Country: "United States", ActiveServices: []string{"Towing"}}
	noRegion := ProviderRecord{ID: 2, City: "Dallas", Country: "US"}

	f := NewLocationQuery("dallas, TX, USA").Filter()
	assert.True(t, f.Matches(dallas))
	assert.False(t, f.Matches(noRegion), "region filter requires a stored region")

	cityOnly := NewLocationQuery("DALLAS").Filter()
	assert.True(t, cityOnly.Matches(dallas))
	assert.True(t, cityOnly.Matches(noRegion))

	other := NewLocationQuery("Houston, TX").Filter()
	assert.False(t, other.Matches(dallas))

	assert.True(t, f.WithService("towing").Matches(dallas))
	assert.False(t, f.WithService("Tire Repair").Matches(dallas))

	assert.True(t, ProviderFilter{}.Matches(dallas), "empty filter matches everything")
}

func TestLocationQuery_CandidateFilter(t *testing.T) {
	q := NewLocationQuery("Dallas, TX, USA")

	withRegion := q.CandidateFilter(Place{City: "Mississauga", Region: "Ontario", Country: "Canada"})
	assert.Equal(t, "Mississauga", withRegion.City)
	assert.True(t, withRegion.Regions.Contains("ON"))
	assert.True(t, withRegion.Countries.Contains("CA"))

	inherited := q.CandidateFilter(Place{City: "Fort Worth"})
	assert.Equal(t, "Fort Worth", inherited.City)
	assert.True(t, inherited.Regions.Equal(q.RegionVariants))
	assert.True(t, inherited.Countries.Equal(q.CountryVariants))
}

func TestVariantSet_ZeroValue(t *testing.T) {
	var vs VariantSet
	assert.True(t, vs.IsEmpty())
	assert.False(t, vs.Contains("TX"))
	assert.Empty(t, vs.Values())
	assert.True(t, vs.Equal(NewVariantSet()))
}
