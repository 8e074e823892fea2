package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// regionAbbreviations maps US state and Canadian province/territory postal
// abbreviations to their full names.
var regionAbbreviations = map[string]string{
	// US states
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona",
	"AR": "Arkansas", "CA": "California", "CO": "Colorado",
	"CT": "Connecticut", "DE": "Delaware", "FL": "Florida",
	"GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts",
	"MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey",
	"NM": "New Mexico", "NY": "New York", "NC": "North Carolina",
	"ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee",
	"TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",

	// Canada
	"AB": "Alberta", "BC": "British Columbia", "MB": "Manitoba",
	"NB": "New Brunswick", "NL": "Newfoundland and Labrador",
	"NS": "Nova Scotia", "ON": "Ontario", "PE": "Prince Edward Island",
	"QC": "Quebec", "SK": "Saskatchewan", "NT": "Northwest Territories",
	"NU": "Nunavut", "YT": "Yukon",
}

// countrySynonyms maps every accepted spelling of a supported country to its
// canonical name. Only the United States and Canada are modeled.
var countrySynonyms = map[string]string{
	"US":                       "United States",
	"USA":                      "United States",
	"U.S.":                     "United States",
	"U.S.A.":                   "United States",
	"United States":            "United States",
	"United States of America": "United States",

	"CA":     "Canada",
	"CAN":    "Canada",
	"Canada": "Canada",
}

// synonymTable resolves abbreviations to canonical names and canonical names to
// their full variant sets. Lookups are case-insensitive. A table is never
// mutated after construction.
type synonymTable struct {
	canonical map[string]string     // folded variant -> canonical
	variants  map[string]VariantSet // folded canonical -> variants
}

func newSynonymTable(pairs map[string]string) synonymTable {
	t := synonymTable{
		canonical: make(map[string]string, len(pairs)),
		variants:  make(map[string]VariantSet),
	}
	grouped := make(map[string][]string)
	for variant, canonical := range pairs {
		t.canonical[fold(variant)] = canonical
		grouped[canonical] = append(grouped[canonical], variant)
	}
	for canonical, vs := range grouped {
		t.variants[fold(canonical)] = NewVariantSet(append(vs, canonical)...)
	}
	return t
}

func (t synonymTable) canonicalOf(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if c, ok := t.canonical[fold(trimmed)]; ok {
		return c
	}
	return trimmed
}

func (t synonymTable) variantsOf(input string) VariantSet {
	canonical := t.canonicalOf(input)
	if canonical == "" {
		return VariantSet{}
	}
	if vs, ok := t.variants[fold(canonical)]; ok {
		return vs
	}
	return NewVariantSet(canonical)
}

var (
	regionTable  = newSynonymTable(regionAbbreviations)
	countryTable = newSynonymTable(countrySynonyms)
)

// CanonicalRegion returns the full name for a known region abbreviation, or the
// trimmed input unchanged.
func CanonicalRegion(input string) string { return regionTable.canonicalOf(input) }

// RegionVariants returns every accepted spelling of the region named by input.
// Blank input yields an empty set, meaning "do not filter on region".
func RegionVariants(input string) VariantSet { return regionTable.variantsOf(input) }

// CanonicalCountry returns "United States" or "Canada" for any of their known
// spellings, or the trimmed input unchanged.
func CanonicalCountry(input string) string { return countryTable.canonicalOf(input) }

// CountryVariants returns every accepted spelling of the country named by input.
func CountryVariants(input string) VariantSet { return countryTable.variantsOf(input) }

// IsSupportedCountry reports whether the country is one the directory serves.
func IsSupportedCountry(input string) bool {
	switch CanonicalCountry(input) {
	case "United States", "Canada":
		return true
	}
	return false
}

// fold returns the case-folded form used as a comparison key.
// A cases.Caser must not be shared between goroutines, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Fold exposes the comparison key used for case-insensitive matching.
func Fold(s string) string {
	return fold(strings.TrimSpace(s))
}
