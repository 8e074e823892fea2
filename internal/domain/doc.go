// Package domain models the truck service provider directory and the
// location vocabulary used to search it.
//
// # Location queries
//
// Users type locations as "<city>, <region>, <country>", usually picked from
// the city autocomplete:
//
//	"Dallas, TX, USA"       city, region abbreviation, country abbreviation
//	"Dallas, Texas"         country omitted
//	"Dallas"                region and country omitted
//
// Segments are split on commas and trimmed; empty segments are dropped and a
// missing segment means "do not filter on this dimension". City matching is
// exact after trimming and case folding. There is no fuzzy matching.
//
// # Region and country spellings
//
// Provider records, user input and geocoding APIs spell the same region in
// different ways ("TX" vs "Texas", "USA" vs "US" vs "United States"). Each
// known spelling maps to one canonical name, and each canonical name owns a
// [VariantSet] of all accepted spellings:
//
//	RegionVariants("tx")         -> {TX, Texas}
//	CountryVariants("USA")       -> {U.S., U.S.A., US, USA, United States, United States of America}
//	RegionVariants("Bavaria")    -> {Bavaria}     unknown, passed through
//
// Region abbreviations cover the 50 US states, DC and the 13 Canadian
// provinces and territories. "CA" is California as a region and Canada as a
// country; the two tables are independent.
//
// # Filters
//
// A [ProviderFilter] is one set of predicates. Nearby-city fallback builds one
// filter per candidate city and unions the results by provider id instead of
// composing a single query with many branches. [ProviderFilter.Matches] is the
// reference semantics for every store implementation.
package domain
