// Command validate performs integrity checks on provider fixture files before
// they are seeded: field presence, region and country recognition, duplicate
// providers, service names, and whether each provider is reachable by a
// location search for its own city.
//
// Usage:
//
//	go run ./cmd/validate -file data/seed/providers.json
//	go run ./cmd/validate -file a.json -file b.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/fixture"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type fileList []string

func (f *fileList) String() string     { return strings.Join(*f, ",") }
func (f *fileList) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	var files fileList
	flag.Var(&files, "file", "JSON or CSV provider fixture (repeatable)")
	flag.Parse()

	if len(files) == 0 {
		files = fileList{"data/seed/providers.json"}
	}

	os.Exit(run(os.Stdout, files))
}

func run(out io.Writer, files []string) int {
	fmt.Fprintln(out, "=== Provider Fixture Validation ===")
	fmt.Fprintln(out)

	var records []domain.ProviderRecord
	for _, path := range files {
		recs, err := fixture.Load(path)
		if err != nil {
			fmt.Fprintf(out, "FATAL: load %s: %v\n", path, err)
			return 1
		}
		records = append(records, recs...)
	}

	phases := validate(records)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d from %d file(s)\n", len(records), len(files))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validate(records []domain.ProviderRecord) []*phase {
	return []*phase{
		validateFields(records),
		validateLocations(records),
		validateDuplicates(records),
		validateServices(records),
		validateSearchable(records),
	}
}

func validateFields(records []domain.ProviderRecord) *phase {
	p := &phase{name: "Phase 1: Required Fields"}
	for i, r := range records {
		if strings.TrimSpace(r.CompanyName) == "" {
			p.errorf("record %d: company_name is empty", i+1)
		}
		if strings.TrimSpace(r.City) == "" {
			p.errorf("record %d (%s): city is empty", i+1, r.CompanyName)
		}
		if strings.TrimSpace(r.Country) == "" {
			p.errorf("record %d (%s): country is empty", i+1, r.CompanyName)
		}
	}
	return p
}

func validateLocations(records []domain.ProviderRecord) *phase {
	p := &phase{name: "Phase 2: Region and Country"}
	for i, r := range records {
		// Unknown regions pass through as a single spelling.
		if r.Region != "" && domain.RegionVariants(r.Region).Len() < 2 {
			p.errorf("record %d (%s): region %q is not a known state or province", i+1, r.CompanyName, r.Region)
		}
		if r.Country != "" && !domain.IsSupportedCountry(r.Country) {
			p.errorf("record %d (%s): country %q is not served", i+1, r.CompanyName, r.Country)
		}
	}
	return p
}

func validateDuplicates(records []domain.ProviderRecord) *phase {
	p := &phase{name: "Phase 3: Duplicate Providers"}
	seen := make(map[string]int, len(records))
	for i, r := range records {
		key := domain.Fold(r.CompanyName) + "|" + domain.Fold(r.City) + "|" + domain.Fold(domain.CanonicalRegion(r.Region))
		if first, ok := seen[key]; ok {
			p.errorf("record %d (%s): duplicates record %d", i+1, r.CompanyName, first)
			continue
		}
		seen[key] = i + 1
	}
	return p
}

func validateServices(records []domain.ProviderRecord) *phase {
	p := &phase{name: "Phase 4: Service Names"}
	for i, r := range records {
		names := make(map[string]bool, len(r.ActiveServices))
		for _, s := range r.ActiveServices {
			key := domain.Fold(s)
			if key == "" {
				p.errorf("record %d (%s): blank service name", i+1, r.CompanyName)
				continue
			}
			if names[key] {
				p.errorf("record %d (%s): service %q listed twice", i+1, r.CompanyName, s)
			}
			names[key] = true
		}
	}
	return p
}

// validateSearchable checks that a "City, Region, Country" search built from
// canonical spellings finds each provider. Country is only appended after a
// region since the location parser is positional.
func validateSearchable(records []domain.ProviderRecord) *phase {
	p := &phase{name: "Phase 5: Reachable by Location Search"}
	for i, r := range records {
		if strings.TrimSpace(r.City) == "" {
			continue
		}
		text := r.City
		if region := domain.CanonicalRegion(r.Region); region != "" {
			text += ", " + region
			if country := domain.CanonicalCountry(r.Country); country != "" {
				text += ", " + country
			}
		}
		if !domain.NewLocationQuery(text).Filter().Matches(r) {
			p.errorf("record %d (%s): not found by search %q", i+1, r.CompanyName, text)
		}
	}
	return p
}
