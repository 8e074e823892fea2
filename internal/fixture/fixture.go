// Package fixture reads provider fixtures from JSON or CSV files.
package fixture

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

// Provider is the on-disk form of a provider. Image is base64 in JSON.
type Provider struct {
	ID                 int64    `json:"id,omitempty"`
	CompanyName        string   `json:"company_name"`
	StreetAddress      string   `json:"street_address,omitempty"`
	City               string   `json:"city"`
	State              string   `json:"state"`
	Country            string   `json:"country"`
	MobileNumber       string   `json:"mobile_number,omitempty"`
	SecondMobileNumber string   `json:"second_mobile_number,omitempty"`
	Email              string   `json:"email,omitempty"`
	Source             string   `json:"source,omitempty"`
	IsPaid             bool     `json:"is_paid"`
	Image              []byte   `json:"image,omitempty"`
	Services           []string `json:"services"`
}

// Record converts the fixture to a domain record with whitespace trimmed.
func (p Provider) Record() domain.ProviderRecord {
	return domain.ProviderRecord{
		ID:                 p.ID,
		CompanyName:        strings.TrimSpace(p.CompanyName),
		StreetAddress:      strings.TrimSpace(p.StreetAddress),
		City:               strings.TrimSpace(p.City),
		Region:             strings.TrimSpace(p.State),
		Country:            strings.TrimSpace(p.Country),
		MobileNumber:       strings.TrimSpace(p.MobileNumber),
		SecondMobileNumber: strings.TrimSpace(p.SecondMobileNumber),
		Email:              strings.TrimSpace(p.Email),
		Source:             strings.TrimSpace(p.Source),
		IsPaid:             p.IsPaid,
		Image:              p.Image,
		ActiveServices:     p.Services,
	}
}

// Load reads providers from path, choosing the format by extension. Every
// provider must have a company name.
func Load(path string) ([]domain.ProviderRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var providers []Provider
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.NewDecoder(f).Decode(&providers); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case ".csv":
		if providers, err = ReadCSV(f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported fixture format %q", filepath.Ext(path))
	}

	records := make([]domain.ProviderRecord, 0, len(providers))
	for i, p := range providers {
		if strings.TrimSpace(p.CompanyName) == "" {
			return nil, fmt.Errorf("fixture %d: company_name is required", i+1)
		}
		records = append(records, p.Record())
	}
	return records, nil
}

// ReadCSV parses a header row followed by one provider per row. Column names
// match the JSON field names; services are separated by semicolons.
func ReadCSV(r io.Reader) ([]Provider, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	out := make([]Provider, 0, len(rows)-1)
	for _, row := range rows[1:] {
		p := Provider{
			CompanyName:        get(row, colIdx, "company_name"),
			StreetAddress:      get(row, colIdx, "street_address"),
			City:               get(row, colIdx, "city"),
			State:              get(row, colIdx, "state"),
			Country:            get(row, colIdx, "country"),
			MobileNumber:       get(row, colIdx, "mobile_number"),
			SecondMobileNumber: get(row, colIdx, "second_mobile_number"),
			Email:              get(row, colIdx, "email"),
			Source:             get(row, colIdx, "source"),
		}
		if v := get(row, colIdx, "is_paid"); v != "" {
			if p.IsPaid, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("row %q: invalid is_paid %q", p.CompanyName, v)
			}
		}
		for _, s := range strings.Split(get(row, colIdx, "services"), ";") {
			if s = strings.TrimSpace(s); s != "" {
				p.Services = append(p.Services, s)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
