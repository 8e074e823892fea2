// Command seed applies the database schema and loads provider fixtures from a
// JSON or CSV file.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/seed -file data/seed/providers.json
//	DATABASE_URL=postgres://... go run ./cmd/seed -file providers.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/couchcryptid/truck-provider-search/internal/adapter/postgres"
	"github.com/couchcryptid/truck-provider-search/internal/config"
	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/fixture"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	file := flag.String("file", "data/seed/providers.json", "JSON or CSV provider fixture")
	migrateOnly := flag.Bool("migrate-only", false, "apply the schema without loading fixtures")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Printf("schema applied")
	if *migrateOnly {
		return nil
	}

	records, err := fixture.Load(*file)
	if err != nil {
		return fmt.Errorf("loading %s: %w", *file, err)
	}
	n, err := seed(ctx, store, records)
	if err != nil {
		return err
	}
	log.Printf("seeded %d providers from %s", n, *file)
	return nil
}

func seed(ctx context.Context, w domain.ProviderWriter, records []domain.ProviderRecord) (int, error) {
	for i := range records {
		if err := w.Save(ctx, &records[i]); err != nil {
			return i, fmt.Errorf("save %q: %w", records[i].CompanyName, err)
		}
	}
	return len(records), nil
}
