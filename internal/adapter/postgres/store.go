// Package postgres implements domain.ProviderStore on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const selectProviders = `SELECT c.id, c.company_name, COALESCE(c.street_address, ''), COALESCE(c.city, ''),
       COALESCE(c.state, ''), COALESCE(c.country, ''), COALESCE(c.mobile_number, ''),
       COALESCE(c.second_mobile_number, ''), COALESCE(c.email, ''), COALESCE(c.source, ''),
       c.is_paid, c.image,
       COALESCE(array_agg(s.name ORDER BY s.name) FILTER (WHERE s.is_active), '{}') AS services
FROM customers c
LEFT JOIN company_services cs ON cs.customer_id = c.id
LEFT JOIN services s ON s.id = cs.service_id`

// Store reads and writes providers in the customers, services and
// company_services tables.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database")
	return New(db, logger), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema files in name order. Every statement is
// idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		s.logger.Info("applied migration", "name", name)
	}
	return nil
}

// FindMatching returns every provider satisfying the filter, ordered by id.
func (s *Store) FindMatching(ctx context.Context, f domain.ProviderFilter) ([]domain.ProviderRecord, error) {
	where, args := whereClause(f)
	query := selectProviders + where + "\nGROUP BY c.id\nORDER BY c.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderRecord
	for rows.Next() {
		r, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return out, nil
}

// CountMatching returns the number of providers satisfying the filter.
func (s *Store) CountMatching(ctx context.Context, f domain.ProviderFilter) (int, error) {
	where, args := whereClause(f)

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM customers c"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count providers: %w", err)
	}
	return n, nil
}

// FindByID returns the provider with the given id.
func (s *Store) FindByID(ctx context.Context, id int64) (domain.ProviderRecord, error) {
	query := selectProviders + "\nWHERE c.id = $1\nGROUP BY c.id"

	r, err := scanProvider(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProviderRecord{}, domain.ErrProviderNotFound
	}
	return r, err
}

// Save inserts or updates a provider and replaces its service links.
func (s *Store) Save(ctx context.Context, r *domain.ProviderRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cols := []any{r.CompanyName, r.StreetAddress, r.City, r.Region, r.Country, r.MobileNumber,
		r.SecondMobileNumber, r.Email, r.Source, r.IsPaid, r.Image,
		domain.Fold(r.City), domain.Fold(r.Region), domain.Fold(r.Country)}

	if r.ID == 0 {
		err = tx.QueryRowContext(ctx, `INSERT INTO customers
    (company_name, street_address, city, state, country, mobile_number, second_mobile_number, email, source, is_paid, image,
     city_key, state_key, country_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id`, cols...).Scan(&r.ID)
	} else {
		err = tx.QueryRowContext(ctx, `INSERT INTO customers
    (id, company_name, street_address, city, state, country, mobile_number, second_mobile_number, email, source, is_paid, image,
     city_key, state_key, country_key)
VALUES ($15, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
    company_name = EXCLUDED.company_name, street_address = EXCLUDED.street_address,
    city = EXCLUDED.city, state = EXCLUDED.state, country = EXCLUDED.country,
    mobile_number = EXCLUDED.mobile_number, second_mobile_number = EXCLUDED.second_mobile_number,
    email = EXCLUDED.email, source = EXCLUDED.source, is_paid = EXCLUDED.is_paid, image = EXCLUDED.image,
    city_key = EXCLUDED.city_key, state_key = EXCLUDED.state_key, country_key = EXCLUDED.country_key
RETURNING id`, append(cols, r.ID)...).Scan(&r.ID)
	}
	if err != nil {
		return fmt.Errorf("upsert customer %q: %w", r.CompanyName, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM company_services WHERE customer_id = $1", r.ID); err != nil {
		return fmt.Errorf("clear services for customer %d: %w", r.ID, err)
	}

	for _, name := range r.ActiveServices {
		var serviceID int64
		if err := tx.QueryRowContext(ctx, `INSERT INTO services (name, name_key, is_active) VALUES ($1, $2, TRUE)
ON CONFLICT (name) DO UPDATE SET is_active = TRUE, name_key = EXCLUDED.name_key
RETURNING id`, name, domain.Fold(name)).Scan(&serviceID); err != nil {
			return fmt.Errorf("upsert service %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO company_services (customer_id, service_id) VALUES ($1, $2)", r.ID, serviceID); err != nil {
			return fmt.Errorf("link service %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("saved provider", "id", r.ID, "services", len(r.ActiveServices))
	return nil
}

// whereClause translates a filter to SQL with the same semantics as
// domain.ProviderFilter.Matches. It compares the *_key columns written by Save
// so both sides use the same Unicode case folding.
func whereClause(f domain.ProviderFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if city := domain.Fold(f.City); city != "" {
		add("c.city_key = $%d", city)
	}
	if !f.Regions.IsEmpty() {
		add("c.state_key = ANY($%d)", pq.Array(f.Regions.Keys()))
	}
	if !f.Countries.IsEmpty() {
		add("c.country_key = ANY($%d)", pq.Array(f.Countries.Keys()))
	}
	if f.Service != "" {
		add(`EXISTS (SELECT 1 FROM company_services fcs
    JOIN services fs ON fs.id = fcs.service_id
    WHERE fcs.customer_id = c.id AND fs.is_active AND fs.name_key = $%d)`, domain.Fold(f.Service))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (domain.ProviderRecord, error) {
	var (
		r        domain.ProviderRecord
		services pq.StringArray
	)
	err := row.Scan(&r.ID, &r.CompanyName, &r.StreetAddress, &r.City, &r.Region, &r.Country,
		&r.MobileNumber, &r.SecondMobileNumber, &r.Email, &r.Source, &r.IsPaid, &r.Image, &services)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("scan provider: %w", err)
	}
	r.ActiveServices = []string(services)
	return r, nil
}
