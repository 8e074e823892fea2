//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/couchcryptid/truck-provider-search/internal/adapter/memory"
	"github.com/couchcryptid/truck-provider-search/internal/adapter/postgres"
	"github.com/couchcryptid/truck-provider-search/internal/domain"
)

func startPostgres(ctx context.Context, t *testing.T) *postgres.Store {
	t.Helper()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("providers"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start postgres container")

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := postgres.Open(ctx, dsn, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrations are idempotent")
	return store
}

var fixtures = []domain.ProviderRecord{
	{CompanyName: "Acme Towing", City: "Dallas", Region: "TX", Country: "United States", IsPaid: true, ActiveServices: []string{"Towing", "Tire Repair"}},
	{CompanyName: "Lone Star Tires", City: " dallas ", Region: "Texas", Country: "USA", ActiveServices: []string{"Tire Repair"}},
	{CompanyName: "Peach Haul", City: "Dallas", Region: "GA", Country: "United States"},
	{CompanyName: "No Region", City: "Dallas", Country: "United States"},
	{CompanyName: "Maple Fix", City: "Toronto", Region: "ON", Country: "Canada", Image: []byte{0xFF, 0xD8, 0x01}},
	{CompanyName: "Straßen Hilfe", City: "Straße", Region: "ON", Country: "Canada", ActiveServices: []string{"Straßendienst"}},
}

// TestPostgresStore_MatchesMemoryStore checks that the SQL filters agree with
// ProviderFilter.Matches on the same data.
func TestPostgresStore_MatchesMemoryStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := startPostgres(ctx, t)
	mem := memory.NewStore()
	for _, f := range fixtures {
		r := f
		require.NoError(t, pg.Save(ctx, &r))
		m := f
		m.ID = r.ID
		require.NoError(t, mem.Save(ctx, &m))
	}

	queries := []struct {
		location string
		service  string
	}{
		{"Dallas, TX, United States", ""},
		{"DALLAS", ""},
		{"Dallas, Texas", ""},
		{"Dallas, GA", ""},
		{"Toronto, Ontario, CA", ""},
		{"Dallas, TX", "tire repair"},
		{"Houston, TX", ""},
		{"STRASSE", ""},
		{"strasse, ON", "STRASSENDIENST"},
	}
	for _, q := range queries {
		t.Run(q.location+"/"+q.service, func(t *testing.T) {
			f := domain.NewLocationQuery(q.location).Filter().WithService(q.service)

			want, err := mem.FindMatching(ctx, f)
			require.NoError(t, err)
			got, err := pg.FindMatching(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, ids(want), ids(got))

			n, err := pg.CountMatching(ctx, f)
			require.NoError(t, err)
			assert.Len(t, want, n)
		})
	}
}

func TestPostgresStore_SaveAndFindByID(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := startPostgres(ctx, t)

	r := fixtures[0]
	require.NoError(t, pg.Save(ctx, &r))
	require.NotZero(t, r.ID)

	got, err := pg.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Towing", got.CompanyName)
	assert.Equal(t, []string{"Tire Repair", "Towing"}, got.ActiveServices)

	r.ActiveServices = []string{"Fuel Delivery"}
	r.IsPaid = false
	require.NoError(t, pg.Save(ctx, &r))

	got, err = pg.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPaid)
	assert.Equal(t, []string{"Fuel Delivery"}, got.ActiveServices)

	_, err = pg.FindByID(ctx, r.ID+1000)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	require.NoError(t, pg.Ping(ctx))
}

func ids(rs []domain.ProviderRecord) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
