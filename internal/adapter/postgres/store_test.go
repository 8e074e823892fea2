package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
)

var providerColumns = []string{
	"id", "company_name", "street_address", "city", "state", "country", "mobile_number",
	"second_mobile_number", "email", "source", "is_paid", "image", "services",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, observability.DiscardLogger()), mock
}

func TestStore_FindMatching_AllDimensions(t *testing.T) {
	store, mock := newMockStore(t)
	q := domain.NewLocationQuery("Dallas, TX, USA")
	f := q.Filter()

	rows := sqlmock.NewRows(providerColumns).
		AddRow(int64(1), "Acme Towing", "1 Main St", "Dallas", "Texas", "United States", "555-0100", "",
			"acme@example.com", "web", true, []byte{0x89, 'P', 'N', 'G'}, `{"Tire Repair",Towing}`).
		AddRow(int64(2), "Bob's Tires", "", "dallas", "tx", "US", "", "", "", "", false, nil, "{}")

	mock.ExpectQuery(`FROM customers c LEFT JOIN company_services cs .* WHERE c.city_key = \$1 AND c.state_key = ANY\(\$2\) AND c.country_key = ANY\(\$3\) GROUP BY c.id ORDER BY c.id`).
		WithArgs("dallas", pq.Array(f.Regions.Keys()), pq.Array(f.Countries.Keys())).
		WillReturnRows(rows)

	got, err := store.FindMatching(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Acme Towing", got[0].CompanyName)
	assert.Equal(t, "Texas", got[0].Region)
	assert.True(t, got[0].IsPaid)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got[0].Image)
	assert.Equal(t, []string{"Tire Repair", "Towing"}, got[0].ActiveServices)

	assert.Nil(t, got[1].Image)
	assert.Empty(t, got[1].ActiveServices)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindMatching_CityOnly(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE c.city_key = \$1 GROUP BY`).
		WithArgs("plano").
		WillReturnRows(sqlmock.NewRows(providerColumns))

	got, err := store.FindMatching(context.Background(), domain.NewLocationQuery("Plano").Filter())
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindMatching_ServiceFilter(t *testing.T) {
	store, mock := newMockStore(t)
	f := domain.NewLocationQuery("Dallas").Filter().WithService("Towing")

	mock.ExpectQuery(`WHERE c.city_key = \$1 AND EXISTS \(SELECT 1 FROM company_services fcs .* fs.name_key = \$2\)`).
		WithArgs("dallas", "towing").
		WillReturnRows(sqlmock.NewRows(providerColumns))

	_, err := store.FindMatching(context.Background(), f)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindMatching_QueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT c.id`).WillReturnError(errors.New("connection reset"))

	_, err := store.FindMatching(context.Background(), domain.NewLocationQuery("Dallas").Filter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query providers")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStore_CountMatching(t *testing.T) {
	store, mock := newMockStore(t)
	f := domain.NewLocationQuery("Dallas, TX").Filter()

	mock.ExpectQuery(`^SELECT count\(\*\) FROM customers c WHERE c.city_key = \$1 AND c.state_key = ANY\(\$2\)$`).
		WithArgs("dallas", pq.Array(f.Regions.Keys())).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.CountMatching(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CountMatching_EmptyFilterHasNoWhere(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`^SELECT count\(\*\) FROM customers c$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.CountMatching(context.Background(), domain.ProviderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindByID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE c.id = \$1 GROUP BY c.id`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(providerColumns).
			AddRow(int64(9), "Road Rescue", "", "Plano", "TX", "United States", "", "", "", "", false, nil, "{Towing}"))

	r, err := store.FindByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Road Rescue", r.CompanyName)
	assert.Equal(t, []string{"Towing"}, r.ActiveServices)
}

func TestStore_FindByID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE c.id = \$1`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(providerColumns))

	_, err := store.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestStore_Save_NewProvider(t *testing.T) {
	store, mock := newMockStore(t)
	r := &domain.ProviderRecord{
		CompanyName:    "Acme Towing",
		City:           "Dallas",
		Region:         "TX",
		Country:        "United States",
		ActiveServices: []string{"Towing", "Tire Repair"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO customers \(company_name,`).
		WithArgs("Acme Towing", "", "Dallas", "TX", "United States", "", "", "", "", false, sqlmock.AnyArg(),
			"dallas", "tx", "united states").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(`DELETE FROM company_services WHERE customer_id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO services`).WithArgs("Towing", "towing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO company_services`).WithArgs(int64(42), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO services`).WithArgs("Tire Repair", "tire repair").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectExec(`INSERT INTO company_services`).WithArgs(int64(42), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), r))
	assert.Equal(t, int64(42), r.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Save_ExistingProviderUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	r := &domain.ProviderRecord{ID: 7, CompanyName: "Road Rescue", IsPaid: true}

	mock.ExpectBegin()
	mock.ExpectQuery(`ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs("Road Rescue", "", "", "", "", "", "", "", "", true, sqlmock.AnyArg(), "", "", "", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`DELETE FROM company_services`).WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Save_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	r := &domain.ProviderRecord{ID: 7, CompanyName: "Road Rescue", ActiveServices: []string{"Towing"}}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO customers`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`DELETE FROM company_services`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO services`).
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `upsert service "Towing"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Migrate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS customers .* CREATE TABLE IF NOT EXISTS company_services`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE customers ADD COLUMN IF NOT EXISTS city_key .* UPDATE services SET name_key`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectPing().WillReturnError(errors.New("down"))

	require.Error(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWhereClause_Empty(t *testing.T) {
	where, args := whereClause(domain.ProviderFilter{})
	assert.Empty(t, where)
	assert.Nil(t, args)
}

// lower() in Postgres leaves ß alone while Fold maps it to ss, so the store
// must compare against keys folded in Go.
func TestStore_FilterAndSaveUseUnicodeFolding(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE c.city_key = \$1 AND EXISTS .* fs.name_key = \$2\)`).
		WithArgs("strasse", "strassendienst").
		WillReturnRows(sqlmock.NewRows(providerColumns))

	f := domain.NewLocationQuery("STRASSE").Filter().WithService("Straßendienst")
	_, err := store.FindMatching(context.Background(), f)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO customers \(company_name,`).
		WithArgs("Straßen Abschlepp", "", "Straße", "", "", "", "", "", "", false, sqlmock.AnyArg(), "strasse", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec(`DELETE FROM company_services`).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), &domain.ProviderRecord{CompanyName: "Straßen Abschlepp", City: "Straße"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
