package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/maizeguard/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_AppendScan(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO scans`).
		WithArgs(pgxmock.AnyArg(), "grower-1", pgxmock.AnyArg(), pgxmock.AnyArg(),
			"Gray Leaf Spot", 0.93, pgxmock.AnyArg(), pgxmock.AnyArg(), "Moderate", "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := s.AppendScan(context.Background(), testScan("grower-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendScan_StorageFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO scans`).
		WithArgs(pgxmock.AnyArg(), "grower-1", pgxmock.AnyArg(), pgxmock.AnyArg(),
			"Gray Leaf Spot", 0.93, pgxmock.AnyArg(), pgxmock.AnyArg(), "Moderate", "").
		WillReturnError(eris.New("connection reset"))

	_, err := s.AppendScan(context.Background(), testScan("grower-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendScan_InvalidInputSkipsDB(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.AppendScan(context.Background(), model.ScanRecord{Label: "Healthy"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListScans_ByGrower(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	lat, lon := -1.29, 36.82
	weather := `{"temperature":24.5,"humidity":88}`
	rows := pgxmock.NewRows([]string{
		"id", "timestamp", "grower_id", "latitude", "longitude",
		"prediction", "confidence", "all_predictions", "weather", "disease_risk", "image_ref",
	}).AddRow(int64(2), now, "grower-1", &lat, &lon,
		"Common Rust", 0.81, `{"Common Rust":0.81}`, &weather, "High", (*string)(nil))

	mock.ExpectQuery(`SELECT .* FROM scans WHERE grower_id = \$1 ORDER BY timestamp DESC, id DESC LIMIT \$2`).
		WithArgs("grower-1", 10).
		WillReturnRows(rows)

	scans, err := s.ListScans(context.Background(), ScanFilter{GrowerID: "grower-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "Common Rust", scans[0].Label)
	assert.Equal(t, model.RiskHigh, scans[0].Risk)
	require.NotNil(t, scans[0].Weather)
	require.NotNil(t, scans[0].Weather.Temperature)
	assert.InDelta(t, 24.5, *scans[0].Weather.Temperature, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListScans_StorageFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM scans`).
		WithArgs(10).
		WillReturnError(eris.New("relation does not exist"))

	_, err := s.ListScans(context.Background(), ScanFilter{Limit: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveFarm_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(grower_id, farm_name\) DO UPDATE`).
		WithArgs("grower-1", "North Field", string(testBoundary), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveFarm(context.Background(), "grower-1", "North Field", testBoundary)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveFarm_StorageFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("grower-1", "North Field", string(testBoundary), pgxmock.AnyArg()).
		WillReturnError(eris.New("deadlock detected"))

	err := s.SaveFarm(context.Background(), "grower-1", "North Field", testBoundary)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFarms(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"grower_id", "farm_name", "boundary", "updated_at"}).
		AddRow("grower-1", "North Field", string(testBoundary), now).
		AddRow("grower-1", "South Field", string(testBoundary), now)

	mock.ExpectQuery(`SELECT grower_id, farm_name, boundary, updated_at FROM farms`).
		WithArgs("grower-1").
		WillReturnRows(rows)

	farms, err := s.ListFarms(context.Background(), "grower-1")
	require.NoError(t, err)
	require.Len(t, farms, 2)
	assert.Equal(t, "South Field", farms[1].FarmName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS scans`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
