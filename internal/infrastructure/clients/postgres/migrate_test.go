package postgres

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS medical_reports")
	assert.Contains(t, migrations[0].SQL, "ON DELETE CASCADE")
}

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":  {Data: []byte("SELECT 10")},
		"m/002_second.sql": {Data: []byte("SELECT 2")},
		"m/readme.md":      {Data: []byte("docs")},
		"m/abc_bad.sql":    {Data: []byte("SELECT 0")},
	}

	migrations, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestMigrate_SkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()))

	count, err := NewClientFromDB(db).Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS medical_reports").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(1, "001_portal.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	count, err := NewClientFromDB(db).Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus_ReportsAppliedTime(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	appliedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, appliedAt))

	statuses, err := NewClientFromDB(db).Status(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	assert.Equal(t, "001_portal.sql", statuses[0].Name)
	assert.True(t, statuses[0].Applied)
	assert.Equal(t, appliedAt, statuses[0].AppliedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
