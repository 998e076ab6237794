package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eswasthya/portal/backend/internal/adapters/database"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

func newMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return postgres.NewClientFromDB(db), mock
}

func TestReportAdapter_Create(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewReportAdapter(client)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "medical_reports"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Create(context.Background(), &entities.MedicalReport{
		ID:         "8d4a6a0e-6c1a-4b59-9d1a-0f7a3b0c2e11",
		Title:      "Report_20240501_101500",
		ReportType: entities.ReportTypePDF,
		FileKey:    "reports/20240501_101500_8d4a6a0e.pdf",
		FileURL:    "/media/reports/20240501_101500_8d4a6a0e.pdf",
		UploadedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestReportAdapter_CreateNil(t *testing.T) {
	client, _ := newMockClient(t)
	err := database.NewReportAdapter(client).Create(context.Background(), nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeInternal))
}

func TestReportAdapter_GetByID(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewReportAdapter(client)
	uploaded := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "title", "report_type", "file_key", "file_url", "thumbnail_key", "original_name", "size_bytes", "uploaded_at"}).
		AddRow("r1", "Report_20240501_101500", "image", "reports/a.png", "/media/reports/a.png", "thumbnails/a.jpg", "scan.png", int64(2048), uploaded)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "medical_reports" WHERE ("id" = 'r1')`)).WillReturnRows(rows)

	report, err := adapter.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, entities.ReportTypeImage, report.ReportType)
	assert.Equal(t, "thumbnails/a.jpg", report.ThumbnailKey)
	assert.Equal(t, int64(2048), report.SizeBytes)
	assert.Equal(t, uploaded, report.UploadedAt)
}

func TestReportAdapter_GetByIDNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewReportAdapter(client)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "medical_reports"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := adapter.GetByID(context.Background(), "missing")
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
	assert.Equal(t, "Report not found", appErr.Message)
}

func TestReportAdapter_Delete(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewReportAdapter(client)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "medical_reports" WHERE ("id" = 'r1')`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, adapter.Delete(context.Background(), "r1"))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "medical_reports"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := adapter.Delete(context.Background(), "r2")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
}

func TestReportAdapter_DatabaseErrorIsInternal(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewReportAdapter(client)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "medical_reports"`)).
		WillReturnError(errors.New("connection reset"))

	_, err := adapter.GetByID(context.Background(), "r1")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeInternal))
}
