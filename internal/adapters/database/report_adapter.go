package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/repositories"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const reportsTable = "medical_reports"

var reportColumns = []interface{}{
	"id", "title", "report_type", "file_key", "file_url",
	"thumbnail_key", "original_name", "size_bytes", "uploaded_at",
}

// ReportAdapter implements ReportRepository in Postgres
type ReportAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReportAdapter creates a new report adapter
func NewReportAdapter(client *postgres.Client) repositories.ReportRepository {
	return &ReportAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a report row
func (a *ReportAdapter) Create(ctx context.Context, report *entities.MedicalReport) error {
	if report == nil {
		return apperrors.NewInternalError("report is nil", fmt.Errorf("report is nil"))
	}

	record := goqu.Record{
		"id":            report.ID,
		"title":         report.Title,
		"report_type":   string(report.ReportType),
		"file_key":      report.FileKey,
		"file_url":      report.FileURL,
		"thumbnail_key": report.ThumbnailKey,
		"original_name": report.OriginalName,
		"size_bytes":    report.SizeBytes,
		"uploaded_at":   report.UploadedAt,
	}

	query, args, err := a.db.Insert(reportsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build report insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create report", err)
	}
	return nil
}

// GetByID retrieves a report by ID
func (a *ReportAdapter) GetByID(ctx context.Context, id string) (*entities.MedicalReport, error) {
	query, args, err := a.db.From(reportsTable).
		Select(reportColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build report query", err)
	}

	report := &entities.MedicalReport{}
	var reportType string
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&report.ID,
		&report.Title,
		&reportType,
		&report.FileKey,
		&report.FileURL,
		&report.ThumbnailKey,
		&report.OriginalName,
		&report.SizeBytes,
		&report.UploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Report not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get report", err)
	}
	report.ReportType = entities.ReportType(reportType)
	return report, nil
}

// Delete removes a report; its analysis goes with it through the foreign key cascade
func (a *ReportAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(reportsTable).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build report delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete report", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("Report not found")
	}
	return nil
}
