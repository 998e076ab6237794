package repositories

import (
	"context"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// ReportRepository defines persistence for uploaded medical reports
type ReportRepository interface {
	Create(ctx context.Context, report *entities.MedicalReport) error
	GetByID(ctx context.Context, id string) (*entities.MedicalReport, error)
	// Delete removes the report and, by cascade, its analysis
	Delete(ctx context.Context, id string) error
}

// AnalysisRepository defines persistence for report analyses
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *entities.ReportAnalysis) error
	GetByReportID(ctx context.Context, reportID string) (*entities.ReportAnalysis, error)
}
