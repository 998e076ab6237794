package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/repositories"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const analysesTable = "report_analyses"

// AnalysisAdapter implements AnalysisRepository in Postgres
type AnalysisAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAnalysisAdapter creates a new analysis adapter
func NewAnalysisAdapter(client *postgres.Client) repositories.AnalysisRepository {
	return &AnalysisAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts the analysis of a report. A report has at most one.
func (a *AnalysisAdapter) Create(ctx context.Context, analysis *entities.ReportAnalysis) error {
	if analysis == nil {
		return apperrors.NewInternalError("analysis is nil", fmt.Errorf("analysis is nil"))
	}

	record := goqu.Record{
		"id":            analysis.ID,
		"report_id":     analysis.ReportID,
		"analysis_text": analysis.AnalysisText,
		"health_tips":   analysis.HealthTips,
		"suggestions":   analysis.Suggestions,
		"source":        analysis.Source,
		"created_at":    analysis.CreatedAt,
	}

	query, args, err := a.db.Insert(analysesTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build analysis insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("Analysis already exists for report")
		}
		return apperrors.NewInternalError("failed to create analysis", err)
	}
	return nil
}

// GetByReportID retrieves the analysis attached to a report
func (a *AnalysisAdapter) GetByReportID(ctx context.Context, reportID string) (*entities.ReportAnalysis, error) {
	query, args, err := a.db.From(analysesTable).
		Select("id", "report_id", "analysis_text", "health_tips", "suggestions", "source", "created_at").
		Where(goqu.C("report_id").Eq(reportID)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build analysis query", err)
	}

	analysis := &entities.ReportAnalysis{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&analysis.ID,
		&analysis.ReportID,
		&analysis.AnalysisText,
		&analysis.HealthTips,
		&analysis.Suggestions,
		&analysis.Source,
		&analysis.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Analysis not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get analysis", err)
	}
	return analysis, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
