package providers

import (
	"context"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// ReportAnalyzer produces analysis text for a stored report.
// Implementations never fail: upstream errors degrade to placeholder text.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, report *entities.MedicalReport) entities.AnalysisResult
}
