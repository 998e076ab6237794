package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/openai"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
)

// Analysis sources stored with each ReportAnalysis
const (
	AnalysisSourceStatic      = "static"
	AnalysisSourceAI          = "ai"
	AnalysisSourcePlaceholder = "placeholder"
)

const staticAnalysisText = `Analysis Results:

1. Your overall health indicators are within normal range
2. Blood pressure and heart rate are stable
3. No significant abnormalities detected`

const staticHealthTips = `1. Maintain a balanced diet with plenty of fruits and vegetables
2. Exercise regularly (30 minutes daily)
3. Get 7-8 hours of sleep each night
4. Stay hydrated (8 glasses of water daily)
5. Practice stress management techniques`

const staticSuggestions = `1. Start with Surya Namaskar (Sun Salutation) - 5 rounds daily
2. Practice Pranayama (Breathing exercises) - 10 minutes
3. Include gentle stretches in your morning routine
4. Try meditation for 15 minutes daily
5. End your day with relaxation poses`

// Placeholder texts used when analysis fails
const (
	PlaceholderAnalysisText = "Error analyzing the report. Please try again."
	PlaceholderHealthTips   = "Unable to generate health tips at this time."
	PlaceholderSuggestions  = "Unable to generate yoga suggestions at this time."
)

// PlaceholderAnalysis is the result recorded when an analyzer cannot produce one
func PlaceholderAnalysis() entities.AnalysisResult {
	return entities.AnalysisResult{
		AnalysisText: PlaceholderAnalysisText,
		HealthTips:   PlaceholderHealthTips,
		Suggestions:  PlaceholderSuggestions,
		Source:       AnalysisSourcePlaceholder,
	}
}

// StaticAnalyzer returns the same analysis for every report. The file is not read.
type StaticAnalyzer struct{}

var _ providers.ReportAnalyzer = StaticAnalyzer{}

// Analyze implements ReportAnalyzer
func (StaticAnalyzer) Analyze(ctx context.Context, report *entities.MedicalReport) entities.AnalysisResult {
	return entities.AnalysisResult{
		AnalysisText: staticAnalysisText,
		HealthTips:   staticHealthTips,
		Suggestions:  staticSuggestions,
		Source:       AnalysisSourceStatic,
	}
}

const analyzerSystemPrompt = `You are a health assistant for the E-Swasthya+ platform. A patient uploaded a medical report.
You only see the report metadata, not its contents. Give general, conservative wellness guidance and
remind the patient to review the report with a doctor. Do not make diagnoses.

Respond with JSON only, using exactly this structure:
{
    "analysis_text": "...",
    "health_tips": "numbered list as one string",
    "yoga_suggestions": "numbered list as one string"
}`

type aiAnalysisPayload struct {
	AnalysisText    string `json:"analysis_text"`
	HealthTips      string `json:"health_tips"`
	YogaSuggestions string `json:"yoga_suggestions"`
}

// AIAnalyzer asks a completion provider for analysis text. Any failure,
// including a malformed reply, degrades to the placeholder texts.
type AIAnalyzer struct {
	completion providers.TextCompletionProvider
	timeout    time.Duration
}

var _ providers.ReportAnalyzer = (*AIAnalyzer)(nil)

// NewAIAnalyzer creates an analyzer; timeout bounds each completion call
func NewAIAnalyzer(completion providers.TextCompletionProvider, timeout time.Duration) *AIAnalyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AIAnalyzer{completion: completion, timeout: timeout}
}

// Analyze implements ReportAnalyzer
func (a *AIAnalyzer) Analyze(ctx context.Context, report *entities.MedicalReport) entities.AnalysisResult {
	logger := observability.LoggerFromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.completion.Complete(ctx, providers.CompletionRequest{
		System:      analyzerSystemPrompt,
		User:        describeReport(report),
		Temperature: 0.3,
		MaxTokens:   800,
	})
	if err != nil {
		logger.Error().Err(err).Str("report_id", report.ID).Msg("report analysis request failed")
		return PlaceholderAnalysis()
	}

	var payload aiAnalysisPayload
	if err := json.Unmarshal([]byte(openai.StripCodeFence(text)), &payload); err != nil {
		logger.Error().Err(err).Str("report_id", report.ID).Msg("report analysis reply is not valid JSON")
		return PlaceholderAnalysis()
	}
	if strings.TrimSpace(payload.AnalysisText) == "" || strings.TrimSpace(payload.HealthTips) == "" || strings.TrimSpace(payload.YogaSuggestions) == "" {
		logger.Error().Str("report_id", report.ID).Msg("report analysis reply is missing fields")
		return PlaceholderAnalysis()
	}

	return entities.AnalysisResult{
		AnalysisText: payload.AnalysisText,
		HealthTips:   payload.HealthTips,
		Suggestions:  payload.YogaSuggestions,
		Source:       AnalysisSourceAI,
	}
}

func describeReport(report *entities.MedicalReport) string {
	return fmt.Sprintf("Report title: %s\nReport type: %s\nOriginal file name: %s\nUploaded at: %s",
		report.Title, report.ReportType, report.OriginalName, report.UploadedAt.Format(time.RFC1123))
}
