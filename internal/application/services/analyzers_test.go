package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
)

func TestAIAnalyzer(t *testing.T) {
	report := &entities.MedicalReport{ID: "r1", Title: "Report_20240101_101010", ReportType: entities.ReportTypePDF, OriginalName: "cbc.pdf"}

	tests := []struct {
		name   string
		reply  string
		err    error
		source string
	}{
		{
			name:   "valid reply",
			reply:  "```json\n{\"analysis_text\":\"Looks fine\",\"health_tips\":\"1. Sleep\",\"yoga_suggestions\":\"1. Breathe\"}\n```",
			source: services.AnalysisSourceAI,
		},
		{name: "upstream failure", err: errors.New("status 503"), source: services.AnalysisSourcePlaceholder},
		{name: "not json", reply: "All good!", source: services.AnalysisSourcePlaceholder},
		{name: "missing field", reply: `{"analysis_text":"x","health_tips":"y"}`, source: services.AnalysisSourcePlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completion := new(MockCompletion)
			completion.On("Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
				return req.User != "" && req.System != ""
			})).Return(tt.reply, tt.err)

			result := services.NewAIAnalyzer(completion, time.Second).Analyze(context.Background(), report)
			assert.Equal(t, tt.source, result.Source)
			if tt.source == services.AnalysisSourcePlaceholder {
				assert.Equal(t, services.PlaceholderAnalysis(), result)
			} else {
				assert.Equal(t, "Looks fine", result.AnalysisText)
				assert.Equal(t, "1. Breathe", result.Suggestions)
			}
		})
	}
}

func TestStaticAnalyzer(t *testing.T) {
	result := services.StaticAnalyzer{}.Analyze(context.Background(), &entities.MedicalReport{})
	assert.Equal(t, services.AnalysisSourceStatic, result.Source)
	assert.Contains(t, result.HealthTips, "Get 7-8 hours of sleep each night")
	assert.Contains(t, result.Suggestions, "Surya Namaskar")
}
