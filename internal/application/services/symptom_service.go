package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/openai"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const symptomSystemPrompt = `You are a medical symptom analysis AI. Your role is to:
1. Identify potential symptoms from user messages
2. Assess their severity (Low, Medium, High)
3. Suggest possible conditions
4. Recommend appropriate actions (self-care, doctor visit, emergency)

Format your response as a JSON with the following structure:
{
    "identified_symptoms": [{"symptom": "...", "severity": "..."}],
    "possible_conditions": ["condition1", "condition2"],
    "recommended_action": "...",
    "additional_notes": "..."
}

Important guidelines:
- Be thorough but conservative in your analysis
- Always recommend emergency care for severe symptoms
- Include clear disclaimers about seeking professional medical advice
- Do not make definitive diagnoses`

// SymptomService classifies a free-text message into a SymptomAnalysis
type SymptomService struct {
	completion providers.TextCompletionProvider
	timeout    time.Duration
}

// NewSymptomService creates a classifier; timeout bounds each completion call
func NewSymptomService(completion providers.TextCompletionProvider, timeout time.Duration) *SymptomService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SymptomService{completion: completion, timeout: timeout}
}

// Classify asks the completion backend for a structured analysis. The reply
// must decode into a complete SymptomAnalysis; nothing is repaired.
func (s *SymptomService) Classify(ctx context.Context, message string) (*entities.SymptomAnalysis, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.NewValidationError("Empty message provided")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.completion.Complete(ctx, providers.CompletionRequest{
		System:      symptomSystemPrompt,
		User:        "Analyze this message: " + message,
		Temperature: 0.2,
		MaxTokens:   600,
	})
	if err != nil {
		return nil, apperrors.FromUpstream("Failed to analyze symptoms", err)
	}

	return decodeSymptomAnalysis(ctx, text)
}

func decodeSymptomAnalysis(ctx context.Context, text string) (*entities.SymptomAnalysis, error) {
	logger := observability.LoggerFromContext(ctx)

	var analysis entities.SymptomAnalysis
	dec := json.NewDecoder(bytes.NewReader([]byte(openai.StripCodeFence(text))))
	if err := dec.Decode(&analysis); err != nil {
		logger.Error().Err(err).Str("reply", text).Msg("symptom analysis reply is not valid JSON")
		return nil, apperrors.NewMalformedResponseError("Invalid response format from AI", err)
	}
	if dec.More() {
		logger.Error().Str("reply", text).Msg("symptom analysis reply has trailing data")
		return nil, apperrors.NewMalformedResponseError("Invalid response format from AI", nil)
	}
	if err := validateStruct(analysis); err != nil {
		logger.Error().Err(err).Str("reply", text).Msg("symptom analysis reply is missing fields")
		return nil, apperrors.NewMalformedResponseError("Invalid analysis format from AI", err)
	}
	return &analysis, nil
}
