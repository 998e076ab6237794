package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/openai"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const assistantSystemPrompt = `You are an AI Health Assistant for the E-Swasthya+ platform. Your role is to provide information about our healthcare services and features:

1. Medical Records Management:
   - Help users understand how to upload and manage medical reports
   - Explain the AI-powered report analysis feature
   - Guide users on viewing and organizing their health records

2. Family Health Dashboard:
   - Explain how to add and manage family members
   - Help track family members' health records
   - Provide guidance on family health monitoring

3. Emergency Services:
   - Guide users on using the SOS feature
   - Explain how to set up emergency contacts
   - Provide information about emergency response features

4. Hospital Finder:
   - Help users locate nearby hospitals
   - Explain how to use the hospital search feature
   - Provide guidance on emergency hospital services

5. Health Analysis:
   - Explain how our AI analyzes medical reports
   - Guide users on understanding health recommendations
   - Provide information about health tracking features

Important guidelines:
- Focus on explaining E-Swasthya+ features and services
- Provide clear step-by-step guidance when explaining features
- Maintain a helpful and professional tone
- Direct users to appropriate sections of the platform
- Recommend using emergency features when appropriate`

// SymptomClassifier turns a message into a structured symptom analysis
type SymptomClassifier interface {
	Classify(ctx context.Context, message string) (*entities.SymptomAnalysis, error)
}

// ChatResult is the assistant reply plus the classification used as context
type ChatResult struct {
	Response        string
	SymptomAnalysis *entities.SymptomAnalysis
}

// ChatService answers questions about the portal through a completion backend
type ChatService struct {
	completion providers.TextCompletionProvider
	classifier SymptomClassifier
	timeout    time.Duration
}

// NewChatService creates a chat service. classifier may be nil.
func NewChatService(completion providers.TextCompletionProvider, classifier SymptomClassifier, timeout time.Duration) *ChatService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatService{completion: completion, classifier: classifier, timeout: timeout}
}

// Process classifies the message, then answers it with the classification as
// context. A failed classification is logged and the chat continues without it.
func (s *ChatService) Process(ctx context.Context, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("Message cannot be empty")
	}
	logger := observability.LoggerFromContext(ctx)

	var analysis *entities.SymptomAnalysis
	if s.classifier != nil {
		a, err := s.classifier.Classify(ctx, message)
		if err != nil {
			logger.Warn().Err(err).Msg("symptom classification failed, continuing without context")
		} else {
			analysis = a
		}
	}

	response, err := s.Chat(ctx, message, analysis)
	if err != nil {
		return nil, err
	}
	return &ChatResult{Response: response, SymptomAnalysis: analysis}, nil
}

// Chat sends one message, optionally with symptom context, and returns the reply text
func (s *ChatService) Chat(ctx context.Context, message string, symptoms *entities.SymptomAnalysis) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", apperrors.NewValidationError("Message cannot be empty")
	}
	logger := observability.LoggerFromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.completion.Complete(ctx, providers.CompletionRequest{
		System:      assistantSystemPrompt,
		User:        buildChatPrompt(message, symptoms),
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		logger.Error().Err(err).Msg("chat completion failed")
		if errors.Is(err, openai.ErrEmptyResponse) {
			return "", apperrors.NewExternalError("Failed to generate response", err)
		}
		return "", apperrors.FromUpstream("Failed to generate response", err)
	}
	if strings.TrimSpace(text) == "" {
		logger.Error().Msg("empty response from completion backend")
		return "", apperrors.NewExternalError("Failed to generate response", openai.ErrEmptyResponse)
	}
	return text, nil
}

func buildChatPrompt(message string, symptoms *entities.SymptomAnalysis) string {
	var b strings.Builder
	if symptoms != nil {
		if encoded, err := json.MarshalIndent(symptoms, "", "  "); err == nil {
			b.WriteString("Context from symptom analysis:\n")
			b.Write(encoded)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("User question about E-Swasthya+: ")
	b.WriteString(message)
	b.WriteString("\n\nProvide a helpful response focusing on our platform's features and services.")
	return b.String()
}
