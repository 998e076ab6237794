package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/pkg/config"
)

const defaultBaseURL = "https://api.openai.com/v1"

var (
	// ErrUnauthorized is returned when the API rejects the key
	ErrUnauthorized = errors.New("openai: unauthorized")
	// ErrEmptyResponse is returned when the reply carries no output text
	ErrEmptyResponse = errors.New("openai: response missing output text")
	// ErrNotConfigured is returned by Disabled
	ErrNotConfigured = errors.New("openai: api key not configured")
)

// Disabled stands in for the client when no API key is configured.
type Disabled struct{}

// Complete always fails with ErrNotConfigured
func (Disabled) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	return "", ErrNotConfigured
}

// Client is a text completion provider backed by the OpenAI Responses API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOutput struct {
	Content []responseContent `json:"content"`
}

type responseEnvelope struct {
	Output []responseOutput `json:"output"`
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestPayload struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	Temperature     float64        `json:"temperature,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
}

// Complete sends one system+user prompt and returns the first output text.
func (c *Client) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	if strings.TrimSpace(req.User) == "" {
		return "", errors.New("openai: user prompt is required")
	}

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordOpenAIMetric(ctx, c.model, 0, 0, err)
			return "", err
		}
		recordOpenAIRateLimitWait(ctx, c.model, time.Since(waitStart))
	}

	payload := requestPayload{
		Model:           c.model,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.System != "" {
		payload.Input = append(payload.Input, inputMessage{Role: "system", Content: req.System})
	}
	payload.Input = append(payload.Input, inputMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		recordOpenAIMetric(ctx, c.model, 0, time.Since(start), err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordOpenAIMetric(ctx, c.model, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
		}
		return "", fmt.Errorf("openai request failed with status %d", resp.StatusCode)
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordOpenAIMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return "", fmt.Errorf("decode openai response: %w", err)
	}

	text := firstOutputText(envelope)
	if strings.TrimSpace(text) == "" {
		recordOpenAIMetric(ctx, c.model, resp.StatusCode, time.Since(start), ErrEmptyResponse)
		return "", ErrEmptyResponse
	}

	recordOpenAIMetric(ctx, c.model, resp.StatusCode, time.Since(start), nil)
	return text, nil
}

func firstOutputText(envelope responseEnvelope) string {
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type == "output_text" && content.Text != "" {
				return content.Text
			}
		}
	}
	return ""
}

// StripCodeFence removes a surrounding markdown code block, if any.
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

// newTokenBucket returns nil (no limiting) for a negative rpm.
func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm < 0 {
		return nil
	}
	if rpm == 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type openAIMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	openaiMetricsOnce sync.Once
	openaiMetrics     *openAIMetrics
)

func ensureOpenAIMetrics() *openAIMetrics {
	openaiMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/eswasthya/portal/backend/openai")

		requestCount, err := meter.Int64Counter(
			"ai.openai.request.count",
			metric.WithDescription("Number of OpenAI requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.openai.request.duration",
			metric.WithDescription("OpenAI request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.openai.request.errors",
			metric.WithDescription("Number of OpenAI request errors"),
		)
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram(
			"ai.openai.rate_limit.wait",
			metric.WithDescription("Time spent waiting for OpenAI rate limiter in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}

		openaiMetrics = &openAIMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			rateLimitWait:   rateLimitWait,
		}
	})
	return openaiMetrics
}

func recordOpenAIMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordOpenAIRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}
