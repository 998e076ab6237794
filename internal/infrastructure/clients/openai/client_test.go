package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.OpenAIConfig{
		APIKey:       "sk-test",
		Model:        "gpt-test",
		BaseURL:      server.URL,
		Timeout:      2 * time.Second,
		RateLimitRPM: -1,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(&config.OpenAIConfig{})
	assert.Error(t, err)
	_, err = NewClient(nil)
	assert.Error(t, err)
}

func TestComplete_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var payload requestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-test", payload.Model)
		require.Len(t, payload.Input, 2)
		assert.Equal(t, "system", payload.Input[0].Role)
		assert.Equal(t, "I have a headache", payload.Input[1].Content)

		_, _ = w.Write([]byte(`{"output":[{"content":[{"type":"reasoning","text":"skip"},{"type":"output_text","text":"Drink water and rest."}]}]}`))
	})

	text, err := client.Complete(context.Background(), providers.CompletionRequest{
		System: "You are a health assistant",
		User:   "I have a headache",
	})
	require.NoError(t, err)
	assert.Equal(t, "Drink water and rest.", text)
}

func TestComplete_OmitsEmptySystemPrompt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload requestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Input, 1)
		assert.Equal(t, "user", payload.Input[0].Role)
		_, _ = w.Write([]byte(`{"output":[{"content":[{"type":"output_text","text":"ok"}]}]}`))
	})

	_, err := client.Complete(context.Background(), providers.CompletionRequest{User: "hi"})
	require.NoError(t, err)
}

func TestComplete_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Complete(context.Background(), providers.CompletionRequest{User: "hi"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestComplete_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), providers.CompletionRequest{User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestComplete_EmptyOutput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[]}`))
	})

	_, err := client.Complete(context.Background(), providers.CompletionRequest{User: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComplete_RequiresUserPrompt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Complete(context.Background(), providers.CompletionRequest{User: "  "})
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence(`  {"a":1} `))
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	bucket := newTokenBucketWithRate(1, 1)
	require.NoError(t, bucket.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bucket.Wait(ctx), context.DeadlineExceeded)
}

func TestNewTokenBucket_Disabled(t *testing.T) {
	assert.Nil(t, newTokenBucket(-1, 5))
	assert.NotNil(t, newTokenBucket(0, 0))
}

func TestDisabled_AlwaysFails(t *testing.T) {
	_, err := Disabled{}.Complete(context.Background(), providers.CompletionRequest{User: "hello"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
