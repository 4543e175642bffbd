package llm

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpal/internal/domain"
)

func sampleRequest() domain.LLMRequest {
	temperature := 0.3
	return domain.LLMRequest{
		Model:       "test-model",
		Messages:    []domain.Message{{Role: "user", Content: "prompt text"}},
		MaxTokens:   256,
		Temperature: &temperature,
		TopP:        0.9,
	}
}

func zeroTemperatureRequest() domain.LLMRequest {
	req := sampleRequest()
	zero := 0.0
	req.Temperature = &zero
	return req
}

func TestClaudeProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		var body claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 256, body.MaxTokens)
		require.NotNil(t, body.Temperature)
		assert.InDelta(t, 0.3, *body.Temperature, 1e-9)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "prompt text", body.Messages[0].Content[0].Text)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hi there"},{"type":"text","text":"friend"}]}`))
	}))
	defer srv.Close()

	p := NewClaudeProvider(srv.Client(), srv.URL, "sk-test")
	resp, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "hi there\nfriend", resp.Content)
}

func TestClaudeProviderSendsZeroTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		temp, ok := body["temperature"]
		require.True(t, ok, "temperature must be sent")
		assert.EqualValues(t, 0, temp)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	_, err := NewClaudeProvider(srv.Client(), srv.URL, "sk-test").Complete(context.Background(), zeroTemperatureRequest())
	require.NoError(t, err)
}

func TestClaudeProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	_, err := NewClaudeProvider(srv.Client(), srv.URL, "sk-test").Complete(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.EqualValues(t, 256, body["max_tokens"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  hello  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.Client(), srv.URL+"/v1", "sk-test")
	resp, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "  hello  ", resp.Content)
}

func TestOpenAIProviderSendsZeroTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		temp, ok := body["temperature"].(float64)
		require.True(t, ok, "temperature must be sent")
		assert.Less(t, temp, 1e-6)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(srv.Client(), srv.URL+"/v1", "sk-test").Complete(context.Background(), zeroTemperatureRequest())
	require.NoError(t, err)
}

func TestOpenAITemperature(t *testing.T) {
	assert.Zero(t, openAITemperature(nil))
	zero, half := 0.0, 0.5
	assert.Equal(t, float32(math.SmallestNonzeroFloat32), openAITemperature(&zero))
	assert.Equal(t, float32(0.5), openAITemperature(&half))
}

func TestOpenAIProviderNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(srv.Client(), srv.URL+"/v1", "sk-test").Complete(context.Background(), sampleRequest())
	assert.Error(t, err)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: "mystery"})
	assert.Error(t, err)

	_, err = NewProvider(context.Background(), Config{Provider: "gemini"})
	assert.Error(t, err)
}
