package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbot/internal/domain"
	"medbot/internal/resilience"
)

func TestGenerate(t *testing.T) {
	t.Setenv("MEDBOT_TEST_OPENAI", "sk-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var in struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Temperature      float64 `json:"temperature"`
			MaxTokens        int     `json:"max_tokens"`
			FrequencyPenalty float64 `json:"frequency_penalty"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "gpt-4o-mini", in.Model)
		if assert.Len(t, in.Messages, 2) {
			assert.Equal(t, "system", in.Messages[0].Role)
			assert.Equal(t, "ctx", in.Messages[0].Content)
			assert.Equal(t, "user", in.Messages[1].Role)
			assert.Equal(t, "what is fever", in.Messages[1].Content)
		}
		assert.Equal(t, 256, in.MaxTokens)
		assert.InDelta(t, 0.2, in.FrequencyPenalty, 1e-9)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Fever is a high temperature."}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1/", APIKeyEnv: "MEDBOT_TEST_OPENAI"})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), domain.GenerationRequest{
		System: "ctx",
		User:   "what is fever",
		Params: domain.GenerationParams{MaxTokens: 256, RepetitionPenalty: 1.2},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fever is a high temperature.", out.Text)
	assert.Equal(t, "gpt-4o-mini", out.Model)
}

func TestGenerateBadRequestIsPermanent(t *testing.T) {
	t.Setenv("MEDBOT_TEST_OPENAI", "sk-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1/", APIKeyEnv: "MEDBOT_TEST_OPENAI"})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), domain.GenerationRequest{User: "x"})
	require.Error(t, err)
	assert.False(t, resilience.Retryable(err))
}
