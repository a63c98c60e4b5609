package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ChatClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewChatClient(Config{APIKey: "test-key", BaseURL: srv.URL, MaxRetries: 1})
	require.NoError(t, err)
	return c
}

func TestNewChatClientRequiresKey(t *testing.T) {
	_, err := NewChatClient(Config{})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestCompleteSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "[]"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 2},
		})
	})

	resp, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "classify",
		UserPrompt:   "findings",
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Content)
	assert.Equal(t, 10, resp.PromptTokens)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestCompleteUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Complete(context.Background(), CompletionRequest{UserPrompt: "x"})
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := c.Complete(context.Background(), CompletionRequest{UserPrompt: "x"})
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

func TestCompleteAPIErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	})

	_, err := c.Complete(context.Background(), CompletionRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestFromEnvGitHubTokenFallback(t *testing.T) {
	t.Setenv("AUTHENT8_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("GITHUB_TOKEN", "ghp_x")

	cfg := FromEnv()
	assert.Equal(t, "ghp_x", cfg.APIKey)
	assert.Equal(t, githubModelsBaseURL, cfg.BaseURL)
}

func TestFromEnvDedicatedKeyWins(t *testing.T) {
	t.Setenv("AUTHENT8_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-a")
	t.Setenv("GITHUB_TOKEN", "ghp_x")
	t.Setenv("OPENAI_BASE_URL", "")

	cfg := FromEnv()
	assert.Equal(t, "sk-a", cfg.APIKey)
	assert.Empty(t, cfg.BaseURL)
}
