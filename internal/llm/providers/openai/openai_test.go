package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/llm"
)

func TestCompleteText(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"The city slept."},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`))
	}))
	defer srv.Close()

	p, err := llm.GetProvider("openai", map[string]string{"api_key": "test-key", "base_url": srv.URL, "default_model": "m1"})
	require.NoError(t, err)

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:       "expand",
		SystemPrompt: "you are an editor",
		Temperature:  0.7,
		JSONMode:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, "The city slept.", resp.Text)
	assert.Equal(t, 13, resp.TokensUsed)
	assert.Equal(t, "m1", resp.ModelName)
	assert.Equal(t, "OpenAI", resp.ProviderName)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "expand", got.Messages[1].Content)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
}

func TestCompleteTextErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Title") == "" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"choices":[]}`))
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := llm.GetProvider("openrouter", map[string]string{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	p, err = llm.GetProvider("openai", map[string]string{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestInitializeRequiresKey(t *testing.T) {
	_, err := llm.GetProvider("openai", map[string]string{})
	assert.Error(t, err)

	_, err = llm.GetProvider("nope", map[string]string{"api_key": "k"})
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
}
