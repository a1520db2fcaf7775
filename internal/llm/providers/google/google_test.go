package google

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/llm"
)

func TestCompleteTextAgainstFakeGemini(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"category\":\"character\"}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 5, "totalTokenCount": 12}
		}`))
	}))
	defer srv.Close()

	p, err := llm.GetProvider("google", map[string]string{
		"api_key":       "test-key",
		"base_url":      srv.URL,
		"default_model": "gemini-test",
	})
	require.NoError(t, err)

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:       "classify this note",
		SystemPrompt: "return JSON",
		Temperature:  0.2,
		JSONMode:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"category":"character"}`, resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 12, resp.TokensUsed)
	assert.Contains(t, body, "classify this note")
	assert.Contains(t, body, "application/json")
}

func TestInitializeRequiresKey(t *testing.T) {
	_, err := llm.GetProvider("google", map[string]string{})
	assert.Error(t, err)
}
