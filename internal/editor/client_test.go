package editor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *AIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAIClient(srv.URL+"/", "tok-123").WithHTTPClient(srv.Client())
}

func TestAIClientTransform(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ai/transform", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var req models.TransformationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.ActionExpand, req.Action)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.TransformationResponse{Success: true, TransformedText: "The city lay hushed."})
	})

	text, err := client.Transform(context.Background(), models.TransformationRequest{Text: "The city was quiet.", Action: models.ActionExpand})
	require.NoError(t, err)
	assert.Equal(t, "The city lay hushed.", text)
}

func TestAIClientErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"MODEL_FORMAT_ERROR","message":"模型返回的JSON无法解析"}}`))
	})

	_, err := client.Ingest(context.Background(), models.IngestRequest{Content: "note"})
	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusBadGateway, ce.Status)
	assert.Equal(t, "MODEL_FORMAT_ERROR", ce.Code)
	assert.Contains(t, ce.Error(), "502")
}

func TestAIClientGenerateAndContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/ai/generate":
			var req models.GenerationRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ch-1", req.ChapterID)
			_ = json.NewEncoder(w).Encode(models.GenerationResponse{GeneratedContent: `{"title":"Dawn","content":"The bells rang."}`})
		case "/api/chapters/ch-1/context":
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte(`{"success":true,"data":{"chapterId":"ch-1","context":"CHAPTER: One"}}`))
		default:
			http.NotFound(w, r)
		}
	})

	raw, err := client.Generate(context.Background(), models.GenerationRequest{Type: models.ContentBeat, ChapterID: "ch-1"})
	require.NoError(t, err)
	gc, ok := models.ParseGeneratedContent(raw)
	require.True(t, ok)
	assert.Equal(t, "Dawn", gc.Title)

	text, err := client.ChapterContext(context.Background(), "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "CHAPTER: One", text)

	_, err = client.ChapterContext(context.Background(), "missing")
	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusNotFound, ce.Status)
}

func TestAIClientUnsuccessfulTransform(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"transformedText":""}`))
	})
	_, err := client.Transform(context.Background(), models.TransformationRequest{Text: "x", Action: models.ActionRevise})
	assert.Error(t, err)
}
