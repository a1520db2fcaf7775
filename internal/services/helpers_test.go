package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/storage"
)

// scriptedGenerator 按顺序返回预设回复并记录收到的提示
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    map[int]error
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	if err, ok := g.errs[i]; ok {
		return "", err
	}
	if i >= len(g.replies) {
		return "", errors.New("unexpected model call")
	}
	return g.replies[i], nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *scriptedGenerator) prompt(i int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[i]
}

type recordingReporter struct {
	stages []models.ExtractionStage
}

func (r *recordingReporter) Stage(stage models.ExtractionStage, _ string) {
	r.stages = append(r.stages, stage)
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seed(t *testing.T, st storage.Store, docs map[string]map[string]interface{}) {
	t.Helper()
	b := storage.NewBatch()
	for key, data := range docs {
		var coll, id string
		_, err := fmt.Sscanf(key, "%s %s", &coll, &id)
		require.NoError(t, err)
		require.NoError(t, b.Set(coll, id, data))
	}
	require.NoError(t, st.Commit(context.Background(), b))
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%02d", n)
	}
}
