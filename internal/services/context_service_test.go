package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/storage"
)

func seedChapter(t *testing.T, st storage.Store) {
	seed(t, st, map[string]map[string]interface{}{
		"chapters ch1": {"title": "The Mill", "content": "one two three four five six", "order": 1},
		"chapters ch2": {"title": "Empty", "content": ""},

		"characters c-zed":  {"name": "Zed", "description": "A drifter", "relationships": []interface{}{map[string]interface{}{"source": "Zed", "target": "Anna", "type": "rival"}}},
		"characters c-anna": {"name": "Anna", "personality": "stubborn"},
		"locations l1":      {"name": "Thornwood", "type": "village", "features": []interface{}{"mill", "river"}},
		"events e1":         {"name": "The Flood", "events": []interface{}{"rain", "collapse"}},

		"chapterEntityConnections k1": {"chapter_id": "ch1", "entity_id": "c-zed", "entity_kind": "character"},
		"chapterEntityConnections k2": {"chapter_id": "ch1", "entity_id": "c-anna", "entity_kind": "character"},
		"chapterEntityConnections k3": {"chapter_id": "ch1", "entity_id": "c-anna", "entity_kind": "character"},
		"chapterEntityConnections k4": {"chapter_id": "ch1", "entity_id": "l1", "entity_kind": "setting"},
		"chapterEntityConnections k5": {"chapter_id": "ch1", "entity_id": "e1", "entity_kind": "plotPoint"},
		"chapterEntityConnections k6": {"chapter_id": "ch1", "entity_id": "gone", "entity_kind": "character"},
		"chapterEntityConnections k7": {"chapter_id": "ch1", "entity_id": "x", "entity_kind": "weapon"},
		"chapterEntityConnections k8": {"chapter_id": "ch2", "entity_id": "c-zed", "entity_kind": "character"},

		"chapterBeats b2": {"chapter_id": "ch1", "title": "Second", "content": "the river rises fast tonight", "order": 2},
		"chapterBeats b1": {"chapter_id": "ch1", "title": "First", "content": "rain", "order": 1},
		"chapterNotes n2": {"chapter_id": "ch1", "title": "Later", "content": "check the dam"},
		"chapterNotes n1": {"chapter_id": "ch1", "title": "Earlier", "content": "Anna lies"},
	})
}

func TestAssembleContext(t *testing.T) {
	st := newTestStore(t)
	seedChapter(t, st)
	svc := NewContextService(st, 4, 3)

	cc, err := svc.Assemble(context.Background(), "ch1")
	require.NoError(t, err)

	assert.Equal(t, "one two three four...", cc.ChapterText)
	require.Len(t, cc.Characters, 2)
	assert.Equal(t, "Anna", cc.Characters[0].Name)
	assert.Equal(t, "Zed", cc.Characters[1].Name)
	require.Len(t, cc.Settings, 1)
	require.Len(t, cc.PlotPoints, 1)
	require.Len(t, cc.Beats, 2)
	assert.Equal(t, "First", cc.Beats[0].Title)
	assert.Equal(t, "the river rises...", cc.Beats[1].Content)
	require.Len(t, cc.Notes, 2)
	assert.Equal(t, "n1", cc.Notes[0].ID)

	text := cc.Render()
	order := []string{"CHAPTER: The Mill", "CHARACTERS:", "SETTINGS:", "PLOT POINTS:", "BEATS:", "NOTES:"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(text, marker)
		require.Greater(t, idx, last, marker)
		last = idx
	}
	assert.Contains(t, text, "- Name: Anna\n  Description: None specified\n  Personality: stubborn")
	assert.Contains(t, text, "  Relationships: Anna (rival)")
	assert.Contains(t, text, "  Features: mill, river")
	assert.Contains(t, text, "  Events: rain; collapse")
	assert.Contains(t, text, "1. First: rain\n2. Second: the river rises...")
	assert.Contains(t, text, "- Earlier: Anna lies\n- Later: check the dam")
}

func TestAssembleContextIsDeterministic(t *testing.T) {
	st := newTestStore(t)
	seedChapter(t, st)
	svc := NewContextService(st, 0, 0)

	first, err := svc.AssembleText(context.Background(), "ch1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.AssembleText(context.Background(), "ch1")
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("context changed between runs (-first +again):\n%s", diff)
		}
	}
}

func TestAssembleContextEmptySections(t *testing.T) {
	st := newTestStore(t)
	seedChapter(t, st)

	text, err := NewContextService(st, 0, 0).AssembleText(context.Background(), "ch2")
	require.NoError(t, err)

	assert.Contains(t, text, "CHAPTER: Empty\nNone specified")
	for _, title := range []string{"SETTINGS:", "PLOT POINTS:", "BEATS:", "NOTES:"} {
		assert.Contains(t, text, title+"\n"+NoneSpecified)
	}
	assert.Contains(t, text, "- Name: Zed")
}

func TestAssembleContextErrors(t *testing.T) {
	svc := NewContextService(newTestStore(t), 0, 0)

	_, err := svc.Assemble(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFoundError(err))

	_, err = svc.Assemble(context.Background(), " ")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "a b", truncateWords("  a b  ", 2))
	assert.Equal(t, "a b...", truncateWords("a b c", 2))
	assert.Equal(t, "a  b c", truncateWords("a  b c", 0))
}
