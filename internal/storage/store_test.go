package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type beat struct {
	ChapterID string `json:"chapter_id"`
	Title     string `json:"title"`
	Order     int    `json:"order"`
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{}

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "docs"))
	require.NoError(t, err)
	stores["file"] = fs

	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "scribe.db"))
	require.NoError(t, err)
	stores["sqlite"] = sq

	if dsn := os.Getenv("SCRIBE_POSTGRES_DSN"); dsn != "" {
		pg, err := NewPostgresStore(dsn)
		require.NoError(t, err)
		stores["postgres"] = pg
	}

	for _, s := range stores {
		s := s
		t.Cleanup(func() { s.Close() })
	}
	return stores
}

func TestStoreContract(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			prefix := name + "-" + time.Now().Format("150405.000000")

			b := NewBatch()
			require.NoError(t, b.Set("chapterBeats", prefix+"b2", beat{ChapterID: prefix, Title: "second", Order: 2}))
			require.NoError(t, b.Set("chapterBeats", prefix+"b1", beat{ChapterID: prefix, Title: "first", Order: 1}))
			require.NoError(t, b.Set("chapterBeats", prefix+"b3", beat{ChapterID: prefix, Title: "tenth", Order: 10}))
			require.NoError(t, b.Set("chapterBeats", prefix+"x", beat{ChapterID: "other", Title: "elsewhere", Order: 0}))
			require.NoError(t, store.Commit(ctx, b))

			doc, err := store.Get(ctx, "chapterBeats", prefix+"b1")
			require.NoError(t, err)
			assert.Equal(t, "first", doc.Data["title"])
			assert.False(t, doc.CreatedAt.IsZero())
			assert.False(t, doc.UpdatedAt.IsZero())

			var decoded beat
			require.NoError(t, doc.Decode(&decoded))
			assert.Equal(t, beat{ChapterID: prefix, Title: "first", Order: 1}, decoded)

			ordered, err := store.QueryOrdered(ctx, "chapterBeats", "chapter_id", prefix, "order")
			require.NoError(t, err)
			require.Len(t, ordered, 3)
			assert.Equal(t, []string{prefix + "b1", prefix + "b2", prefix + "b3"}, ids(ordered))

			matched, err := store.Query(ctx, "chapterBeats", "chapter_id", "other")
			require.NoError(t, err)
			assert.Contains(t, ids(matched), prefix+"x")

			many, err := store.GetMany(ctx, "chapterBeats", []string{prefix + "b3", "missing", prefix + "b1"})
			require.NoError(t, err)
			assert.Equal(t, []string{prefix + "b3", prefix + "b1"}, ids(many))

			_, err = store.Get(ctx, "chapterBeats", "missing")
			assert.True(t, errors.Is(err, ErrNotFound))

			// 覆盖写保留 created_at
			b = NewBatch()
			require.NoError(t, b.Set("chapterBeats", prefix+"b1", beat{ChapterID: prefix, Title: "renamed", Order: 1}))
			require.NoError(t, b.Delete("chapterBeats", prefix+"x"))
			require.NoError(t, store.Commit(ctx, b))

			again, err := store.Get(ctx, "chapterBeats", prefix+"b1")
			require.NoError(t, err)
			assert.Equal(t, "renamed", again.Data["title"])
			assert.True(t, again.CreatedAt.Equal(doc.CreatedAt))
			assert.False(t, again.UpdatedAt.Before(doc.UpdatedAt))

			_, err = store.Get(ctx, "chapterBeats", prefix+"x")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestBatchRejectsBadKeys(t *testing.T) {
	b := NewBatch()
	assert.Error(t, b.Set("", "id", map[string]interface{}{}))
	assert.Error(t, b.Set("notes", "../escape", map[string]interface{}{}))
	assert.Error(t, b.Set("notes", "n1", "not an object"))
	assert.Zero(t, b.Len())
}

func TestBatchStripsReservedFields(t *testing.T) {
	b := NewBatch()
	require.NoError(t, b.Set("notes", "n1", map[string]interface{}{"id": "spoof", "created_at": "x", "content": "hi"}))
	assert.Equal(t, map[string]interface{}{"content": "hi"}, b.Ops()[0].Data)
}

func TestFileStoreCommitIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	b := NewBatch()
	require.NoError(t, b.Set("notes", "keep", map[string]interface{}{"v": 1}))
	require.NoError(t, fs.Commit(ctx, b))

	// 让 "blocked" 集合成为一个文件，使第二个写入无法创建目录
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocked"), []byte("x"), 0644))

	b = NewBatch()
	require.NoError(t, b.Set("notes", "keep", map[string]interface{}{"v": 2}))
	require.NoError(t, b.Set("blocked", "doc", map[string]interface{}{"v": 3}))
	assert.Error(t, fs.Commit(ctx, b))

	doc, err := fs.Get(ctx, "notes", "keep")
	require.NoError(t, err)
	assert.EqualValues(t, 1, doc.Data["v"])

	entries, err := os.ReadDir(filepath.Join(dir, "notes"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestFileStoreCacheInvalidatedOnWrite(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	b := NewBatch()
	require.NoError(t, b.Set("chapters", "c1", map[string]interface{}{"title": "One"}))
	require.NoError(t, fs.Commit(ctx, b))

	_, err = fs.Get(ctx, "chapters", "c1")
	require.NoError(t, err)

	b = NewBatch()
	require.NoError(t, b.Set("chapters", "c1", map[string]interface{}{"title": "Two"}))
	require.NoError(t, fs.Commit(ctx, b))

	doc, err := fs.Get(ctx, "chapters", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Two", doc.Data["title"])
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("sqlite", dir, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "scribe.db"))

	_, err = Open("mongo", dir, "")
	assert.Error(t, err)
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
