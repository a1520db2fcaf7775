package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteWatcherIngestsSavedNotes(t *testing.T) {
	dir := t.TempDir()
	got := make(chan string, 4)
	w := newNoteWatcher(dir, 20*time.Millisecond, func(_ context.Context, path, content string) error {
		got <- filepath.Base(path) + ":" + content
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	select {
	case <-w.ready:
	case err := <-done:
		t.Fatalf("watcher stopped early: %v", err)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.png"), []byte("png"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("  \n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sarah.md"), []byte("Sarah grew up in Thornwood.\n"), 0644))

	select {
	case s := <-got:
		assert.Equal(t, "sarah.md:Sarah grew up in Thornwood.", s)
	case <-time.After(2 * time.Second):
		t.Fatal("note was not ingested")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, got)
}

func TestNoteWatcherMissingDir(t *testing.T) {
	w := newNoteWatcher(filepath.Join(t.TempDir(), "missing"), time.Millisecond, nil)
	assert.Error(t, w.Run(context.Background()))
}
