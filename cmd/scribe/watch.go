package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Corphon/SceneScribe/internal/models"
)

// noteExtensions 被视为笔记的文件
var noteExtensions = map[string]bool{".md": true, ".txt": true}

// noteWatcher 监视目录，文件停止写入 debounce 之后调用 ingest
type noteWatcher struct {
	dir      string
	debounce time.Duration
	ingest   func(ctx context.Context, path, content string) error
	onError  func(path string, err error)

	pending map[string]time.Time
	ready   chan struct{}
}

func newNoteWatcher(dir string, debounce time.Duration, ingest func(ctx context.Context, path, content string) error) *noteWatcher {
	return &noteWatcher{
		dir:      dir,
		debounce: debounce,
		ingest:   ingest,
		onError:  func(string, error) {},
		pending:  make(map[string]time.Time),
		ready:    make(chan struct{}),
	}
}

// Run 阻塞直到 ctx 结束
func (w *noteWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	close(w.ready)

	tick := time.NewTicker(max(w.debounce/5, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.onError(w.dir, err)
		case now := <-tick.C:
			w.flush(ctx, now)
		}
	}
}

func (w *noteWatcher) handleEvent(event fsnotify.Event) {
	if !noteExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.pending[event.Name] = time.Now()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(w.pending, event.Name)
	}
}

// flush 摄取已经稳定的文件
func (w *noteWatcher) flush(ctx context.Context, now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, path)

		data, err := os.ReadFile(path)
		if err != nil {
			w.onError(path, err)
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		if err := w.ingest(ctx, path, content); err != nil {
			w.onError(path, err)
		}
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		projectID string
		debounce  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest .md and .txt notes from a directory whenever they are saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			client := opts.client()
			w := newNoteWatcher(args[0], debounce, func(ctx context.Context, path, content string) error {
				reqCtx, cancel := context.WithTimeout(ctx, opts.timeout)
				defer cancel()
				res, err := client.Ingest(reqCtx, models.IngestRequest{Content: content, ProjectID: projectID})
				if err != nil {
					return err
				}
				heading(out, filepath.Base(path))
				return printIngest(out, res, opts.jsonOut)
			})
			w.onError = func(path string, err error) {
				color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", filepath.Base(path), err)
			}

			fmt.Fprintf(out, "watching %s (Ctrl+C to stop)\n", args[0])
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is ingested")
	return cmd
}
