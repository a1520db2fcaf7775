package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Corphon/SceneScribe/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualScheduler 手动触发的 Scheduler
type manualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	delay     time.Duration
	f         func()
	cancelled bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, f: f}
	s.pending = append(s.pending, t)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.cancelled = true
	}
}

// Pending 未取消的计时器数量
func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Fire 执行所有未取消的计时器，返回执行数量
func (s *manualScheduler) Fire() int {
	s.mu.Lock()
	timers := s.pending
	s.pending = nil
	s.mu.Unlock()

	n := 0
	for _, t := range timers {
		if t.cancelled {
			continue
		}
		n++
		t.f()
	}
	return n
}

func testStyle() TextStyle {
	return TextStyle{
		FontFamily: "monospace",
		FontSize:   16,
		CharWidth:  10,
		LineHeight: 24,
		Padding:    Insets{Top: 8, Right: 8, Bottom: 8, Left: 8},
		TabSize:    4,
	}
}

// fakeTransformer 记录请求；gate 非空时等待放行
type fakeTransformer struct {
	mu   sync.Mutex
	reqs []models.TransformationRequest
	text string
	err  error
	gate chan struct{}
}

func (f *fakeTransformer) Transform(ctx context.Context, req models.TransformationRequest) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeTransformer) requests() []models.TransformationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TransformationRequest(nil), f.reqs...)
}

type fakeGenerator struct {
	mu    sync.Mutex
	reqs  []models.GenerationRequest
	reply string
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, req models.GenerationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

// recordTransitions 记录弹窗状态迁移
func recordTransitions(store *PopupStore) *[][2]PopupKind {
	var log [][2]PopupKind
	store.Subscribe(func(prev, next PopupKind) {
		log = append(log, [2]PopupKind{prev, next})
	})
	return &log
}
