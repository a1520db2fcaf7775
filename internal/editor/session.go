package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// ErrEmptyResult 模型返回了空文本
var ErrEmptyResult = errors.New("editor: model returned empty text")

// Transformer 执行选区变换
type Transformer interface {
	Transform(ctx context.Context, req models.TransformationRequest) (string, error)
}

// ContentGenerator 在光标处生成新内容
type ContentGenerator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (string, error)
}

// ErrorReporter 接收变换或生成失败，用于向用户展示错误
type ErrorReporter func(op string, err error)

// Outcome 一次异步操作的结果
type Outcome struct {
	Kind      PopupKind
	Applied   bool
	Range     Range // 插入文本所在区间
	Text      string
	Generated models.GeneratedContent
	Err       error
}

// Config 引擎依赖
type Config struct {
	Surface     Surface
	Loop        *Loop
	Store       *PopupStore
	Scheduler   Scheduler // 为空时使用 Loop
	Transformer Transformer
	Generator   ContentGenerator
	Layer       OverlayLayer
	Viewport    Size
	Mirror      TextMeasurer
	OnError     ErrorReporter
	Timeout     time.Duration
}

// Engine 把选区追踪、弹窗协调、高亮与替换串成两条流程：
// 选区弹窗（expand/summarize/rephrase/revise）和光标弹窗（生成新内容）。
// 除 Close 外的方法只能在 Loop 协程上调用，网络响应会被投递回 Loop。
type Engine struct {
	surface Surface
	loop    *Loop
	store   *PopupStore

	tracker   *Tracker
	coord     *Coordinator
	highlight *Highlight

	transformer Transformer
	generator   ContentGenerator
	onError     ErrorReporter
	timeout     time.Duration

	// lifecycle 每次弹窗打开或关闭时递增，用于判断响应返回时弹窗是否仍是同一个
	lifecycle uint64
	caret     int

	inflight   sync.WaitGroup
	onComplete func(Outcome)
	unsub      func()
	closeOnce  sync.Once
}

// NewEngine 创建引擎
func NewEngine(cfg Config) *Engine {
	if cfg.Store == nil {
		cfg.Store = NewPopupStore()
	}
	var sched Scheduler = cfg.Loop
	if cfg.Scheduler != nil {
		sched = cfg.Scheduler
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.OnError == nil {
		cfg.OnError = func(op string, err error) {
			utils.GetLogger().Warn("AI操作失败", map[string]interface{}{
				"op":  op,
				"err": err,
			})
		}
	}

	e := &Engine{
		surface:     cfg.Surface,
		loop:        cfg.Loop,
		store:       cfg.Store,
		tracker:     NewTracker(cfg.Surface, cfg.Store, sched),
		coord:       NewCoordinator(cfg.Store, cfg.Viewport),
		highlight:   NewHighlight(cfg.Layer),
		transformer: cfg.Transformer,
		generator:   cfg.Generator,
		onError:     cfg.OnError,
		timeout:     cfg.Timeout,
	}
	if cfg.Mirror != nil {
		e.tracker.SetMirror(cfg.Mirror)
	}
	e.tracker.OnSelect(e.selected)
	e.tracker.OnClick(e.clicked)
	e.unsub = cfg.Store.Subscribe(e.stateChanged)
	return e
}

// Tracker 选区追踪器
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Coordinator 弹窗协调器
func (e *Engine) Coordinator() *Coordinator { return e.coord }

// Store 弹窗状态
func (e *Engine) Store() *PopupStore { return e.store }

// OnComplete 每个异步操作结束（无论成败）后在 Loop 上回调
func (e *Engine) OnComplete(f func(Outcome)) { e.onComplete = f }

// PointerDown 弹窗外且来源表面外的按下立即关闭弹窗，并且不开始新的选区
func (e *Engine) PointerDown(p Point) {
	if rect, open := e.coord.PopupRect(); open && rect.Contains(p) {
		return
	}
	if e.coord.PointerDown(p) {
		return
	}
	if e.surface.Bounds().Contains(p) {
		e.tracker.PointerDown(p)
	}
}

// PointerUp 交给选区追踪器
func (e *Engine) PointerUp(p Point) {
	e.tracker.PointerUp(p)
}

// SelectProgrammatic 宿主以程序方式改变选区后调用
func (e *Engine) SelectProgrammatic() {
	e.tracker.TrackProgrammatic()
}

// Dismiss 关闭当前弹窗（Esc 等）
func (e *Engine) Dismiss() {
	e.coord.Close()
}

func (e *Engine) selected(sel Selection) {
	// 选区弹窗已打开时再次选择不会改变状态，这里也算一次新的生命周期
	e.lifecycle++
	e.highlight.Show(e.surface, sel.Range)
	e.coord.Prepare(PopupScribe, sel.Candidate, sel.Origin)
}

func (e *Engine) clicked(p Point) {
	if !e.surface.Live() || !e.surface.Selection().Empty() {
		return
	}
	e.caret = e.surface.Selection().Start
	e.lifecycle++
	e.coord.Open(PopupWrite, p, e.surface.Bounds())
}

func (e *Engine) stateChanged(prev, next PopupKind) {
	e.lifecycle++
	if prev == PopupScribe {
		e.highlight.Clear()
		e.tracker.Forget()
	}
}

// Apply 对锁定的选区执行变换。弹窗关闭不会取消请求；
// 响应返回时只要表面仍然存活就按原偏移替换。
func (e *Engine) Apply(action models.TransformAction, instructions string) bool {
	sel, ok := e.tracker.Current()
	if !ok || e.store.Get() != PopupScribe || e.transformer == nil {
		return false
	}
	doc, _ := e.surface.(DocumentSource)
	req := BuildTransformRequest(sel.Text, action, instructions, doc)
	lifecycle := e.lifecycle

	e.spawn(func(ctx context.Context) func() {
		text, err := e.transformer.Transform(ctx, req)
		return func() { e.finishTransform(sel, lifecycle, text, err) }
	})
	return true
}

func (e *Engine) finishTransform(sel Selection, lifecycle uint64, text string, err error) {
	out := Outcome{Kind: PopupScribe, Err: err}
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResult
		out.Err = err
	}

	if err != nil {
		e.onError("transform", err)
	} else if r, ok := Replace(e.surface, sel.Range, text); ok {
		out.Applied, out.Range, out.Text = true, r, text
	} else {
		utils.GetLogger().Info("表面已销毁，丢弃变换结果", map[string]interface{}{
			"start": sel.Range.Start,
			"end":   sel.Range.End,
		})
	}

	// 只关闭发起请求的那个弹窗
	if lifecycle == e.lifecycle {
		e.coord.Close()
	}
	e.complete(out)
}

// Generate 在光标弹窗记录的位置生成并插入内容
func (e *Engine) Generate(kind models.ContentKind, chapterID, projectID string) error {
	if !kind.Valid() {
		return apperrors.NewValidationError("不支持的内容类型: "+string(kind), nil)
	}
	if strings.TrimSpace(chapterID) == "" {
		return apperrors.NewValidationError("chapterId不能为空", nil)
	}
	if e.store.Get() != PopupWrite || e.generator == nil {
		return apperrors.NewAppError(apperrors.ErrorTypeConflict, "光标弹窗未打开", nil)
	}

	req := models.GenerationRequest{
		Type:           kind,
		ChapterID:      chapterID,
		ProjectID:      projectID,
		CurrentContent: e.surface.Text(),
	}
	caret, lifecycle := e.caret, e.lifecycle

	e.spawn(func(ctx context.Context) func() {
		raw, err := e.generator.Generate(ctx, req)
		return func() { e.finishGenerate(kind, caret, lifecycle, raw, err) }
	})
	return nil
}

func (e *Engine) finishGenerate(kind models.ContentKind, caret int, lifecycle uint64, raw string, err error) {
	out := Outcome{Kind: PopupWrite, Err: err}

	text := raw
	if err == nil && kind.Structured() {
		out.Generated, _ = models.ParseGeneratedContent(raw)
		text = out.Generated.Content
	}
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResult
		out.Err = err
	}

	if err != nil {
		e.onError("generate", err)
	} else if r, ok := Insert(e.surface, caret, text); ok {
		out.Applied, out.Range, out.Text = true, r, text
	}

	if lifecycle == e.lifecycle {
		e.coord.Close()
	}
	e.complete(out)
}

// spawn 在独立协程中执行网络调用，结果回调投递回 Loop
func (e *Engine) spawn(call func(ctx context.Context) func()) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		e.loop.Post(call(ctx))
	}()
}

func (e *Engine) complete(out Outcome) {
	if e.onComplete != nil {
		e.onComplete(out)
	}
}

// Wait 等待所有在途请求返回（结果可能尚未在 Loop 上应用）
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// Close 等待在途请求并解除订阅。必须在 Loop 协程之外调用。
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.inflight.Wait()
		e.loop.Do(func() {
			e.unsub()
			e.coord.Stop()
			e.highlight.Clear()
		})
	})
}
