package editor

import (
	"math"
	"strings"
	"time"

	"github.com/Corphon/SceneScribe/internal/utils"
)

const (
	// ClickThreshold 指针按下与抬起的位移在两个方向上都小于该值时视为点击
	ClickThreshold = 5.0
	// SettleDelay 拖选结束后等待宿主编辑器确定选区的时间
	SettleDelay = 10 * time.Millisecond
)

// Selection 一次弹窗生命周期内被锁定的选区
type Selection struct {
	Range     Range
	Text      string
	Candidate Point // 弹窗候选坐标：选区左下角或指针抬起位置
	Origin    Rect  // 发起选区的表面
}

// Tracker 把原始指针事件转换为经过校验的选区。只能在 Loop 协程上使用。
type Tracker struct {
	surface Surface
	store   *PopupStore
	sched   Scheduler
	mirror  TextMeasurer
	settle  time.Duration

	down     Point
	hasDown  bool
	current  *Selection
	cancelFn func()

	onSelect func(Selection)
	onClick  func(Point)
}

// NewTracker 创建选区追踪器
func NewTracker(surface Surface, store *PopupStore, sched Scheduler) *Tracker {
	return &Tracker{
		surface: surface,
		store:   store,
		sched:   sched,
		mirror:  MirrorMeasurer{},
		settle:  SettleDelay,
	}
}

// SetMirror 替换程序化选区使用的测量器
func (t *Tracker) SetMirror(m TextMeasurer) { t.mirror = m }

// OnSelect 选区确认后、弹窗状态切换前调用
func (t *Tracker) OnSelect(f func(Selection)) { t.onSelect = f }

// OnClick 指针点击（未拖动）时调用
func (t *Tracker) OnClick(f func(Point)) { t.onClick = f }

// Current 当前锁定的选区
func (t *Tracker) Current() (Selection, bool) {
	if t.current == nil {
		return Selection{}, false
	}
	return *t.current, true
}

// PointerDown 记录按下位置
func (t *Tracker) PointerDown(p Point) {
	t.down = p
	t.hasDown = true
}

// PointerUp 区分点击与拖选；拖选在稳定延迟后读取选区
func (t *Tracker) PointerUp(p Point) {
	if !t.hasDown {
		return
	}
	t.hasDown = false
	t.cancelPending()

	if math.Abs(p.X-t.down.X) < ClickThreshold && math.Abs(p.Y-t.down.Y) < ClickThreshold {
		t.Clear()
		if t.onClick != nil {
			t.onClick(p)
		}
		return
	}

	measurer := EventMeasurer{At: p}
	t.cancelFn = t.sched.AfterFunc(t.settle, func() {
		t.cancelFn = nil
		t.capture(measurer)
	})
}

// TrackProgrammatic 处理没有指针事件的选区（快捷键、全选等），锚点通过镜像测量得到
func (t *Tracker) TrackProgrammatic() {
	t.cancelPending()
	t.capture(t.mirror)
}

// Clear 丢弃选区；若选区弹窗处于激活状态则关闭它
func (t *Tracker) Clear() {
	t.current = nil
	if t.store.Get() == PopupScribe {
		t.store.Set(PopupNone)
	}
}

// Forget 只丢弃选区，不改变弹窗状态
func (t *Tracker) Forget() {
	t.cancelPending()
	t.current = nil
}

func (t *Tracker) cancelPending() {
	if t.cancelFn != nil {
		t.cancelFn()
		t.cancelFn = nil
	}
}

func (t *Tracker) capture(m TextMeasurer) {
	if !t.surface.Live() {
		t.current = nil
		return
	}

	runes := []rune(t.surface.Text())
	r := t.surface.Selection().Clamp(len(runes))
	text := string(runes[r.Start:r.End])
	if strings.TrimSpace(text) == "" {
		t.Clear()
		return
	}

	rect, err := m.MeasureRange(t.surface, r)
	if err != nil {
		// 测量失败时退回到表面左上角
		utils.GetLogger().Warn("选区测量失败", map[string]interface{}{
			"start": r.Start,
			"end":   r.End,
			"err":   err,
		})
		b := t.surface.Bounds()
		rect = Rect{X: b.X, Y: b.Y}
	}

	sel := Selection{
		Range:     r,
		Text:      text,
		Candidate: Point{X: rect.X, Y: rect.Bottom()},
		Origin:    t.surface.Bounds(),
	}
	t.current = &sel
	if t.onSelect != nil {
		t.onSelect(sel)
	}
	t.store.Set(PopupScribe)
}
