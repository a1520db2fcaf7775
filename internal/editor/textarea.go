package editor

import "unicode/utf8"

// TextArea 内存中的纯文本输入框，非并发安全，只能在 Loop 协程上使用
type TextArea struct {
	value  string
	sel    Range
	bounds Rect
	style  TextStyle
	scroll Point
	live   bool

	input    listenerSet[string]
	scrolled listenerSet[Point]
}

var (
	_ PlainSurface   = (*TextArea)(nil)
	_ DocumentSource = (*TextArea)(nil)
)

// NewTextArea 创建输入框
func NewTextArea(value string, bounds Rect, style TextStyle) *TextArea {
	n := utf8.RuneCountInString(value)
	return &TextArea{
		value:  value,
		sel:    Range{Start: n, End: n},
		bounds: bounds,
		style:  style,
		live:   true,
	}
}

func (t *TextArea) Text() string        { return t.value }
func (t *TextArea) Selection() Range    { return t.sel }
func (t *TextArea) Bounds() Rect        { return t.bounds }
func (t *TextArea) Style() TextStyle    { return t.style }
func (t *TextArea) ScrollOffset() Point { return t.scroll }
func (t *TextArea) Live() bool          { return t.live }

// FullDocument 实现 DocumentSource
func (t *TextArea) FullDocument() (string, bool) { return t.value, t.live }

// SetValue 程序化赋值，不触发输入通知
func (t *TextArea) SetValue(value string) {
	t.value = value
	t.sel = t.sel.Clamp(utf8.RuneCountInString(value))
}

// SetCaret 折叠选区到 pos
func (t *TextArea) SetCaret(pos int) {
	t.sel = Range{Start: pos, End: pos}.Clamp(utf8.RuneCountInString(t.value))
}

// Select 设置选区，相当于用户拖选
func (t *TextArea) Select(r Range) {
	t.sel = r.Clamp(utf8.RuneCountInString(t.value))
}

// DispatchInput 通知输入监听器
func (t *TextArea) DispatchInput() {
	t.input.emit(t.value)
}

// OnInput 订阅输入事件（自动保存等下游监听器）
func (t *TextArea) OnInput(f func(value string)) func() {
	return t.input.add(f)
}

// OnScroll 订阅滚动
func (t *TextArea) OnScroll(f func(Point)) func() {
	return t.scrolled.add(f)
}

// ScrollTo 滚动内容并通知监听器
func (t *TextArea) ScrollTo(p Point) {
	t.scroll = p
	t.scrolled.emit(p)
}

// Type 模拟用户输入：替换选区并通知
func (t *TextArea) Type(text string) {
	runes := []rune(t.value)
	r := t.sel.Clamp(len(runes))
	t.value = string(runes[:r.Start]) + text + string(runes[r.End:])
	t.SetCaret(r.Start + utf8.RuneCountInString(text))
	t.DispatchInput()
}

// SetBounds 宿主布局变化
func (t *TextArea) SetBounds(r Rect) {
	t.bounds = r
}

// Destroy 销毁表面
func (t *TextArea) Destroy() {
	t.live = false
}

func (t *TextArea) scrollListeners() int { return t.scrolled.len() }
