package editor

// Insets 内边距
type Insets struct {
	Top, Right, Bottom, Left float64
}

// TextStyle 表面的排版参数，镜像测量与覆盖层都依赖它与真实表面完全一致
type TextStyle struct {
	FontFamily string
	FontSize   float64
	CharWidth  float64 // 单个窄字符的前进宽度
	LineHeight float64
	Padding    Insets
	TabSize    int
}

// DefaultTextStyle 等宽字体下的默认排版
func DefaultTextStyle() TextStyle {
	return TextStyle{
		FontFamily: "monospace",
		FontSize:   16,
		CharWidth:  9.6,
		LineHeight: 24,
		Padding:    Insets{Top: 8, Right: 8, Bottom: 8, Left: 8},
		TabSize:    8,
	}
}

// Surface 可编辑表面的纯文本投影
type Surface interface {
	Text() string
	Selection() Range
	Bounds() Rect
	Style() TextStyle
	ScrollOffset() Point
	// Live 表面被销毁后返回 false，此后的替换都是空操作
	Live() bool
}

// PlainSurface 纯文本输入框
type PlainSurface interface {
	Surface
	SetValue(value string)
	SetCaret(pos int)
	// DispatchInput 通过正常的输入通知路径广播变更；程序化赋值不会自动通知
	DispatchInput()
	OnScroll(func(Point)) (unsubscribe func())
}

// ChangeKind 富文本文档的变更类型
type ChangeKind int

const (
	ChangeContent ChangeKind = iota
	ChangeSelection
	ChangeMarks
	ChangeDecorations
)

// DocChange 富文本文档变更通知
type DocChange struct {
	Kind      ChangeKind
	Selection Range
}

// RichDocument 富文本文档模型
type RichDocument interface {
	Surface
	DeleteRange(r Range)
	InsertText(at int, text string)
	Select(r Range)
	AddDecoration(class string, r Range)
	ClearDecorations(class string)
	Subscribe(func(DocChange)) (unsubscribe func())
	// ActiveMarks 当前选区上生效的格式
	ActiveMarks() []string
}

// DocumentSource 可以提供完整文档文本的宿主；标题栏等场景返回 false
type DocumentSource interface {
	FullDocument() (string, bool)
}

// listenerSet 保持注册顺序的回调集合
type listenerSet[T any] struct {
	next  int
	fns   map[int]func(T)
	order []int
}

func (s *listenerSet[T]) add(f func(T)) func() {
	if s.fns == nil {
		s.fns = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.fns[id] = f
	s.order = append(s.order, id)
	return func() {
		if _, ok := s.fns[id]; !ok {
			return
		}
		delete(s.fns, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *listenerSet[T]) emit(v T) {
	ids := append([]int(nil), s.order...)
	for _, id := range ids {
		if f, ok := s.fns[id]; ok {
			f(v)
		}
	}
}

func (s *listenerSet[T]) len() int { return len(s.fns) }
