package editor

import (
	"errors"
	"math"

	"github.com/mattn/go-runewidth"
)

// ErrNoLayout 表面没有可用的排版信息
var ErrNoLayout = errors.New("editor: surface has no usable text layout")

// TextMeasurer 计算区间在视口坐标中的外包框
type TextMeasurer interface {
	MeasureRange(s Surface, r Range) (Rect, error)
}

// EventMeasurer 直接使用指针抬起事件的坐标，准确且开销最小
type EventMeasurer struct {
	At Point
}

// MeasureRange 返回位于事件坐标的零尺寸矩形
func (m EventMeasurer) MeasureRange(Surface, Range) (Rect, error) {
	return Rect{X: m.At.X, Y: m.At.Y}, nil
}

// MirrorMeasurer 在内存中按 white-space: pre-wrap 规则重排表面文本并测量选区。
// 没有指针事件时（程序化选区）使用。
type MirrorMeasurer struct{}

// MeasureRange 实现 TextMeasurer
func (MirrorMeasurer) MeasureRange(s Surface, r Range) (Rect, error) {
	style := s.Style()
	bounds := s.Bounds()
	width := bounds.W - style.Padding.Left - style.Padding.Right
	if style.CharWidth <= 0 || style.LineHeight <= 0 || width <= 0 {
		return Rect{}, ErrNoLayout
	}

	runes := []rune(s.Text())
	layout := LayoutPreWrap(runes, style, width)
	rect := layout.RangeRect(r.Clamp(len(runes)))

	scroll := s.ScrollOffset()
	return rect.Offset(
		bounds.X+style.Padding.Left-scroll.X,
		bounds.Y+style.Padding.Top-scroll.Y,
	), nil
}

// LineBox 排版后的一行，[Start, End) 不含换行符
type LineBox struct {
	Start, End int
	Width      float64
}

// Layout pre-wrap 排版结果，坐标相对内容区左上角
type Layout struct {
	Lines []LineBox
	runes []rune
	style TextStyle
}

func isBreakableSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// advance 字符在 x 处的前进宽度；制表符对齐到下一个制表位
func advance(r rune, x float64, style TextStyle) float64 {
	if r == '\t' {
		tab := float64(max(style.TabSize, 1)) * style.CharWidth
		return tab - math.Mod(x, tab)
	}
	return float64(runewidth.RuneWidth(r)) * style.CharWidth
}

// LayoutPreWrap 按 pre-wrap 规则排版：保留空格与换行，在词边界软换行，
// 行尾空格悬挂不触发换行，超长单词按字符断开（overflow-wrap: break-word）。
func LayoutPreWrap(runes []rune, style TextStyle, maxWidth float64) Layout {
	l := Layout{runes: runes, style: style}
	start, x := 0, 0.0
	newLine := func(end int) {
		l.Lines = append(l.Lines, LineBox{Start: start, End: end, Width: x})
		start, x = end, 0
	}

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\n':
			newLine(i)
			start = i + 1
			i++
		case isBreakableSpace(r):
			x += advance(r, x, style)
			i++
		default:
			j := i
			word := 0.0
			for j < len(runes) && runes[j] != '\n' && !isBreakableSpace(runes[j]) {
				word += advance(runes[j], 0, style)
				j++
			}
			if x > 0 && x+word > maxWidth {
				newLine(i)
			}
			if word > maxWidth {
				for k := i; k < j; k++ {
					w := advance(runes[k], x, style)
					if x > 0 && x+w > maxWidth {
						newLine(k)
					}
					x += w
				}
			} else {
				x += word
			}
			i = j
		}
	}
	l.Lines = append(l.Lines, LineBox{Start: start, End: len(runes), Width: x})
	return l
}

// xAt 偏移 pos 在第 line 行中的横坐标
func (l Layout) xAt(line, pos int) float64 {
	box := l.Lines[line]
	x := 0.0
	for i := box.Start; i < pos && i < box.End; i++ {
		x += advance(l.runes[i], x, l.style)
	}
	return x
}

// lineOf 定位偏移所在的行。软换行边界上的偏移，作为区间起点属于下一行，作为终点属于上一行
func (l Layout) lineOf(pos int, asEnd bool) int {
	for i, box := range l.Lines {
		if pos < box.Start {
			continue
		}
		if pos < box.End {
			return i
		}
		if pos == box.End {
			wrapsHere := i+1 < len(l.Lines) && l.Lines[i+1].Start == pos
			if asEnd || !wrapsHere {
				return i
			}
		}
	}
	return len(l.Lines) - 1
}

// RangeRect 区间在内容区中的外包框；空区间返回光标矩形
func (l Layout) RangeRect(r Range) Rect {
	lh := l.style.LineHeight
	first := l.lineOf(r.Start, false)
	if r.Empty() {
		return Rect{X: l.xAt(first, r.Start), Y: float64(first) * lh, H: lh}
	}

	last := l.lineOf(r.End, true)
	if last < first {
		last = first
	}
	x0 := l.xAt(first, r.Start)
	if first == last {
		return Rect{X: x0, Y: float64(first) * lh, W: l.xAt(first, r.End) - x0, H: lh}
	}

	rect := Rect{X: x0, Y: float64(first) * lh, W: l.Lines[first].Width - x0, H: lh}
	for i := first + 1; i < last; i++ {
		rect = rect.Union(Rect{Y: float64(i) * lh, W: l.Lines[i].Width, H: lh})
	}
	return rect.Union(Rect{Y: float64(last) * lh, W: l.xAt(last, r.End), H: lh})
}

// OffsetAt 内容区坐标处最近的字符边界，越过行尾时落在行尾
func (l Layout) OffsetAt(p Point) int {
	if len(l.Lines) == 0 {
		return 0
	}
	line := 0
	if l.style.LineHeight > 0 && p.Y > 0 {
		line = min(int(p.Y/l.style.LineHeight), len(l.Lines)-1)
	}
	box := l.Lines[line]
	x := 0.0
	for i := box.Start; i < box.End; i++ {
		w := advance(l.runes[i], x, l.style)
		if p.X < x+w/2 {
			return i
		}
		x += w
	}
	return box.End
}

// OffsetFromPoint 视口坐标对应的文本偏移，相当于浏览器的 caretPositionFromPoint
func OffsetFromPoint(s Surface, p Point) (int, error) {
	style := s.Style()
	bounds := s.Bounds()
	width := bounds.W - style.Padding.Left - style.Padding.Right
	if style.CharWidth <= 0 || style.LineHeight <= 0 || width <= 0 {
		return 0, ErrNoLayout
	}
	scroll := s.ScrollOffset()
	layout := LayoutPreWrap([]rune(s.Text()), style, width)
	return layout.OffsetAt(Point{
		X: p.X - bounds.X - style.Padding.Left + scroll.X,
		Y: p.Y - bounds.Y - style.Padding.Top + scroll.Y,
	}), nil
}
