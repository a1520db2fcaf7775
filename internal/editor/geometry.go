package editor

// Point 屏幕坐标
type Point struct {
	X, Y float64
}

// Size 宽高
type Size struct {
	W, H float64
}

// Rect 轴对齐矩形
type Rect struct {
	X, Y, W, H float64
}

// Contains 点是否落在矩形内（含边界）
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Bottom 下边界
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Right 右边界
func (r Rect) Right() float64 { return r.X + r.W }

// Union 两个矩形的外包框
func (r Rect) Union(o Rect) Rect {
	x, y := min(r.X, o.X), min(r.Y, o.Y)
	return Rect{X: x, Y: y, W: max(r.Right(), o.Right()) - x, H: max(r.Bottom(), o.Bottom()) - y}
}

// Offset 平移
func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Range 纯文本投影中的 rune 偏移区间 [Start, End)
type Range struct {
	Start, End int
}

// Len 区间长度
func (r Range) Len() int { return r.End - r.Start }

// Empty 是否为空区间（仅光标）
func (r Range) Empty() bool { return r.Start == r.End }

// Normalize 保证 Start <= End
func (r Range) Normalize() Range {
	if r.Start > r.End {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

// Clamp 限制到 [0, length]，过期的偏移不会越界
func (r Range) Clamp(length int) Range {
	r = r.Normalize()
	r.Start = min(max(r.Start, 0), length)
	r.End = min(max(r.End, 0), length)
	return r
}

// Anchor 弹窗的最终位置
type Anchor struct {
	Top             float64
	Left            float64
	PositionedAbove bool
}
