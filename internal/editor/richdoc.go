package editor

import (
	"sort"
	"unicode/utf8"
)

type markSpan struct {
	mark string
	rng  Range
}

// RichDoc 内存中的富文本文档：纯文本内容加格式区间与临时装饰。
// 所有修改都通过 Subscribe 通知，非并发安全。
type RichDoc struct {
	runes       []rune
	sel         Range
	marks       []markSpan
	decorations map[string][]Range
	bounds      Rect
	style       TextStyle
	scroll      Point
	live        bool

	changes listenerSet[DocChange]
}

var (
	_ RichDocument   = (*RichDoc)(nil)
	_ DocumentSource = (*RichDoc)(nil)
)

// NewRichDoc 创建富文本文档
func NewRichDoc(text string, bounds Rect, style TextStyle) *RichDoc {
	runes := []rune(text)
	return &RichDoc{
		runes:       runes,
		sel:         Range{Start: len(runes), End: len(runes)},
		decorations: make(map[string][]Range),
		bounds:      bounds,
		style:       style,
		live:        true,
	}
}

func (d *RichDoc) Text() string        { return string(d.runes) }
func (d *RichDoc) Selection() Range    { return d.sel }
func (d *RichDoc) Bounds() Rect        { return d.bounds }
func (d *RichDoc) Style() TextStyle    { return d.style }
func (d *RichDoc) ScrollOffset() Point { return d.scroll }
func (d *RichDoc) Live() bool          { return d.live }

// FullDocument 实现 DocumentSource
func (d *RichDoc) FullDocument() (string, bool) { return string(d.runes), d.live }

// Destroy 销毁文档
func (d *RichDoc) Destroy() { d.live = false }

// Subscribe 订阅变更
func (d *RichDoc) Subscribe(f func(DocChange)) func() {
	return d.changes.add(f)
}

func (d *RichDoc) notify(kind ChangeKind) {
	d.changes.emit(DocChange{Kind: kind, Selection: d.sel})
}

// Select 设置选区
func (d *RichDoc) Select(r Range) {
	d.sel = r.Clamp(len(d.runes))
	d.notify(ChangeSelection)
}

// DeleteRange 删除 [Start, End)，格式与装饰随之收缩
func (d *RichDoc) DeleteRange(r Range) {
	r = r.Clamp(len(d.runes))
	if r.Empty() {
		return
	}
	d.runes = append(d.runes[:r.Start:r.Start], d.runes[r.End:]...)

	shift := func(p int) int {
		switch {
		case p <= r.Start:
			return p
		case p <= r.End:
			return r.Start
		default:
			return p - r.Len()
		}
	}
	d.marks = remapMarks(d.marks, shift)
	for class, ranges := range d.decorations {
		d.decorations[class] = remapRanges(ranges, shift)
	}
	d.sel = Range{Start: shift(d.sel.Start), End: shift(d.sel.End)}
	d.notify(ChangeContent)
}

// InsertText 在 at 处插入文本；插入点严格位于格式区间内部时新文本继承该格式
func (d *RichDoc) InsertText(at int, text string) {
	n := utf8.RuneCountInString(text)
	at = min(max(at, 0), len(d.runes))
	if n == 0 {
		return
	}
	tail := append([]rune(text), d.runes[at:]...)
	d.runes = append(d.runes[:at:at], tail...)

	for i := range d.marks {
		m := &d.marks[i].rng
		if m.Start >= at {
			m.Start += n
		}
		if m.End > at {
			m.End += n
		}
	}
	for class, ranges := range d.decorations {
		for i := range ranges {
			if ranges[i].Start >= at {
				ranges[i].Start += n
			}
			if ranges[i].End > at {
				ranges[i].End += n
			}
		}
		d.decorations[class] = ranges
	}
	if d.sel.Start >= at {
		d.sel.Start += n
	}
	if d.sel.End >= at {
		d.sel.End += n
	}
	d.notify(ChangeContent)
}

// ToggleMark 在当前选区上切换格式
func (d *RichDoc) ToggleMark(mark string) {
	r := d.sel
	if r.Empty() {
		return
	}
	if d.markCovers(mark, r) {
		var kept []markSpan
		for _, m := range d.marks {
			if m.mark != mark {
				kept = append(kept, m)
				continue
			}
			// 从已有区间中挖掉选区
			if m.rng.Start < r.Start {
				kept = append(kept, markSpan{mark: mark, rng: Range{Start: m.rng.Start, End: min(m.rng.End, r.Start)}})
			}
			if m.rng.End > r.End {
				kept = append(kept, markSpan{mark: mark, rng: Range{Start: max(m.rng.Start, r.End), End: m.rng.End}})
			}
		}
		d.marks = kept
	} else {
		d.marks = append(d.marks, markSpan{mark: mark, rng: r})
	}
	d.notify(ChangeMarks)
}

// ActiveMarks 选区完全被覆盖的格式；空选区看光标前一个字符
func (d *RichDoc) ActiveMarks() []string {
	r := d.sel
	if r.Empty() {
		if r.Start == 0 {
			return nil
		}
		r = Range{Start: r.Start - 1, End: r.Start}
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range d.marks {
		if seen[m.mark] {
			continue
		}
		if d.markCovers(m.mark, r) {
			seen[m.mark] = true
			out = append(out, m.mark)
		}
	}
	sort.Strings(out)
	return out
}

func (d *RichDoc) markCovers(mark string, r Range) bool {
	covered := make([]bool, r.Len())
	for _, m := range d.marks {
		if m.mark != mark {
			continue
		}
		for p := max(m.rng.Start, r.Start); p < min(m.rng.End, r.End); p++ {
			covered[p-r.Start] = true
		}
	}
	for _, c := range covered {
		if !c {
			return false
		}
	}
	return len(covered) > 0
}

// AddDecoration 添加临时装饰，不属于文档内容
func (d *RichDoc) AddDecoration(class string, r Range) {
	r = r.Clamp(len(d.runes))
	if r.Empty() {
		return
	}
	d.decorations[class] = append(d.decorations[class], r)
	d.notify(ChangeDecorations)
}

// ClearDecorations 清除某一类装饰
func (d *RichDoc) ClearDecorations(class string) {
	if len(d.decorations[class]) == 0 {
		return
	}
	delete(d.decorations, class)
	d.notify(ChangeDecorations)
}

// Decorations 某类装饰的副本
func (d *RichDoc) Decorations(class string) []Range {
	return append([]Range(nil), d.decorations[class]...)
}

func remapMarks(marks []markSpan, shift func(int) int) []markSpan {
	out := marks[:0]
	for _, m := range marks {
		m.rng = Range{Start: shift(m.rng.Start), End: shift(m.rng.End)}
		if !m.rng.Empty() {
			out = append(out, m)
		}
	}
	return out
}

func remapRanges(ranges []Range, shift func(int) int) []Range {
	out := ranges[:0]
	for _, r := range ranges {
		r = Range{Start: shift(r.Start), End: shift(r.End)}
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out
}
