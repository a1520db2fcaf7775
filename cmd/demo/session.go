package main

import (
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/Corphon/SceneScribe/internal/editor"
	"github.com/Corphon/SceneScribe/internal/models"
)

// 终端中每个字符格对应的虚拟像素尺寸，拖动一格即超过点击阈值
const (
	cellW = 8.0
	cellH = 16.0

	headerRows = 2
	footerRows = 3

	scribeCols, scribeRows = 46, 7
	writeCols, writeRows   = 40, 6
)

type cellClass uint8

const (
	classPlain cellClass = iota
	classSelected
	classHighlighted
	classCaret
	classTitle
	classHelper
	classStatus
	classError
)

type cell struct {
	r     rune // 0 表示宽字符的后半格
	class cellClass
}

// frame 一次渲染所需的编辑器状态快照，在 Loop 上生成
type frame struct {
	rows   [][]cell
	popup  editor.PopupKind
	anchor editor.Anchor
	chars  int
	edits  int
}

type outcomeMsg editor.Outcome

type redrawMsg struct{}

// session 持有只能在 Loop 协程上访问的编辑器对象
type session struct {
	loop   *editor.Loop
	area   *editor.TextArea
	layer  *editor.MemoryLayer
	engine *editor.Engine
	events chan tea.Msg

	chapterID string
	projectID string

	dragging  bool
	dragFrom  int
	edits     int
	unsubEdit func()
}

func cellStyle() editor.TextStyle {
	return editor.TextStyle{
		FontFamily: "monospace",
		CharWidth:  cellW,
		LineHeight: cellH,
		TabSize:    4,
	}
}

func textBounds(width, height int) editor.Rect {
	rows := max(height-headerRows-footerRows, 1)
	return editor.Rect{Y: headerRows * cellH, W: float64(max(width, 1)) * cellW, H: float64(rows) * cellH}
}

func viewport(width, height int) editor.Size {
	return editor.Size{W: float64(width) * cellW, H: float64(height) * cellH}
}

// pointAt 字符格左缘中线，命中测试落在该格字符之前
func pointAt(col, row int) editor.Point {
	return editor.Point{X: float64(col) * cellW, Y: float64(row)*cellH + cellH/2}
}

func newSession(text string, ai aiBackend, chapterID, projectID string) *session {
	s := &session{
		loop:      editor.NewLoop(),
		layer:     &editor.MemoryLayer{},
		events:    make(chan tea.Msg, 64),
		chapterID: chapterID,
		projectID: projectID,
	}
	s.loop.Do(func() {
		s.area = editor.NewTextArea(text, textBounds(80, 24), cellStyle())
		s.engine = editor.NewEngine(editor.Config{
			Surface:     s.area,
			Loop:        s.loop,
			Transformer: ai,
			Generator:   ai,
			Layer:       s.layer,
			Viewport:    viewport(80, 24),
			Mirror:      editor.MirrorMeasurer{},
		})
		coord := s.engine.Coordinator()
		coord.SetPopupSize(editor.PopupScribe, editor.Size{W: scribeCols * cellW, H: scribeRows * cellH})
		coord.SetPopupSize(editor.PopupWrite, editor.Size{W: writeCols * cellW, H: writeRows * cellH})
		// 选区在稳定延迟之后才弹出，需要主动通知界面重绘
		coord.OnPlace(func(editor.PopupKind, editor.Anchor) { s.emit(redrawMsg{}) })
		s.engine.OnComplete(func(o editor.Outcome) { s.emit(outcomeMsg(o)) })
		s.unsubEdit = s.area.OnInput(func(string) { s.edits++ })
	})
	return s
}

func (s *session) emit(msg tea.Msg) {
	select {
	case s.events <- msg:
	default:
	}
}

// next 等待下一个来自 Loop 的事件
func (s *session) next() tea.Cmd {
	return func() tea.Msg {
		return <-s.events
	}
}

func (s *session) do(f func()) {
	s.loop.Do(f)
}

func (s *session) resize(width, height int) {
	s.do(func() {
		s.area.SetBounds(textBounds(width, height))
		s.engine.Coordinator().ViewportChanged(viewport(width, height))
	})
}

func (s *session) offsetAt(p editor.Point) (int, bool) {
	off, err := editor.OffsetFromPoint(s.area, p)
	return off, err == nil
}

func (s *session) pointerDown(p editor.Point) {
	s.do(func() {
		store := s.engine.Store()
		before := store.Get()
		if rect, open := s.engine.Coordinator().PopupRect(); open && rect.Contains(p) {
			return
		}
		s.engine.PointerDown(p)
		if before != editor.PopupNone && store.Get() == editor.PopupNone {
			return
		}
		if !s.area.Bounds().Contains(p) {
			return
		}
		if off, ok := s.offsetAt(p); ok {
			s.area.SetCaret(off)
			s.dragFrom, s.dragging = off, true
		}
	})
}

func (s *session) pointerMove(p editor.Point) {
	s.do(func() {
		if !s.dragging {
			return
		}
		if off, ok := s.offsetAt(p); ok {
			s.area.Select(editor.Range{Start: s.dragFrom, End: off}.Normalize())
		}
	})
}

func (s *session) pointerUp(p editor.Point) {
	s.do(func() {
		if !s.dragging {
			return
		}
		s.dragging = false
		if off, ok := s.offsetAt(p); ok {
			s.area.Select(editor.Range{Start: s.dragFrom, End: off}.Normalize())
		}
		s.engine.PointerUp(p)
	})
}

func (s *session) scroll(lines int) {
	s.do(func() {
		cur := s.area.ScrollOffset()
		nextY := max(cur.Y+float64(lines)*cellH, 0)
		s.area.ScrollTo(editor.Point{X: cur.X, Y: nextY})
		s.engine.Coordinator().Scrolled(editor.Point{Y: nextY - cur.Y})
	})
}

func (s *session) selectAll() {
	s.do(func() {
		n := utf8.RuneCountInString(s.area.Text())
		s.area.Select(editor.Range{Start: 0, End: n})
		s.engine.SelectProgrammatic()
	})
}

func (s *session) typeText(text string) {
	s.do(func() { s.area.Type(text) })
}

func (s *session) backspace() {
	s.do(func() {
		sel := s.area.Selection()
		if sel.Empty() {
			if sel.Start == 0 {
				return
			}
			s.area.Select(editor.Range{Start: sel.Start - 1, End: sel.Start})
		}
		s.area.Type("")
	})
}

func (s *session) moveCaret(delta int) {
	s.do(func() {
		n := utf8.RuneCountInString(s.area.Text())
		s.area.SetCaret(min(max(s.area.Selection().Start+delta, 0), n))
	})
}

func (s *session) dismiss() {
	s.do(s.engine.Dismiss)
}

func (s *session) apply(action models.TransformAction, instructions string) (ok bool) {
	s.do(func() { ok = s.engine.Apply(action, instructions) })
	return ok
}

func (s *session) generate(kind models.ContentKind) (err error) {
	s.do(func() { err = s.engine.Generate(kind, s.chapterID, s.projectID) })
	return err
}

// snapshot 把可见的文本行排成字符格
func (s *session) snapshot() (f frame) {
	s.do(func() {
		style := s.area.Style()
		bounds := s.area.Bounds()
		runes := []rune(s.area.Text())
		layout := editor.LayoutPreWrap(runes, style, bounds.W)

		sel := s.area.Selection()
		hl, hasHL := s.highlightRange()
		f.chars = len(runes)
		f.edits = s.edits
		f.popup = s.engine.Store().Get()
		f.anchor, _ = s.engine.Coordinator().Anchor()

		first := int(s.area.ScrollOffset().Y / cellH)
		visible := int(bounds.H / cellH)
		for li := first; li < len(layout.Lines) && li < first+visible; li++ {
			box := layout.Lines[li]
			var row []cell
			col := 0
			for i := box.Start; i < box.End; i++ {
				class := classPlain
				switch {
				case hasHL && i >= hl.Start && i < hl.End:
					class = classHighlighted
				case !sel.Empty() && i >= sel.Start && i < sel.End:
					class = classSelected
				case sel.Empty() && i == sel.Start:
					class = classCaret
				}
				r := runes[i]
				if r == '\t' {
					n := style.TabSize - col%style.TabSize
					for k := 0; k < n; k++ {
						row = append(row, cell{r: ' ', class: class})
					}
					col += n
					continue
				}
				row = append(row, cell{r: r, class: class})
				col++
				if runewidth.RuneWidth(r) == 2 {
					row = append(row, cell{class: class})
					col++
				}
			}
			endsHere := li+1 >= len(layout.Lines) || layout.Lines[li+1].Start != box.End
			if sel.Empty() && sel.Start == box.End && endsHere {
				row = append(row, cell{r: ' ', class: classCaret})
			}
			f.rows = append(f.rows, row)
		}
	})
	return f
}

// highlightRange 从覆盖层节点还原高亮区间
func (s *session) highlightRange() (editor.Range, bool) {
	nodes := s.layer.Nodes()
	if len(nodes) == 0 {
		return editor.Range{}, false
	}
	spans := nodes[0].Spans
	start := utf8.RuneCountInString(spans[0].Text)
	return editor.Range{Start: start, End: start + utf8.RuneCountInString(spans[1].Text)}, true
}

func (s *session) close() {
	s.engine.Close()
	s.do(func() {
		s.unsubEdit()
		s.area.Destroy()
	})
	s.loop.Close()
}
