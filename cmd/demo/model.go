package main

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Corphon/SceneScribe/internal/editor"
	"github.com/Corphon/SceneScribe/internal/models"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helperStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusBarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	selectionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#bde0fe"))
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("190"))
	caretStyle       = lipgloss.NewStyle().Reverse(true)
	popupBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7f5af0"))
	popupHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	keyStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd166"))
)

var classStyles = map[cellClass]lipgloss.Style{
	classSelected:    selectionStyle,
	classHighlighted: highlightStyle,
	classCaret:       caretStyle,
	classTitle:       titleStyle,
	classHelper:      helperStyle,
	classStatus:      statusBarStyle,
	classError:       errorStyle,
}

var writeKinds = map[string]models.ContentKind{
	"n": models.ContentNote,
	"b": models.ContentBeat,
	"t": models.ContentText,
}

type model struct {
	sess   *session
	width  int
	height int
	frame  frame

	instructions string
	pending      int
	info         string
	errText      string
}

func newModel(s *session) *model {
	m := &model{sess: s, width: 80, height: 24}
	m.frame = s.snapshot()
	return m
}

func (m *model) Init() tea.Cmd {
	return m.sess.next()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.sess.resize(msg.Width, msg.Height)
	case tea.MouseMsg:
		m.handleMouse(msg)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		m.handleKey(msg)
	case outcomeMsg:
		m.handleOutcome(editor.Outcome(msg))
		cmd = m.sess.next()
	case redrawMsg:
		cmd = m.sess.next()
	}
	m.frame = m.sess.snapshot()
	if m.frame.popup != editor.PopupScribe {
		m.instructions = ""
	}
	return m, cmd
}

func (m *model) handleMouse(msg tea.MouseMsg) {
	p := pointAt(msg.X, msg.Y)
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			m.errText = ""
			m.sess.pointerDown(p)
		case tea.MouseButtonWheelUp:
			m.sess.scroll(-3)
		case tea.MouseButtonWheelDown:
			m.sess.scroll(3)
		}
	case tea.MouseActionMotion:
		if msg.Button == tea.MouseButtonLeft {
			m.sess.pointerMove(p)
		}
	case tea.MouseActionRelease:
		m.sess.pointerUp(p)
	}
}

func (m *model) handleKey(key tea.KeyMsg) {
	if key.Type == tea.KeyEsc {
		m.sess.dismiss()
		return
	}

	switch m.frame.popup {
	case editor.PopupScribe:
		m.handleScribeKey(key)
	case editor.PopupWrite:
		kind, ok := writeKinds[key.String()]
		if !ok {
			return
		}
		if err := m.sess.generate(kind); err != nil {
			m.errText = err.Error()
			return
		}
		m.pending++
		m.info = fmt.Sprintf("正在生成 %s ...", kind)
	default:
		m.handleEditKey(key)
	}
}

func (m *model) handleScribeKey(key tea.KeyMsg) {
	switch key.Type {
	case tea.KeyBackspace:
		if r := []rune(m.instructions); len(r) > 0 {
			m.instructions = string(r[:len(r)-1])
		}
		return
	case tea.KeySpace:
		m.instructions += " "
		return
	case tea.KeyRunes:
	default:
		return
	}

	s := string(key.Runes)
	if len(s) == 1 && s[0] >= '1' && s[0] <= '4' {
		action := models.TransformActions[s[0]-'1']
		if m.sess.apply(action, strings.TrimSpace(m.instructions)) {
			m.pending++
			m.info = fmt.Sprintf("正在 %s ...", action)
		}
		return
	}
	m.instructions += s
}

func (m *model) handleEditKey(key tea.KeyMsg) {
	switch key.Type {
	case tea.KeyCtrlA:
		m.sess.selectAll()
	case tea.KeyRunes:
		m.sess.typeText(string(key.Runes))
	case tea.KeySpace:
		m.sess.typeText(" ")
	case tea.KeyEnter:
		m.sess.typeText("\n")
	case tea.KeyTab:
		m.sess.typeText("\t")
	case tea.KeyBackspace:
		m.sess.backspace()
	case tea.KeyLeft:
		m.sess.moveCaret(-1)
	case tea.KeyRight:
		m.sess.moveCaret(1)
	}
}

func (m *model) handleOutcome(o editor.Outcome) {
	m.pending = max(m.pending-1, 0)
	switch {
	case errors.Is(o.Err, editor.ErrEmptyResult):
		m.errText = "模型返回了空内容"
	case o.Err != nil:
		m.errText = o.Err.Error()
	case o.Applied && o.Generated.Title != "":
		m.info = fmt.Sprintf("已插入「%s」(%d 字)", o.Generated.Title, o.Range.Len())
	case o.Applied:
		m.info = fmt.Sprintf("已写入 %d 字", o.Range.Len())
	default:
		m.info = "编辑器已关闭，结果被丢弃"
	}
}

func (m *model) View() string {
	screen := make([][]cell, 0, m.height)
	screen = append(screen, textCells("SceneScribe", classTitle), textCells("拖动选择文本，单击空白处在光标处生成", classHelper))
	rows := max(m.height-headerRows-footerRows, 1)
	for i := 0; i < rows; i++ {
		if i < len(m.frame.rows) {
			screen = append(screen, m.frame.rows[i])
		} else {
			screen = append(screen, nil)
		}
	}
	screen = append(screen,
		padCells(textCells(m.statusLine(), classStatus), m.width, classStatus),
		m.messageCells(),
		textCells("Ctrl+A 全选 · Esc 关闭弹窗 · Ctrl+C 退出", classHelper),
	)

	lines := make([]string, len(screen))
	for i, row := range screen {
		lines[i] = renderCells(row)
	}
	m.overlayPopup(screen, lines)
	return strings.Join(lines, "\n")
}

func (m *model) statusLine() string {
	return fmt.Sprintf(" %s │ %d 字 │ 编辑 %d 次 │ 进行中 %d", m.frame.popup, m.frame.chars, m.frame.edits, m.pending)
}

func (m *model) messageCells() []cell {
	if m.errText != "" {
		return textCells("✗ "+m.errText, classError)
	}
	return textCells(m.info, classHelper)
}

// overlayPopup 把弹窗盖在已渲染的行上
func (m *model) overlayPopup(screen [][]cell, lines []string) {
	var box []string
	var width int
	switch m.frame.popup {
	case editor.PopupScribe:
		box, width = m.scribeBox(), scribeCols
	case editor.PopupWrite:
		box, width = m.writeBox(), writeCols
	default:
		return
	}

	col := int(m.frame.anchor.Left / cellW)
	top := int(m.frame.anchor.Top / cellH)
	for i, line := range box {
		y := top + i
		if y < 0 || y >= len(lines) {
			continue
		}
		row := padCells(screen[y], col+width, classPlain)
		lines[y] = renderCells(row[:col]) + line + renderCells(row[col+width:])
	}
}

func (m *model) scribeBox() []string {
	body := []string{
		popupHeaderStyle.Render("Scribe"),
		keyStyle.Render("1") + " expand  " + keyStyle.Render("2") + " summarize",
		keyStyle.Render("3") + " rephrase  " + keyStyle.Render("4") + " revise",
		helperStyle.Render("说明: ") + runewidth.Truncate(m.instructions, scribeCols-10, "…"),
		"",
	}
	return renderBox(body, scribeCols, scribeRows)
}

func (m *model) writeBox() []string {
	body := []string{
		popupHeaderStyle.Render("Write"),
		keyStyle.Render("n") + " note  " + keyStyle.Render("b") + " beat  " + keyStyle.Render("t") + " text",
		helperStyle.Render("章节 " + runewidth.Truncate(m.sess.chapterID, writeCols-10, "…")),
		"",
	}
	return renderBox(body, writeCols, writeRows)
}

func renderBox(body []string, width, height int) []string {
	inner := popupBoxStyle.Width(width - 2).Height(height - 2).MaxHeight(height).Render(strings.Join(body, "\n"))
	return strings.Split(inner, "\n")
}

func textCells(s string, class cellClass) []cell {
	var out []cell
	for _, r := range s {
		out = append(out, cell{r: r, class: class})
		if runewidth.RuneWidth(r) == 2 {
			out = append(out, cell{class: class})
		}
	}
	return out
}

func padCells(row []cell, width int, class cellClass) []cell {
	for len(row) < width {
		row = append(row, cell{r: ' ', class: class})
	}
	return row
}

// renderCells 按样式分组输出一行字符格
func renderCells(row []cell) string {
	var b strings.Builder
	var run strings.Builder
	class := classPlain
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if style, ok := classStyles[class]; ok {
			b.WriteString(style.Render(run.String()))
		} else {
			b.WriteString(run.String())
		}
		run.Reset()
	}
	for _, c := range row {
		if c.r == 0 {
			continue
		}
		if c.class != class {
			flush()
			class = c.class
		}
		run.WriteRune(c.r)
	}
	flush()
	return b.String()
}
