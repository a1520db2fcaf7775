package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/editor"
)

func newTestModel(t *testing.T) (*model, *session) {
	t.Helper()
	sess := newSession("The city woke slowly.", offlineAI{}, "ch-1", "")
	t.Cleanup(sess.close)

	m := newModel(sess)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m, sess
}

func mouse(action tea.MouseAction, button tea.MouseButton, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: button}
}

func text(sess *session) (s string) {
	sess.do(func() { s = sess.area.Text() })
	return s
}

func awaitPopup(t *testing.T, sess *session, kind editor.PopupKind) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sess.snapshot().popup == kind
	}, time.Second, 5*time.Millisecond)
}

func TestDragSelectsAndExpands(t *testing.T) {
	m, sess := newTestModel(t)

	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, 0, headerRows))
	m.Update(mouse(tea.MouseActionMotion, tea.MouseButtonLeft, 8, headerRows))
	m.Update(mouse(tea.MouseActionRelease, tea.MouseButtonNone, 8, headerRows))

	awaitPopup(t, sess, editor.PopupScribe)
	m.Update(redrawMsg{})
	require.NotEmpty(t, m.frame.rows)
	assert.Equal(t, classHighlighted, m.frame.rows[0][0].class)
	assert.Equal(t, classPlain, m.frame.rows[0][9].class)
	assert.Contains(t, m.View(), "summarize")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	assert.Equal(t, 1, m.pending)

	require.Eventually(t, func() bool {
		return strings.HasPrefix(text(sess), "The city The moment stretched")
	}, time.Second, 5*time.Millisecond)
	awaitPopup(t, sess, editor.PopupNone)
	assert.True(t, strings.HasSuffix(text(sess), "unsaid. woke slowly."))
}

func TestInstructionsAreTypedIntoScribePopup(t *testing.T) {
	m, sess := newTestModel(t)
	sess.selectAll()
	awaitPopup(t, sess, editor.PopupScribe)
	m.Update(redrawMsg{})

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("dark")})
	m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("er")})
	assert.Equal(t, "dark er", m.instructions)
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "dark e", m.instructions)
	// 输入说明时不修改正文
	assert.Equal(t, "The city woke slowly.", text(sess))

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("4")})
	require.Eventually(t, func() bool {
		return text(sess) == "The city woke slowly. [dark e]"
	}, time.Second, 5*time.Millisecond)
}

func TestClickOpensWriteAndInsertsNote(t *testing.T) {
	m, sess := newTestModel(t)

	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, 3, headerRows))
	m.Update(mouse(tea.MouseActionRelease, tea.MouseButtonNone, 3, headerRows))
	awaitPopup(t, sess, editor.PopupWrite)
	assert.Contains(t, m.View(), "note")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.Eventually(t, func() bool {
		return text(sess) == "TheRemember: the letter is sealed with the harbor guild's wax. city woke slowly."
	}, time.Second, 5*time.Millisecond)
}

func TestEscDismissesPopup(t *testing.T) {
	m, sess := newTestModel(t)
	sess.selectAll()
	awaitPopup(t, sess, editor.PopupScribe)
	m.Update(redrawMsg{})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, editor.PopupNone, m.frame.popup)
	assert.Empty(t, m.instructions)
	assert.Equal(t, "The city woke slowly.", text(sess))
}

func TestTypingEditsText(t *testing.T) {
	m, sess := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(" Rain")})
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "The city woke slowly. Rai", text(sess))
	assert.Equal(t, 2, m.frame.edits)
}

func TestRenderCellsGroupsStyles(t *testing.T) {
	row := append(textCells("ab", classPlain), textCells("世", classPlain)...)
	require.Len(t, row, 4)
	assert.Equal(t, "ab世", renderCells(row))
}
