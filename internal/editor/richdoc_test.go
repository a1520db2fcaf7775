package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRichDocInsertInheritsMarkInside(t *testing.T) {
	doc := NewRichDoc("one two three", Rect{W: 400, H: 200}, testStyle())
	doc.Select(Range{Start: 4, End: 7})
	doc.ToggleMark("bold")

	doc.InsertText(5, "XX")
	assert.Equal(t, "one tXXwo three", doc.Text())
	doc.Select(Range{Start: 4, End: 9})
	assert.Equal(t, []string{"bold"}, doc.ActiveMarks())

	// 区间边界上的插入不继承格式
	doc.InsertText(9, "!")
	doc.Select(Range{Start: 9, End: 10})
	assert.Empty(t, doc.ActiveMarks())
}

func TestRichDocDeleteShrinksMarksAndDecorations(t *testing.T) {
	doc := NewRichDoc("one two three", Rect{W: 400, H: 200}, testStyle())
	doc.Select(Range{Start: 4, End: 7})
	doc.ToggleMark("italic")
	doc.AddDecoration(HighlightClass, Range{Start: 8, End: 13})

	doc.DeleteRange(Range{Start: 0, End: 4})
	assert.Equal(t, "two three", doc.Text())
	assert.Equal(t, []Range{{Start: 4, End: 9}}, doc.Decorations(HighlightClass))

	doc.Select(Range{Start: 0, End: 3})
	assert.Equal(t, []string{"italic"}, doc.ActiveMarks())

	doc.DeleteRange(Range{Start: 0, End: 3})
	doc.Select(Range{Start: 0, End: 1})
	assert.Empty(t, doc.ActiveMarks())
}

func TestRichDocToggleMarkOff(t *testing.T) {
	doc := NewRichDoc("abcdef", Rect{W: 400, H: 200}, testStyle())
	doc.Select(Range{Start: 0, End: 6})
	doc.ToggleMark("bold")
	doc.Select(Range{Start: 2, End: 4})
	doc.ToggleMark("bold")

	doc.Select(Range{Start: 0, End: 2})
	assert.Equal(t, []string{"bold"}, doc.ActiveMarks())
	doc.Select(Range{Start: 2, End: 4})
	assert.Empty(t, doc.ActiveMarks())
	doc.Select(Range{Start: 5, End: 5})
	assert.Equal(t, []string{"bold"}, doc.ActiveMarks(), "caret looks at the previous character")
}

func TestRichDocNotifies(t *testing.T) {
	doc := NewRichDoc("abc", Rect{W: 400, H: 200}, testStyle())
	var kinds []ChangeKind
	unsubscribe := doc.Subscribe(func(c DocChange) { kinds = append(kinds, c.Kind) })

	doc.Select(Range{Start: 0, End: 1})
	doc.InsertText(0, "z")
	doc.AddDecoration(HighlightClass, Range{Start: 0, End: 1})
	doc.ClearDecorations(HighlightClass)
	doc.ClearDecorations(HighlightClass)
	unsubscribe()
	doc.DeleteRange(Range{Start: 0, End: 1})

	require.Equal(t, []ChangeKind{ChangeSelection, ChangeContent, ChangeDecorations, ChangeDecorations}, kinds)
}
