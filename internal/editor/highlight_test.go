package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainOverlaySpansAndScroll(t *testing.T) {
	ta := NewTextArea("The city was quiet.", Rect{X: 10, Y: 20, W: 400, H: 100}, testStyle())
	layer := &MemoryLayer{}

	o := ShowPlainOverlay(layer, ta, Range{Start: 4, End: 8})
	require.Len(t, layer.Nodes(), 1)
	node := o.Node()
	assert.Equal(t, ta.Bounds(), node.Bounds)
	assert.Equal(t, ta.Style(), node.Style)
	assert.Equal(t, [3]OverlaySpan{
		{Text: "The "},
		{Text: "city", Highlighted: true},
		{Text: " was quiet."},
	}, node.Spans)

	ta.ScrollTo(Point{Y: 42})
	assert.Equal(t, Point{Y: 42}, node.Scroll)
	assert.Equal(t, 1, ta.scrollListeners())

	o.Remove()
	o.Remove()
	assert.Empty(t, layer.Nodes(), "overlay is unmounted, not hidden")
	assert.Zero(t, ta.scrollListeners(), "scroll listener released")
}

func TestHighlightPlainReplacesPreviousOverlay(t *testing.T) {
	ta := NewTextArea("The city was quiet.", Rect{W: 400, H: 100}, testStyle())
	layer := &MemoryLayer{}
	h := NewHighlight(layer)

	h.Show(ta, Range{Start: 0, End: 3})
	h.Show(ta, Range{Start: 4, End: 8})
	require.Len(t, layer.Nodes(), 1)
	assert.Equal(t, "city", layer.Nodes()[0].Spans[1].Text)
	assert.Equal(t, 1, ta.scrollListeners())

	h.Clear()
	assert.Empty(t, layer.Nodes())
	assert.Zero(t, ta.scrollListeners())
}

func TestHighlightRichUsesSingleDecoration(t *testing.T) {
	doc := NewRichDoc("The city was quiet.", Rect{W: 400, H: 100}, testStyle())
	h := NewHighlight(nil)

	h.Show(doc, Range{Start: 0, End: 3})
	h.Show(doc, Range{Start: 4, End: 8})
	assert.Equal(t, []Range{{Start: 4, End: 8}}, doc.Decorations(HighlightClass))

	h.Clear()
	assert.Empty(t, doc.Decorations(HighlightClass))
	assert.Equal(t, "The city was quiet.", doc.Text(), "decorations are not content")
}
