package editor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要本地 Chrome，设置 SCRIBE_BROWSER_TESTS=1 启用
func TestBrowserMirrorMatchesMirrorMeasurer(t *testing.T) {
	if os.Getenv("SCRIBE_BROWSER_TESTS") != "1" {
		t.Skip("SCRIBE_BROWSER_TESTS not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bm, err := NewBrowserMirror(ctx, os.Getenv("SCRIBE_CHROME_URL"))
	require.NoError(t, err)
	defer bm.Close()

	style := DefaultTextStyle()
	style.FontFamily = "'DejaVu Sans Mono', monospace"
	style.CharWidth, err = bm.CharWidth(style)
	require.NoError(t, err)
	require.Greater(t, style.CharWidth, 0.0)

	text := "The city was quiet. Rain moved over the rooftops in long grey sheets,\n" +
		"and somewhere below a tram bell rang twice before the street fell silent again."
	ta := NewTextArea(text, Rect{X: 40, Y: 60, W: 36*style.CharWidth + style.Padding.Left + style.Padding.Right, H: 400}, style)

	for _, r := range []Range{
		{Start: 0, End: 19},   // 单行
		{Start: 20, End: 60},  // 跨软换行
		{Start: 50, End: 120}, // 跨硬换行
		{Start: 33, End: 33},  // 光标
	} {
		want, err := bm.MeasureRange(ta, r)
		require.NoError(t, err)
		got, err := MirrorMeasurer{}.MeasureRange(ta, r)
		require.NoError(t, err)

		assert.InDelta(t, want.X, got.X, 1.5, "x %v", r)
		assert.InDelta(t, want.Y, got.Y, 1.5, "y %v", r)
		assert.InDelta(t, want.Bottom(), got.Bottom(), 1.5, "bottom %v", r)
		if !r.Empty() {
			assert.InDelta(t, want.W, got.W, 1.5, "w %v", r)
		}
	}
}
