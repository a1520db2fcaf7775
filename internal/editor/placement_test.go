package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlace(t *testing.T) {
	viewport := Size{W: 1200, H: 800}
	popup := Size{W: 320, H: 180}

	tests := []struct {
		name      string
		candidate Point
		popup     Size
		viewport  Size
		want      Anchor
	}{
		{"below", Point{X: 100, Y: 100}, popup, viewport, Anchor{Top: 108, Left: 100}},
		{"flip above near bottom", Point{X: 100, Y: 700}, popup, viewport, Anchor{Top: 512, Left: 100, PositionedAbove: true}},
		{"exact bottom margin stays below", Point{X: 100, Y: 600}, popup, viewport, Anchor{Top: 608, Left: 100}},
		{"clamp right edge", Point{X: 1100, Y: 100}, popup, viewport, Anchor{Top: 108, Left: 860}},
		{"clamp left edge", Point{X: 3, Y: 100}, popup, viewport, Anchor{Top: 108, Left: 20}},
		{"narrow viewport lower bound wins", Point{X: 100, Y: 100}, popup, Size{W: 300, H: 800}, Anchor{Top: 108, Left: 20}},
		{"clamp top", Point{X: 100, Y: 50}, popup, Size{W: 1200, H: 200}, Anchor{Top: 10, Left: 100, PositionedAbove: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Place(tt.candidate, tt.popup, tt.viewport))
		})
	}
}

func TestPlaceFlipProperty(t *testing.T) {
	viewport := Size{W: 1024, H: 768}
	for _, h := range []float64{40, 120, 300} {
		for y := 200.0; y < 760; y += 37 {
			popup := Size{W: 200, H: h}
			a := Place(Point{X: 300, Y: y}, popup, viewport)
			if y+h > viewport.H-EdgeMargin {
				assert.True(t, a.PositionedAbove, "y=%v h=%v", y, h)
				assert.Equal(t, max(y-h-AnchorOffset, MinTop), a.Top)
			} else {
				assert.False(t, a.PositionedAbove, "y=%v h=%v", y, h)
				assert.Equal(t, y+AnchorOffset, a.Top)
			}
			assert.Equal(t, a, Place(Point{X: 300, Y: y}, popup, viewport), "placement is idempotent")
		}
	}
}
