package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackerFixture struct {
	ta      *TextArea
	store   *PopupStore
	sched   *manualScheduler
	tracker *Tracker
	selects []Selection
	clicks  []Point
}

func newTrackerFixture(text string) *trackerFixture {
	f := &trackerFixture{
		ta:    NewTextArea(text, Rect{X: 0, Y: 0, W: 416, H: 300}, testStyle()),
		store: NewPopupStore(),
		sched: &manualScheduler{},
	}
	f.tracker = NewTracker(f.ta, f.store, f.sched)
	f.tracker.OnSelect(func(s Selection) { f.selects = append(f.selects, s) })
	f.tracker.OnClick(func(p Point) { f.clicks = append(f.clicks, p) })
	return f
}

func (f *trackerFixture) drag(from, to Point, r Range) {
	f.tracker.PointerDown(from)
	f.ta.Select(r)
	f.tracker.PointerUp(to)
}

func TestTrackerClickDoesNotOpenPopup(t *testing.T) {
	for _, delta := range []Point{{}, {X: 4, Y: 4}, {X: -4.9, Y: 3}} {
		f := newTrackerFixture("The city was quiet.")
		f.ta.Select(Range{Start: 0, End: 8})

		f.tracker.PointerDown(Point{X: 50, Y: 20})
		f.tracker.PointerUp(Point{X: 50 + delta.X, Y: 20 + delta.Y})

		assert.Zero(t, f.sched.Pending(), "delta %v", delta)
		assert.Equal(t, PopupNone, f.store.Get())
		_, ok := f.tracker.Current()
		assert.False(t, ok)
		assert.Len(t, f.clicks, 1)
	}
}

func TestTrackerDragOpensScribeAfterSettle(t *testing.T) {
	f := newTrackerFixture("The city was quiet.")
	f.drag(Point{X: 10, Y: 10}, Point{X: 80, Y: 12}, Range{Start: 4, End: 8})

	require.Equal(t, 1, f.sched.Pending())
	assert.Equal(t, PopupNone, f.store.Get(), "state only changes after the settle delay")

	require.Equal(t, 1, f.sched.Fire())
	assert.Equal(t, PopupScribe, f.store.Get())

	sel, ok := f.tracker.Current()
	require.True(t, ok)
	assert.Equal(t, Range{Start: 4, End: 8}, sel.Range)
	assert.Equal(t, "city", sel.Text)
	assert.Equal(t, Point{X: 80, Y: 12}, sel.Candidate)
	assert.Len(t, f.selects, 1)
	assert.Empty(t, f.clicks)
}

func TestTrackerNewerPointerUpCancelsSettle(t *testing.T) {
	f := newTrackerFixture("The city was quiet.")
	f.drag(Point{X: 10, Y: 10}, Point{X: 80, Y: 12}, Range{Start: 4, End: 8})
	f.drag(Point{X: 10, Y: 10}, Point{X: 120, Y: 12}, Range{Start: 9, End: 12})

	assert.Equal(t, 1, f.sched.Fire())
	require.Len(t, f.selects, 1)
	assert.Equal(t, "was", f.selects[0].Text)
}

func TestTrackerWhitespaceSelectionClearsSilently(t *testing.T) {
	f := newTrackerFixture("a    b")
	f.drag(Point{X: 10, Y: 10}, Point{X: 60, Y: 10}, Range{Start: 1, End: 5})
	f.sched.Fire()

	assert.Equal(t, PopupNone, f.store.Get())
	_, ok := f.tracker.Current()
	assert.False(t, ok)
	assert.Empty(t, f.selects)
}

func TestTrackerSelectionReplacesWritePopup(t *testing.T) {
	f := newTrackerFixture("The city was quiet.")
	f.store.Set(PopupWrite)
	log := recordTransitions(f.store)

	f.drag(Point{X: 10, Y: 10}, Point{X: 80, Y: 12}, Range{Start: 0, End: 3})
	f.sched.Fire()

	assert.Equal(t, [][2]PopupKind{{PopupWrite, PopupScribe}}, *log)
}

func TestTrackerProgrammaticUsesMirror(t *testing.T) {
	f := newTrackerFixture(strings.Repeat("word ", 20))
	f.ta.Select(Range{Start: 40, End: 44})
	f.tracker.TrackProgrammatic()

	sel, ok := f.tracker.Current()
	require.True(t, ok)
	// 内容区 400px 每行容纳 8 个 "word "，偏移 40 位于第二行行首
	assert.Equal(t, Point{X: 8, Y: 8 + 24 + 24}, sel.Candidate)
	assert.Equal(t, PopupScribe, f.store.Get())
}

func TestTrackerClickClosesScribe(t *testing.T) {
	f := newTrackerFixture("The city was quiet.")
	f.drag(Point{X: 10, Y: 10}, Point{X: 80, Y: 12}, Range{Start: 4, End: 8})
	f.sched.Fire()
	require.Equal(t, PopupScribe, f.store.Get())

	f.tracker.PointerDown(Point{X: 30, Y: 30})
	f.tracker.PointerUp(Point{X: 30, Y: 30})

	assert.Equal(t, PopupNone, f.store.Get())
	_, ok := f.tracker.Current()
	assert.False(t, ok)
}

func TestTrackerIgnoresDeadSurface(t *testing.T) {
	f := newTrackerFixture("The city was quiet.")
	f.drag(Point{X: 10, Y: 10}, Point{X: 80, Y: 12}, Range{Start: 4, End: 8})
	f.ta.Destroy()
	f.sched.Fire()

	assert.Equal(t, PopupNone, f.store.Get())
	assert.Empty(t, f.selects)
}
