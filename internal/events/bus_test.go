package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteIngestedRoundTrip(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := bus.SubscribeNoteIngested(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.PublishNoteIngested(ctx, NoteIngested{
		NoteID:     "n1",
		ProjectID:  "p1",
		Category:   "mixed",
		Characters: []string{"Sarah"},
		Locations:  []string{"Thornwood"},
	}))

	select {
	case evt := <-stream:
		assert.Equal(t, "n1", evt.NoteID)
		assert.Equal(t, []string{"Sarah"}, evt.Characters)
		assert.False(t, evt.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishWithoutSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	assert.NoError(t, bus.PublishNoteIngested(context.Background(), NoteIngested{NoteID: "n2"}))
}
