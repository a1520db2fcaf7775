package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopupStoreExclusive(t *testing.T) {
	store := NewPopupStore()
	require.Equal(t, PopupNone, store.Get())

	var scribeVisible, writeVisible bool
	var bothSeen bool
	check := func() {
		if scribeVisible && writeVisible {
			bothSeen = true
		}
	}
	store.Subscribe(func(_, next PopupKind) {
		scribeVisible = next == PopupScribe
		check()
	})
	store.Subscribe(func(_, next PopupKind) {
		writeVisible = next == PopupWrite
		check()
	})

	store.Set(PopupWrite)
	assert.True(t, writeVisible)
	store.Set(PopupScribe)
	assert.True(t, scribeVisible)
	assert.False(t, writeVisible, "write popup flips off in the same Set call")
	assert.False(t, bothSeen)

	store.Set(PopupNone)
	assert.False(t, scribeVisible)
	assert.False(t, writeVisible)
}

func TestPopupStoreNotifiesOnlyOnChange(t *testing.T) {
	store := NewPopupStore()
	log := recordTransitions(store)

	store.Set(PopupScribe)
	store.Set(PopupScribe)
	store.Set(PopupNone)

	assert.Equal(t, [][2]PopupKind{{PopupNone, PopupScribe}, {PopupScribe, PopupNone}}, *log)
}

func TestPopupStoreUnsubscribe(t *testing.T) {
	store := NewPopupStore()
	calls := 0
	unsubscribe := store.Subscribe(func(_, _ PopupKind) { calls++ })

	store.Set(PopupWrite)
	unsubscribe()
	unsubscribe()
	store.Set(PopupNone)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "writeActive", PopupWrite.String())
	assert.Equal(t, "none", PopupNone.String())
}

func TestPopupStoreListenerMaySet(t *testing.T) {
	store := NewPopupStore()
	store.Subscribe(func(_, next PopupKind) {
		if next == PopupWrite {
			store.Set(PopupNone)
		}
	})
	store.Set(PopupWrite)
	assert.Equal(t, PopupNone, store.Get())
}
