package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/events"
)

func dialProject(t *testing.T, f *fixture, projectID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/projects/" + projectID + "?token=" + f.token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })

	var welcome map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "connected", welcome["type"])
	assert.Equal(t, projectID, welcome["projectId"])
	return conn
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/projects/p1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestForwardNoteEventsToProjectRoom(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	conn := dialProject(t, f, "p1")
	assert.Equal(t, 1, f.handler.WebSocket.ConnectionCount("p1"))

	stream := make(chan events.NoteIngested, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		f.handler.WebSocket.ForwardNoteEvents(ctx, stream)
		close(done)
	}()

	stream <- events.NoteIngested{NoteID: "other", ProjectID: "p2"}
	stream <- events.NoteIngested{NoteID: "n1", ProjectID: "p1", Category: "character", Characters: []string{"c1"}}

	var msg map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "note_ingested", msg["type"])
	assert.Equal(t, "n1", msg["noteId"])
	assert.Equal(t, []interface{}{"c1"}, msg["characters"])

	close(stream)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop after stream closed")
	}
}

func TestWebSocketShutdownClosesClients(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	conn := dialProject(t, f, "p1")

	f.handler.WebSocket.Shutdown()
	assert.Zero(t, f.handler.WebSocket.ConnectionCount("p1"))
	assert.Zero(t, f.handler.WebSocket.BroadcastToProject("p1", map[string]interface{}{"type": "late"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
