package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/leadflow/internal/board"
	"github.com/dyluth/leadflow/pkg/pipeline"
)

func TestStreamURL(t *testing.T) {
	url, err := StreamURL("http://localhost:8000", "p1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/ws/projects/p1", url)

	url, err = StreamURL("https://leadflow.example.com/", "p1")
	require.NoError(t, err)
	assert.Equal(t, "wss://leadflow.example.com/ws/projects/p1", url)

	_, err = StreamURL("ftp://leadflow.example.com", "p1")
	assert.ErrorContains(t, err, "unsupported base URL scheme")
}

// newStreamBackend upgrades /ws/projects/{id} and relays the messages pushed
// into the returned channel.
func newStreamBackend(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()

	messages := make(chan []byte, 16)
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/projects/{projectID}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(messages) })
	return server, messages
}

func newSeededStore(t *testing.T) *board.Store {
	t.Helper()
	store := board.NewStore()
	t.Cleanup(store.Close)
	require.NoError(t, store.LoadSnapshot(
		[]string{"New", "Qualified", "Closed"},
		nil,
		[]pipeline.Lead{
			{ID: "l1", Name: "Alice", CurrentStep: "New", Status: pipeline.StatusActive},
		},
	))
	return store
}

func TestAttach(t *testing.T) {
	t.Run("forwards stream events to the store", func(t *testing.T) {
		backend, messages := newStreamBackend(t)
		store := newSeededStore(t)

		client, err := Attach(context.Background(), backend.URL, "p1", store)
		require.NoError(t, err)
		defer client.Close()

		messages <- []byte(`{"type":"lead_advanced","lead_id":"l1","to":"Qualified"}`)

		require.Eventually(t, func() bool {
			return store.View().Leads[0].CurrentStep == "Qualified"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("skips unknown types and keeps streaming", func(t *testing.T) {
		backend, messages := newStreamBackend(t)
		store := newSeededStore(t)

		client, err := Attach(context.Background(), backend.URL, "p1", store)
		require.NoError(t, err)
		defer client.Close()

		messages <- []byte(`{"type":"lead_archived","lead_id":"l1"}`)
		messages <- []byte(`{"type":"lead_assigned","lead_id":"l1","to_user":"u9"}`)

		require.Eventually(t, func() bool {
			return store.View().Leads[0].AssignedTo == "u9"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("surfaces malformed messages without dying", func(t *testing.T) {
		backend, messages := newStreamBackend(t)
		store := newSeededStore(t)

		client, err := Attach(context.Background(), backend.URL, "p1", store)
		require.NoError(t, err)
		defer client.Close()

		messages <- []byte(`{broken`)

		select {
		case err := <-client.Errors():
			assert.ErrorContains(t, err, "malformed stream message")
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream error")
		}

		// Still alive
		messages <- []byte(`{"type":"lead_advanced","lead_id":"l1","to":"Closed"}`)
		require.Eventually(t, func() bool {
			return store.View().Leads[0].CurrentStep == "Closed"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("context cancellation tears the stream down", func(t *testing.T) {
		backend, _ := newStreamBackend(t)
		store := newSeededStore(t)

		ctx, cancel := context.WithCancel(context.Background())
		client, err := Attach(ctx, backend.URL, "p1", store)
		require.NoError(t, err)

		cancel()
		select {
		case <-client.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("stream did not stop on context cancellation")
		}
	})

	t.Run("dial failure is an error", func(t *testing.T) {
		store := newSeededStore(t)
		_, err := Attach(context.Background(), "http://127.0.0.1:1", "p1", store)
		assert.ErrorContains(t, err, "failed to connect to event stream")
	})
}
