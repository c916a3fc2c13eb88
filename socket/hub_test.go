package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, store *fakeStore, clock *fakeClock) (*Hub, string) {
	t.Helper()
	hub := NewHub(store, Options{SaveDelay: 2 * time.Second, Clock: clock})
	go hub.Run()
	t.Cleanup(func() { hub.Shutdown(context.Background()) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(WSMessage{Event: event, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// readEvent reads the next frame with a deadline so tests never hang.
func readEvent(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err, "failed to read message from WebSocket")
	var msg WSMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func decodePayload[T any](t *testing.T, msg WSMessage) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	return payload
}

func assertNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no message, but one arrived")
}

func TestCollaborationScenario(t *testing.T) {
	store := newFakeStore()
	clock := newFakeClock()
	hub, wsURL := newTestHub(t, store, clock)

	// Client A joins a document the store has never seen.
	connA := dial(t, wsURL)
	sendEvent(t, connA, EventJoinDocument, JoinPayload{DocumentID: "doc1"})

	initial := readEvent(t, connA)
	assert.Equal(t, EventReceiveChanges, initial.Event)
	initialPayload := decodePayload[ReceiveChangesPayload](t, initial)
	assert.Equal(t, "", initialPayload.Content)
	assert.Equal(t, "doc1", initialPayload.DocumentID)
	assert.Empty(t, initialPayload.SenderID)

	// Client B joins the same room.
	connB := dial(t, wsURL)
	sendEvent(t, connB, EventJoinDocument, JoinPayload{DocumentID: "doc1"})
	_ = readEvent(t, connB) // B's own initial content

	joined := readEvent(t, connA)
	assert.Equal(t, EventUserJoined, joined.Event)
	joinedPayload := decodePayload[PresencePayload](t, joined)
	assert.Equal(t, 2, joinedPayload.ParticipantCount)
	require.NotEmpty(t, joinedPayload.SocketID)
	idB := joinedPayload.SocketID

	stats := hub.Stats()
	assert.Equal(t, 1, stats.ActiveDocuments)
	assert.Equal(t, 2, stats.TotalParticipants)

	// B edits; A receives the broadcast with B's sender id, B gets no echo.
	sendEvent(t, connB, EventSendChanges, ChangePayload{Content: "hello", DocumentID: "doc1"})

	changed := readEvent(t, connA)
	assert.Equal(t, EventReceiveChanges, changed.Event)
	changedPayload := decodePayload[ReceiveChangesPayload](t, changed)
	assert.Equal(t, "hello", changedPayload.Content)
	assert.Equal(t, "doc1", changedPayload.DocumentID)
	assert.Equal(t, idB, changedPayload.SenderID)
	assertNoMessage(t, connB)

	// A cursor event both relays to A and guarantees the hub has fully
	// processed the edit (events are handled in order).
	sendEvent(t, connB, EventCursorPosition, CursorPayload{
		DocumentID: "doc1",
		Position:   json.RawMessage(`5`),
		Selection:  json.RawMessage(`{"start":1,"end":5}`),
	})
	cursor := readEvent(t, connA)
	assert.Equal(t, EventCursorUpdate, cursor.Event)
	cursorPayload := decodePayload[CursorUpdatePayload](t, cursor)
	assert.Equal(t, idB, cursorPayload.SocketID)
	assert.JSONEq(t, `5`, string(cursorPayload.Position))

	// No further edits: after the quiet period the store holds "hello".
	assert.Equal(t, 0, store.saveCount("doc1"))
	clock.Advance(2 * time.Second)
	content, ok := store.content("doc1")
	require.True(t, ok)
	assert.Equal(t, "hello", content)
	assert.Equal(t, 1, store.saveCount("doc1"))
}

func TestJoinEmitsErrorOnStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.setGetErr(errors.New("connection refused"))
	hub, wsURL := newTestHub(t, store, newFakeClock())

	conn := dial(t, wsURL)
	sendEvent(t, conn, EventJoinDocument, JoinPayload{DocumentID: "doc1"})

	msg := readEvent(t, conn)
	assert.Equal(t, EventError, msg.Event)
	payload := decodePayload[ErrorPayload](t, msg)
	assert.Equal(t, "Failed to join document", payload.Message)

	stats := hub.Stats()
	assert.Equal(t, 0, stats.ActiveDocuments)
	assert.Equal(t, 0, stats.TotalParticipants)
}

func TestJoinAcceptsBareStringDocumentID(t *testing.T) {
	store := newFakeStore()
	store.seed("doc9", "existing")
	_, wsURL := newTestHub(t, store, newFakeClock())

	conn := dial(t, wsURL)
	frame, err := json.Marshal(WSMessage{Event: EventJoinDocument, Data: json.RawMessage(`"doc9"`)})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	msg := readEvent(t, conn)
	assert.Equal(t, EventReceiveChanges, msg.Event)
	payload := decodePayload[ReceiveChangesPayload](t, msg)
	assert.Equal(t, "existing", payload.Content)
}

func TestRoomMembershipIsExclusive(t *testing.T) {
	store := newFakeStore()
	store.seed("docX", "x content")
	store.seed("docY", "y content")
	clock := newFakeClock()
	_, wsURL := newTestHub(t, store, clock)

	watcher := dial(t, wsURL)
	sendEvent(t, watcher, EventJoinDocument, JoinPayload{DocumentID: "docX"})
	_ = readEvent(t, watcher)

	hopper := dial(t, wsURL)
	sendEvent(t, hopper, EventJoinDocument, JoinPayload{DocumentID: "docX"})
	_ = readEvent(t, hopper)
	joined := decodePayload[PresencePayload](t, readEvent(t, watcher))
	assert.Equal(t, 2, joined.ParticipantCount)

	// Joining docY implicitly leaves docX.
	sendEvent(t, hopper, EventJoinDocument, JoinPayload{DocumentID: "docY"})
	yContent := decodePayload[ReceiveChangesPayload](t, readEvent(t, hopper))
	assert.Equal(t, "y content", yContent.Content)

	left := readEvent(t, watcher)
	assert.Equal(t, EventUserLeft, left.Event)
	leftPayload := decodePayload[PresencePayload](t, left)
	assert.Equal(t, 1, leftPayload.ParticipantCount)
	assert.Equal(t, joined.SocketID, leftPayload.SocketID)

	// A change against the abandoned room is silently dropped.
	sendEvent(t, hopper, EventSendChanges, ChangePayload{Content: "stale", DocumentID: "docX"})
	assertNoMessage(t, watcher)
	clock.Advance(5 * time.Second)
	content, _ := store.content("docX")
	assert.Equal(t, "x content", content)
}

func TestChangeFromNonMemberIsDropped(t *testing.T) {
	store := newFakeStore()
	clock := newFakeClock()
	hub, wsURL := newTestHub(t, store, clock)

	conn := dial(t, wsURL)
	sendEvent(t, conn, EventSendChanges, ChangePayload{Content: "sneaky", DocumentID: "doc1"})

	// No error event, no broadcast, no persistence.
	assertNoMessage(t, conn)
	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, store.saveCount("doc1"))
	assert.Equal(t, 0, hub.Stats().ActiveDocuments)
}

func TestUserLeftOnDisconnect(t *testing.T) {
	store := newFakeStore()
	store.seed("doc2", "doc2 content")
	hub, wsURL := newTestHub(t, store, newFakeClock())

	connA := dial(t, wsURL)
	sendEvent(t, connA, EventJoinDocument, JoinPayload{DocumentID: "doc2"})
	_ = readEvent(t, connA)

	connB := dial(t, wsURL)
	sendEvent(t, connB, EventJoinDocument, JoinPayload{DocumentID: "doc2"})
	_ = readEvent(t, connB)
	joined := decodePayload[PresencePayload](t, readEvent(t, connA))

	connB.Close()

	left := readEvent(t, connA)
	assert.Equal(t, EventUserLeft, left.Event)
	leftPayload := decodePayload[PresencePayload](t, left)
	assert.Equal(t, 1, leftPayload.ParticipantCount)
	assert.Equal(t, joined.SocketID, leftPayload.SocketID)

	// The session survives while A remains.
	stats := hub.Stats()
	assert.Equal(t, 1, stats.ActiveDocuments)
	assert.Equal(t, 1, stats.TotalParticipants)
}

func TestLastParticipantDisconnectFlushesAndEvicts(t *testing.T) {
	store := newFakeStore()
	clock := newFakeClock()
	hub, wsURL := newTestHub(t, store, clock)

	conn := dial(t, wsURL)
	sendEvent(t, conn, EventJoinDocument, JoinPayload{DocumentID: "doc3"})
	_ = readEvent(t, conn)

	sendEvent(t, conn, EventSendChanges, ChangePayload{Content: "final text", DocumentID: "doc3"})
	require.Eventually(t, func() bool {
		content, ok := hub.registry.Content("doc3")
		return ok && content == "final text"
	}, 2*time.Second, 10*time.Millisecond)

	// Disconnect before the debounce fires: the teardown path cancels the
	// pending timer and performs its own flush with the latest content.
	conn.Close()
	require.Eventually(t, func() bool {
		content, ok := store.content("doc3")
		return ok && content == "final text"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, store.saveCount("doc3"))

	// The superseded debounce timer never lands a second write.
	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, store.saveCount("doc3"))
	assert.Equal(t, 0, hub.Stats().ActiveDocuments)

	// A later join reloads the persisted content from the store.
	conn2 := dial(t, wsURL)
	sendEvent(t, conn2, EventJoinDocument, JoinPayload{DocumentID: "doc3"})
	reloaded := decodePayload[ReceiveChangesPayload](t, readEvent(t, conn2))
	assert.Equal(t, "final text", reloaded.Content)
}

func TestShutdownFlushesDirtySessions(t *testing.T) {
	store := newFakeStore()
	clock := newFakeClock()
	hub, wsURL := newTestHub(t, store, clock)

	conn := dial(t, wsURL)
	sendEvent(t, conn, EventJoinDocument, JoinPayload{DocumentID: "doc4"})
	_ = readEvent(t, conn)

	sendEvent(t, conn, EventSendChanges, ChangePayload{Content: "unsaved work", DocumentID: "doc4"})
	require.Eventually(t, func() bool {
		content, ok := hub.registry.Content("doc4")
		return ok && content == "unsaved work"
	}, 2*time.Second, 10*time.Millisecond)

	// Shutdown flushes before the quiet period has elapsed.
	hub.Shutdown(context.Background())

	content, ok := store.content("doc4")
	require.True(t, ok)
	assert.Equal(t, "unsaved work", content)
}
