package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"coedit/metrics"
	"coedit/pkg/logger"
)

type inboundMessage struct {
	client *Client
	msg    WSMessage
}

// Options tunes a Hub. Zero values fall back to defaults.
type Options struct {
	SaveDelay      time.Duration
	SendBufferSize int
	Clock          Clock
}

// Hub is the realtime relay: it accepts connections, manages room
// membership, routes change/cursor events, and drives the session registry
// and the debounced persistence scheduler. All room state is owned by the
// single Run goroutine, so handlers never race each other.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	quit       chan struct{}
	quitOnce   sync.Once

	registry *Registry
	saver    *Saver

	sendBufferSize int

	// Owned by Run: connection set, docID -> room members, and each
	// client's single current room.
	connections map[*Client]bool
	rooms       map[string]map[*Client]bool
	membership  map[*Client]string
}

func NewHub(store Store, opts Options) *Hub {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 256
	}
	registry := NewRegistry(store)
	return &Hub{
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		inbound:        make(chan inboundMessage),
		quit:           make(chan struct{}),
		registry:       registry,
		saver:          NewSaver(store, registry, opts.SaveDelay, opts.Clock),
		sendBufferSize: opts.SendBufferSize,
		connections:    make(map[*Client]bool),
		rooms:          make(map[string]map[*Client]bool),
		membership:     make(map[*Client]string),
	}
}

// Run is the hub's event loop. Start it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.connections[client] = true
			metrics.ActiveConnections.Inc()
			metrics.TotalConnections.Inc()
			logger.Sugar.Infof("Client connected: %s", client.ID)

		case client := <-h.unregister:
			h.handleDisconnect(client)

		case in := <-h.inbound:
			h.dispatch(in.client, in.msg)

		case <-h.quit:
			return
		}
	}
}

// Shutdown stops the event loop and flushes every resident session with
// non-empty content. It waits for each flush to settle before returning.
func (h *Hub) Shutdown(ctx context.Context) {
	h.quitOnce.Do(func() { close(h.quit) })
	h.saver.FlushAll(ctx)
}

// Stats reports the live session counts for the health endpoint.
type Stats struct {
	ActiveDocuments   int `json:"activeDocuments"`
	TotalParticipants int `json:"totalParticipants"`
}

func (h *Hub) Stats() Stats {
	documents, participants := h.registry.Stats()
	return Stats{ActiveDocuments: documents, TotalParticipants: participants}
}

func (h *Hub) dispatch(c *Client, msg WSMessage) {
	if !h.connections[c] {
		return
	}
	switch msg.Event {
	case EventJoinDocument:
		h.handleJoin(c, msg.Data)
	case EventSendChanges:
		h.handleChange(c, msg.Data)
	case EventCursorPosition:
		h.handleCursor(c, msg.Data)
	default:
		logger.Sugar.Warnf("Client %s sent unknown event %q", c.ID, msg.Event)
	}
}

func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		// The editor may also send the document id as a bare string.
		if err2 := json.Unmarshal(data, &p.DocumentID); err2 != nil {
			logger.Sugar.Warnf("Client %s sent malformed join payload: %v", c.ID, err)
			return
		}
	}
	if p.DocumentID == "" {
		h.sendEvent(c, EventError, ErrorPayload{Message: "documentId is required"})
		return
	}

	// Room membership is exclusive: joining a new document leaves the
	// previous room first.
	if prev, ok := h.membership[c]; ok && prev != p.DocumentID {
		h.leaveRoom(c, prev)
	}

	sess, err := h.registry.GetOrCreate(context.Background(), p.DocumentID)
	if err != nil {
		logger.Sugar.Errorf("Error joining document %s: %v", p.DocumentID, err)
		h.sendEvent(c, EventError, ErrorPayload{Message: "Failed to join document"})
		return
	}

	if h.rooms[p.DocumentID] == nil {
		h.rooms[p.DocumentID] = make(map[*Client]bool)
	}
	h.rooms[p.DocumentID][c] = true
	h.membership[c] = p.DocumentID
	count := h.registry.AddParticipant(p.DocumentID, c.ID)

	// The joiner gets the session's current content; everyone else in the
	// room learns about the new participant.
	h.sendEvent(c, EventReceiveChanges, ReceiveChangesPayload{
		Content:    sess.Content,
		DocumentID: p.DocumentID,
	})
	h.broadcast(p.DocumentID, c, EventUserJoined, PresencePayload{
		SocketID:         c.ID,
		ParticipantCount: count,
	})
	h.syncDocumentGauge()
	logger.Sugar.Infof("Document %s now has %d participants", p.DocumentID, count)
}

func (h *Hub) handleChange(c *Client, data json.RawMessage) {
	var p ChangePayload
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Sugar.Warnf("Client %s sent malformed change payload: %v", c.ID, err)
		return
	}
	if p.DocumentID == "" || h.membership[c] != p.DocumentID {
		logger.Sugar.Warnf("Client %s not in document room %s", c.ID, p.DocumentID)
		return
	}

	h.registry.UpdateContent(p.DocumentID, p.Content)
	h.broadcast(p.DocumentID, c, EventReceiveChanges, ReceiveChangesPayload{
		Content:    p.Content,
		DocumentID: p.DocumentID,
		SenderID:   c.ID,
	})
	h.saver.Schedule(p.DocumentID, p.Content)
}

func (h *Hub) handleCursor(c *Client, data json.RawMessage) {
	var p CursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Sugar.Warnf("Client %s sent malformed cursor payload: %v", c.ID, err)
		return
	}
	if p.DocumentID == "" || h.membership[c] != p.DocumentID {
		return
	}

	h.broadcast(p.DocumentID, c, EventCursorUpdate, CursorUpdatePayload{
		SocketID:  c.ID,
		Position:  p.Position,
		Selection: p.Selection,
	})
}

func (h *Hub) handleDisconnect(c *Client) {
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	if docID, ok := h.membership[c]; ok {
		h.leaveRoom(c, docID)
	}
	c.close()
	metrics.ActiveConnections.Dec()
	logger.Sugar.Infof("Client disconnected: %s", c.ID)
}

// leaveRoom removes c from docID's room, notifies the remaining members,
// and tears the session down if it drained: cancel the pending timer,
// synchronously flush non-empty content, then evict.
func (h *Hub) leaveRoom(c *Client, docID string) {
	delete(h.membership, c)
	if room, ok := h.rooms[docID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, docID)
		}
	}

	remaining, empty := h.registry.RemoveParticipant(docID, c.ID)
	h.broadcast(docID, nil, EventUserLeft, PresencePayload{
		SocketID:         c.ID,
		ParticipantCount: remaining,
	})

	if empty {
		h.saver.Cancel(docID)
		if content, ok := h.registry.Content(docID); ok && content != "" {
			if err := h.saver.FlushNow(context.Background(), docID, content); err != nil {
				logger.Sugar.Errorf("Final save error for doc %s: %v", docID, err)
			}
		}
		h.registry.Evict(docID)
		logger.Sugar.Infof("Cleaned up empty session for document %s", docID)
	}
	h.syncDocumentGauge()
}

func (h *Hub) sendEvent(c *Client, event string, payload any) {
	data, ok := encodeMessage(event, payload)
	if !ok {
		return
	}
	if !c.trySend(data) {
		logger.Sugar.Warnf("Client %s's send buffer is full, dropping %s", c.ID, event)
	}
}

// broadcast fans a message out to every room member except the sender.
// Clients whose send buffer is full are lagging and get disconnected, so a
// slow reader can never block the hub.
func (h *Hub) broadcast(docID string, except *Client, event string, payload any) {
	room, ok := h.rooms[docID]
	if !ok || len(room) == 0 {
		return
	}
	data, encoded := encodeMessage(event, payload)
	if !encoded {
		return
	}

	var lagging []*Client
	for client := range room {
		if client == except {
			continue
		}
		if client.trySend(data) {
			metrics.MessagesSent.Inc()
		} else {
			lagging = append(lagging, client)
		}
	}
	for _, client := range lagging {
		logger.Sugar.Warnf("Client %s's send buffer is full. Disconnecting.", client.ID)
		h.handleDisconnect(client)
	}
}

func (h *Hub) syncDocumentGauge() {
	documents, _ := h.registry.Stats()
	metrics.ActiveDocuments.Set(float64(documents))
}

func encodeMessage(event string, payload any) ([]byte, bool) {
	msg, err := newMessage(event, payload)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s payload: %v", event, err)
		return nil, false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s message: %v", event, err)
		return nil, false
	}
	return data, true
}
