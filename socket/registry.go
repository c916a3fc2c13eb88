package socket

import (
	"context"
	"errors"
	"sync"
	"time"

	"coedit/internal/document/model"
	"coedit/pkg/logger"
)

// Store is the slice of document persistence the relay consumes.
// Reads distinguish a missing document (model.ErrNotFound) from a store
// failure; the relay treats the two very differently on join.
type Store interface {
	GetContent(ctx context.Context, docID string) (string, error)
	UpdateContent(ctx context.Context, docID, content string) error
}

// session is the in-memory collaboration state for one document.
type session struct {
	content      string
	lastSavedAt  time.Time
	participants map[string]struct{}
}

// SessionInfo is a point-in-time snapshot handed to callers.
type SessionInfo struct {
	Content      string
	LastSavedAt  time.Time
	Participants int
}

// Registry maps document ids to live sessions. A session exists iff at
// least one connection claims membership, or a teardown flush is in flight.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	store    Store
	now      func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		store:    store,
		now:      time.Now,
	}
}

// GetOrCreate returns the resident session for docID, loading content from
// the store on first use. The store read happens under the registry lock so
// two concurrent joins for the same id cannot create divergent sessions.
// A missing document seeds an empty session; a store failure is returned.
func (r *Registry) GetOrCreate(ctx context.Context, docID string) (SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[docID]; ok {
		return snapshot(sess), nil
	}

	content, err := r.store.GetContent(ctx, docID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return SessionInfo{}, err
		}
		// New document: the session starts empty and becomes persistent
		// on the first save.
		content = ""
	}

	sess := &session{
		content:      content,
		lastSavedAt:  r.now(),
		participants: make(map[string]struct{}),
	}
	r.sessions[docID] = sess
	return snapshot(sess), nil
}

// AddParticipant records a connection's membership and returns the new
// participant count. GetOrCreate must have been called first.
func (r *Registry) AddParticipant(docID, connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[docID]
	if !ok {
		logger.Sugar.Warnf("AddParticipant on absent session %s", docID)
		return 0
	}
	sess.participants[connID] = struct{}{}
	return len(sess.participants)
}

// RemoveParticipant drops a connection's membership and reports the
// remaining count and whether the session drained.
func (r *Registry) RemoveParticipant(docID, connID string) (remaining int, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[docID]
	if !ok {
		return 0, false
	}
	delete(sess.participants, connID)
	remaining = len(sess.participants)
	return remaining, remaining == 0
}

// UpdateContent overwrites the cached content unconditionally: last writer
// wins, no version check, no merge. No-op if the session is absent.
func (r *Registry) UpdateContent(docID, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[docID]; ok {
		sess.content = content
	}
}

// Content returns the cached content for a resident session.
func (r *Registry) Content(docID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[docID]
	if !ok {
		return "", false
	}
	return sess.content, true
}

// SetLastSaved records a successful persist.
func (r *Registry) SetLastSaved(docID string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[docID]; ok {
		sess.lastSavedAt = t
	}
}

// Evict removes the session. Callers must have cancelled or superseded any
// pending persistence for docID first.
func (r *Registry) Evict(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, docID)
}

// Resident returns a copy of every resident session's content, keyed by
// document id. Used by the shutdown flush.
func (r *Registry) Resident() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.sessions))
	for docID, sess := range r.sessions {
		out[docID] = sess.content
	}
	return out
}

// Stats reports the active document count and total participant count.
func (r *Registry) Stats() (documents, participants int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sess := range r.sessions {
		participants += len(sess.participants)
	}
	return len(r.sessions), participants
}

func snapshot(sess *session) SessionInfo {
	return SessionInfo{
		Content:      sess.content,
		LastSavedAt:  sess.lastSavedAt,
		Participants: len(sess.participants),
	}
}
