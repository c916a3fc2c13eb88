package socket

import (
	"context"
	"sync"
	"time"

	"coedit/metrics"
	"coedit/pkg/logger"
)

// DefaultSaveDelay is the quiet period before a debounced write lands.
const DefaultSaveDelay = 2000 * time.Millisecond

type pendingSave struct {
	timer Timer
	seq   uint64
}

// Saver coalesces rapid content updates into one delayed write per
// document. At most one timer is pending per document id; scheduling again
// cancels and replaces it, and FlushNow supersedes it entirely. Persistence
// failures are logged and not retried: the content stays cached in the
// session and a later edit or flush will try again.
type Saver struct {
	mu      sync.Mutex
	pending map[string]*pendingSave
	seq     uint64

	delay    time.Duration
	store    Store
	registry *Registry
	clock    Clock
}

func NewSaver(store Store, registry *Registry, delay time.Duration, clock Clock) *Saver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Saver{
		pending:  make(map[string]*pendingSave),
		delay:    delay,
		store:    store,
		registry: registry,
		clock:    clock,
	}
}

// Schedule arms the debounce timer for docID with the given content,
// cancelling any timer already pending for it.
func (s *Saver) Schedule(docID, content string) {
	s.mu.Lock()
	if p, ok := s.pending[docID]; ok {
		p.timer.Stop()
	}
	s.seq++
	seq := s.seq
	p := &pendingSave{seq: seq}
	p.timer = s.clock.AfterFunc(s.delay, func() { s.fire(docID, seq, content) })
	s.pending[docID] = p
	s.mu.Unlock()
}

// Cancel drops a pending timer without persisting.
func (s *Saver) Cancel(docID string) {
	s.mu.Lock()
	if p, ok := s.pending[docID]; ok {
		p.timer.Stop()
		delete(s.pending, docID)
	}
	s.mu.Unlock()
}

// FlushNow supersedes any pending timer for docID and persists content
// synchronously. Used on last-participant-leave and at shutdown.
func (s *Saver) FlushNow(ctx context.Context, docID, content string) error {
	s.Cancel(docID)
	return s.persist(ctx, docID, content)
}

// FlushAll cancels every pending timer and synchronously persists each
// resident session with non-empty content. Errors are logged; shutdown
// progress is never blocked.
func (s *Saver) FlushAll(ctx context.Context) {
	for docID, content := range s.registry.Resident() {
		s.Cancel(docID)
		if content == "" {
			continue
		}
		if err := s.persist(ctx, docID, content); err != nil {
			logger.Sugar.Errorf("Shutdown flush failed for doc %s: %v", docID, err)
		}
	}
}

// fire runs when a timer elapses. The sequence check makes sure a timer
// that was superseded between firing and acquiring the lock never writes.
func (s *Saver) fire(docID string, seq uint64, content string) {
	s.mu.Lock()
	p, ok := s.pending[docID]
	if !ok || p.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, docID)
	s.mu.Unlock()

	if err := s.persist(context.Background(), docID, content); err != nil {
		logger.Sugar.Errorf("Failed to save doc %s: %v", docID, err)
	}
}

func (s *Saver) persist(ctx context.Context, docID, content string) error {
	if err := s.store.UpdateContent(ctx, docID, content); err != nil {
		metrics.DocumentSaves.WithLabelValues("error").Inc()
		return err
	}
	s.registry.SetLastSaved(docID, s.clock.Now())
	metrics.DocumentSaves.WithLabelValues("ok").Inc()
	logger.Sugar.Infof("Saved document %s (%d chars)", docID, len(content))
	return nil
}
