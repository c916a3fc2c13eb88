package socket

import (
	"context"
	"sync"
	"time"

	"coedit/internal/document/model"
)

// fakeStore is an in-memory Store for tests.
type fakeStore struct {
	mu       sync.Mutex
	contents map[string]string
	getErr   error
	updErr   error
	gets     int
	saves    []saveCall
}

type saveCall struct {
	docID   string
	content string
}

func newFakeStore() *fakeStore {
	return &fakeStore{contents: make(map[string]string)}
}

func (f *fakeStore) GetContent(ctx context.Context, docID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return "", f.getErr
	}
	content, ok := f.contents[docID]
	if !ok {
		return "", model.ErrNotFound
	}
	return content, nil
}

func (f *fakeStore) UpdateContent(ctx context.Context, docID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updErr != nil {
		return f.updErr
	}
	f.contents[docID] = content
	f.saves = append(f.saves, saveCall{docID: docID, content: content})
	return nil
}

func (f *fakeStore) seed(docID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[docID] = content
}

func (f *fakeStore) content(docID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.contents[docID]
	return content, ok
}

func (f *fakeStore) saveCount(docID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.saves {
		if s.docID == docID {
			n++
		}
	}
	return n
}

func (f *fakeStore) getCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeStore) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func (f *fakeStore) setUpdateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updErr = err
}

// fakeClock drives the saver's timers without wall-clock delays.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock and fires every due, unstopped timer. Callbacks
// run on the caller's goroutine, outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
