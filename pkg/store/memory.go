package store

import (
	"context"
	"errors"
	"sync"
)

// ErrFeedOverflow terminates a feed whose consumer stopped draining it.
var ErrFeedOverflow = errors.New("store: feed buffer overflow")

// Memory is an in-process Store used by tests and local development.
// It mirrors the semantics the mongo driver provides: atomic single-document
// writes and per-watcher change feeds delivered in write order.
type Memory struct {
	mu   sync.RWMutex
	cols map[string]*memoryCollection
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cols: make(map[string]*memoryCollection)}
}

func (m *Memory) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if col, ok := m.cols[name]; ok {
		return col
	}
	col := &memoryCollection{
		name:  name,
		docs:  make(map[string][]byte),
		feeds: make(map[*memoryFeed]struct{}),
	}
	m.cols[name] = col
	return col
}

func (m *Memory) Close(_ context.Context) error {
	m.mu.RLock()
	cols := make([]*memoryCollection, 0, len(m.cols))
	for _, col := range m.cols {
		cols = append(cols, col)
	}
	m.mu.RUnlock()

	for _, col := range cols {
		for _, f := range col.snapshotFeeds() {
			f.close(nil)
		}
	}
	return nil
}

// FailFeeds terminates every open feed on the named collection with err.
// Test hook for exercising sync error paths; not part of the Store interface.
func (m *Memory) FailFeeds(name string, err error) {
	m.mu.RLock()
	col, ok := m.cols[name]
	m.mu.RUnlock()
	if !ok {
		return
	}

	for _, f := range col.snapshotFeeds() {
		f.close(err)
	}
}

// ─── Collection ───────────────────────────────────────────────────────────────

type memoryCollection struct {
	name string

	mu    sync.Mutex
	docs  map[string][]byte
	order []string // insertion order, for deterministic List
	feeds map[*memoryFeed]struct{}
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) Get(_ context.Context, id string) (Doc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.docs[id]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{ID: id, Data: cloneBytes(data)}, nil
}

func (c *memoryCollection) List(_ context.Context) ([]Doc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Doc, 0, len(c.docs))
	for _, id := range c.order {
		if data, ok := c.docs[id]; ok {
			out = append(out, Doc{ID: id, Data: cloneBytes(data)})
		}
	}
	return out, nil
}

func (c *memoryCollection) Insert(_ context.Context, doc Doc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[doc.ID]; !exists {
		c.order = append(c.order, doc.ID)
	}
	c.docs[doc.ID] = cloneBytes(doc.Data)
	c.emit(Event{Type: EventInsert, Doc: Doc{ID: doc.ID, Data: cloneBytes(doc.Data)}})
	return nil
}

func (c *memoryCollection) Update(_ context.Context, doc Doc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[doc.ID]; !exists {
		return ErrNotFound
	}
	c.docs[doc.ID] = cloneBytes(doc.Data)
	c.emit(Event{Type: EventUpdate, Doc: Doc{ID: doc.ID, Data: cloneBytes(doc.Data)}})
	return nil
}

func (c *memoryCollection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; !exists {
		return ErrNotFound
	}
	delete(c.docs, id)
	c.emit(Event{Type: EventDelete, Doc: Doc{ID: id}})
	return nil
}

func (c *memoryCollection) Watch(ctx context.Context) (Feed, error) {
	f := &memoryFeed{
		col: c,
		ch:  make(chan Event, feedBuffer),
	}

	c.mu.Lock()
	c.feeds[f] = struct{}{}
	c.mu.Unlock()

	// Tie the feed to the caller's context so teardown can never leak it.
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			f.Close()
		}()
	}

	return f, nil
}

// emit is called with c.mu held so feeds see events in write order.
func (c *memoryCollection) emit(ev Event) {
	for f := range c.feeds {
		f.deliver(ev)
	}
}

func (c *memoryCollection) snapshotFeeds() []*memoryFeed {
	c.mu.Lock()
	defer c.mu.Unlock()

	feeds := make([]*memoryFeed, 0, len(c.feeds))
	for f := range c.feeds {
		feeds = append(feeds, f)
	}
	return feeds
}

func (c *memoryCollection) dropFeed(f *memoryFeed) {
	c.mu.Lock()
	delete(c.feeds, f)
	c.mu.Unlock()
}

// ─── Feed ─────────────────────────────────────────────────────────────────────

// feedBuffer bounds how far a slow consumer may fall behind before the feed
// fails. The realtime layer drains promptly, so hitting this means the
// consumer is effectively dead.
const feedBuffer = 256

type memoryFeed struct {
	col *memoryCollection
	ch  chan Event

	mu     sync.Mutex
	closed bool
	err    error
}

func (f *memoryFeed) Events() <-chan Event { return f.ch }

func (f *memoryFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *memoryFeed) Close() { f.close(nil) }

func (f *memoryFeed) close(err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.err = err
	close(f.ch)
	f.mu.Unlock()

	f.col.dropFeed(f)
}

// deliver runs with col.mu held, so the overflow path defers feed removal to
// a goroutine instead of re-entering the collection lock.
func (f *memoryFeed) deliver(ev Event) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	select {
	case f.ch <- ev:
		f.mu.Unlock()
	default:
		f.closed = true
		f.err = ErrFeedOverflow
		close(f.ch)
		f.mu.Unlock()
		go f.col.dropFeed(f)
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
