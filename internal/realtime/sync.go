// Package realtime keeps local mirrors of remote collections in sync.
//
// A Syncer owns one collection mirror. It opens a store change feed, applies
// every server-side event to the mirror, and hands each registered subscriber
// a fresh, complete snapshot after every change. Snapshots are purely a
// function of the state the store reported — there is no field-level merging
// with anything the local process thinks it knows, because the store is
// authoritative and other writers mutate it at any moment.
//
// Subscriptions are infinite and not restartable: when the underlying feed
// dies the subscription terminates with a SyncError and the consumer must
// decide whether to resubscribe. Every Subscribe must be paired with an
// Unsubscribe on every exit path; passing the owning context to Subscribe
// makes teardown automatic.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/store"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

// SyncError is the terminal error a subscription surfaces when its feed
// fails (permission revoked, network drop, stream overflow).
type SyncError struct {
	Collection string
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("realtime: sync of %q failed: %v", e.Collection, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Snapshot is one complete, consistent view of the mirrored collection.
// Seq increases with every change so consumers can discard stale deliveries.
type Snapshot[T any] struct {
	Seq   uint64
	Items []T
}

// Option configures a Syncer.
type Option[T any] func(*Syncer[T])

// WithSort applies a deterministic re-sort to every snapshot. The store does
// not guarantee server-side order, so consumers that need a stable
// user-facing order (orders by createdAt descending) set this once here
// instead of sorting after every delivery.
func WithSort[T any](sort func([]T)) Option[T] {
	return func(s *Syncer[T]) { s.sort = sort }
}

// WithPool fans snapshot deliveries out through a bounded worker pool.
// Delivery falls back to inline when the pool is saturated; either way a
// single slow subscriber never stalls the watch loop.
func WithPool[T any](p *workerpool.Pool) Option[T] {
	return func(s *Syncer[T]) { s.pool = p }
}

// Syncer mirrors one remote collection into typed local snapshots.
type Syncer[T any] struct {
	col    store.Collection
	decode func(store.Doc) (T, error)
	sort   func([]T)
	pool   *workerpool.Pool

	mu     sync.Mutex
	mirror map[string]T
	order  []string
	seq    uint64
	ready  bool
	failed *SyncError
	subs   map[*Subscription[T]]struct{}
}

// New creates a Syncer for col. decode turns a raw store document into the
// mirror's item type; documents that fail to decode are skipped (a foreign
// writer's malformed document must not poison the whole mirror).
func New[T any](col store.Collection, decode func(store.Doc) (T, error), opts ...Option[T]) *Syncer[T] {
	s := &Syncer[T]{
		col:    col,
		decode: decode,
		mirror: make(map[string]T),
		subs:   make(map[*Subscription[T]]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the mirror until ctx is cancelled or the feed fails.
// It opens the change feed before the initial listing so no write can fall
// between the two; replaying an event that the listing already contained is
// harmless because apply is an upsert.
//
// Run returns nil on cancellation and the SyncError on feed failure, so a
// supervisor can restart it with backoff. A restart clears the failed state
// and new subscribers see a fresh authoritative snapshot.
func (s *Syncer[T]) Run(ctx context.Context) error {
	feed, err := s.col.Watch(ctx)
	if err != nil {
		return s.fail(err)
	}
	defer feed.Close()

	docs, err := s.col.List(ctx)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.failed = nil
	s.mirror = make(map[string]T, len(docs))
	s.order = s.order[:0]
	for _, doc := range docs {
		item, err := s.decode(doc)
		if err != nil {
			logger.Warn("realtime: skipping undecodable document",
				"collection", s.col.Name(), "id", doc.ID, "error", err)
			continue
		}
		s.mirror[doc.ID] = item
		s.order = append(s.order, doc.ID)
	}
	s.ready = true
	s.bumpAndBroadcastLocked()
	s.mu.Unlock()

	for ev := range feed.Events() {
		s.mu.Lock()
		s.applyLocked(ev)
		s.bumpAndBroadcastLocked()
		s.mu.Unlock()
	}

	if err := feed.Err(); err != nil && ctx.Err() == nil {
		return s.fail(err)
	}
	return nil
}

// Subscribe registers a new independent subscription. If the mirror already
// holds an authoritative snapshot it is delivered immediately; otherwise the
// first snapshot arrives as soon as the initial listing lands. Cancelling ctx
// unsubscribes.
//
// When the Syncer has already failed, the subscription arrives dead: its
// channel is closed and Err reports the SyncError. That keeps the fail-closed
// contract — a consumer never silently reads a stale mirror.
func (s *Syncer[T]) Subscribe(ctx context.Context) *Subscription[T] {
	sub := &Subscription[T]{
		syncer: s,
		ch:     make(chan Snapshot[T], 1),
	}

	s.mu.Lock()
	if s.failed != nil {
		err := s.failed
		s.mu.Unlock()
		sub.terminate(err)
		return sub
	}
	s.subs[sub] = struct{}{}
	metrics.SyncSubscriptions.WithLabelValues(s.col.Name()).Inc()
	if s.ready {
		sub.push(s.snapshotLocked())
	}
	s.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Unsubscribe()
		}()
	}
	return sub
}

// Current returns the latest snapshot without subscribing. Request handlers
// that render one response use this; live surfaces use Subscribe.
//
// Before the initial listing lands ok is false. After a feed failure the
// SyncError is returned, never the stale mirror.
func (s *Syncer[T]) Current() (Snapshot[T], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed != nil {
		return Snapshot[T]{}, false, s.failed
	}
	if !s.ready {
		return Snapshot[T]{}, false, nil
	}
	return s.snapshotLocked(), true, nil
}

// ─── Internals ────────────────────────────────────────────────────────────────

func (s *Syncer[T]) applyLocked(ev store.Event) {
	switch ev.Type {
	case store.EventInsert, store.EventUpdate:
		item, err := s.decode(ev.Doc)
		if err != nil {
			logger.Warn("realtime: skipping undecodable change",
				"collection", s.col.Name(), "id", ev.Doc.ID, "error", err)
			return
		}
		if _, exists := s.mirror[ev.Doc.ID]; !exists {
			s.order = append(s.order, ev.Doc.ID)
		}
		s.mirror[ev.Doc.ID] = item
	case store.EventDelete:
		if _, exists := s.mirror[ev.Doc.ID]; !exists {
			return
		}
		delete(s.mirror, ev.Doc.ID)
		for i, id := range s.order {
			if id == ev.Doc.ID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Syncer[T]) snapshotLocked() Snapshot[T] {
	items := make([]T, 0, len(s.mirror))
	for _, id := range s.order {
		items = append(items, s.mirror[id])
	}
	if s.sort != nil {
		s.sort(items)
	}
	return Snapshot[T]{Seq: s.seq, Items: items}
}

func (s *Syncer[T]) bumpAndBroadcastLocked() {
	s.seq++
	snap := s.snapshotLocked()

	for sub := range s.subs {
		sub := sub
		deliver := func() {
			sub.push(snap)
			metrics.SyncSnapshots.WithLabelValues(s.col.Name()).Inc()
		}
		if s.pool == nil || s.pool.Submit(deliver) != nil {
			deliver()
		}
	}
}

// fail terminates every live subscription with a SyncError and records the
// failed state so late subscribers are refused instead of served stale data.
func (s *Syncer[T]) fail(cause error) error {
	serr := &SyncError{Collection: s.col.Name(), Err: cause}

	s.mu.Lock()
	s.failed = serr
	s.ready = false
	subs := make([]*Subscription[T], 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[*Subscription[T]]struct{})
	s.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(serr)
		metrics.SyncSubscriptions.WithLabelValues(s.col.Name()).Dec()
	}

	metrics.SyncFailures.WithLabelValues(s.col.Name()).Inc()
	logger.Error("realtime: sync failed", "collection", s.col.Name(), "error", cause)
	return serr
}

func (s *Syncer[T]) drop(sub *Subscription[T]) {
	s.mu.Lock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		metrics.SyncSubscriptions.WithLabelValues(s.col.Name()).Dec()
	}
	s.mu.Unlock()
}

// ─── Subscription ─────────────────────────────────────────────────────────────

// Subscription is one consumer's handle on the snapshot stream.
type Subscription[T any] struct {
	syncer *Syncer[T]
	ch     chan Snapshot[T]

	mu      sync.Mutex
	closed  bool
	lastSeq uint64
	err     *SyncError
}

// Snapshots returns the delivery channel. It carries at most the latest
// snapshot: when a consumer is slower than the store, intermediate snapshots
// are coalesced away because only the newest authoritative state matters.
// The channel closes on Unsubscribe or feed failure.
func (sub *Subscription[T]) Snapshots() <-chan Snapshot[T] { return sub.ch }

// Err reports the terminal SyncError, if any, once Snapshots is closed.
// A nil result after close means the subscription ended voluntarily.
func (sub *Subscription[T]) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.err == nil {
		return nil
	}
	return sub.err
}

// Unsubscribe detaches from the Syncer and closes the snapshot channel.
// Idempotent; must be called on every exit path unless Subscribe was given a
// context that handles teardown.
func (sub *Subscription[T]) Unsubscribe() {
	sub.syncer.drop(sub)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

func (sub *Subscription[T]) terminate(err *SyncError) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	sub.err = err
	close(sub.ch)
}

// push replaces whatever snapshot is pending with snap, dropping deliveries
// that arrive out of order (possible when fan-out runs on a pool).
func (sub *Subscription[T]) push(snap Snapshot[T]) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed || snap.Seq <= sub.lastSeq {
		return
	}
	sub.lastSeq = snap.Seq

	select {
	case sub.ch <- snap:
	default:
		// Evict the stale pending snapshot, then retry once.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snap:
		default:
		}
	}
}
