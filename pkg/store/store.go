// Package store provides a driver-based document store abstraction.
//
// The authoritative state of the storefront lives in a remote, multi-writer
// document store: other clients and administrators can mutate it at any
// moment. This package exposes the small surface the rest of the code needs —
// point reads, full-collection listings, single-document atomic writes, and a
// live change feed — behind an interface with two drivers:
//
//   - mongo: production driver backed by MongoDB change streams
//   - memory: in-process driver for tests and local development
//
// Documents travel as raw JSON so every consumer decodes into its own types.
//
// Usage:
//
//	st := store.NewMemory()
//	products := st.Collection("products")
//	feed, _ := products.Watch(ctx)
//	for ev := range feed.Events() {
//	    // ev.Type, ev.Doc.ID, ev.Doc.Data
//	}
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no document has the given ID.
var ErrNotFound = errors.New("store: document not found")

// Doc is a single document: an opaque ID plus a raw JSON body.
type Doc struct {
	ID   string
	Data []byte
}

// EventType classifies a change feed entry.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one server-side change observed on a collection.
// For EventDelete only Doc.ID is populated.
type Event struct {
	Type EventType
	Doc  Doc
}

// Feed is a live subscription to a collection's changes.
//
// Events are delivered in the store's emission order. The channel is closed
// when the feed terminates — either because Close was called (Err returns
// nil) or because the underlying watch failed (Err returns the cause).
type Feed interface {
	Events() <-chan Event
	// Err reports why the feed terminated. Valid after Events() is closed.
	Err() error
	// Close releases server-side resources. Idempotent. Every Watch call
	// must be paired with a Close on every exit path.
	Close()
}

// Collection is a named set of documents.
type Collection interface {
	Name() string

	Get(ctx context.Context, id string) (Doc, error)
	List(ctx context.Context) ([]Doc, error)

	// Insert writes a new document. Each write is a single atomic remote
	// operation; sequences of writes are not transactional.
	Insert(ctx context.Context, doc Doc) error
	Update(ctx context.Context, doc Doc) error
	Delete(ctx context.Context, id string) error

	// Watch opens an independent change feed. Feeds are infinite and not
	// restartable: a failed feed must be discarded and a new one opened.
	Watch(ctx context.Context) (Feed, error)
}

// Store is a handle to the document database.
type Store interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}
