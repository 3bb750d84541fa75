package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is the production Store driver. Change feeds are backed by MongoDB
// change streams, so every write from any client — this process, another
// storefront instance, an administrator poking the database directly —
// surfaces on every open feed.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri, db string) (*Mongo, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(dialCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("store/mongo: connect: %w", err)
	}

	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store/mongo: ping: %w", err)
	}

	return &Mongo{client: client, db: client.Database(db)}, nil
}

func (m *Mongo) Collection(name string) Collection {
	return &mongoCollection{col: m.db.Collection(name)}
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ─── Collection ───────────────────────────────────────────────────────────────

type mongoCollection struct {
	col *mongo.Collection
}

func (c *mongoCollection) Name() string { return c.col.Name() }

func (c *mongoCollection) Get(ctx context.Context, id string) (Doc, error) {
	var raw bson.M
	err := c.col.FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, fmt.Errorf("store/mongo: get %s/%s: %w", c.Name(), id, err)
	}
	return rawToDoc(raw)
}

func (c *mongoCollection) List(ctx context.Context) ([]Doc, error) {
	cursor, err := c.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("store/mongo: list %s: %w", c.Name(), err)
	}
	defer cursor.Close(ctx)

	var out []Doc
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("store/mongo: decode %s: %w", c.Name(), err)
		}
		doc, err := rawToDoc(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("store/mongo: cursor %s: %w", c.Name(), err)
	}
	return out, nil
}

func (c *mongoCollection) Insert(ctx context.Context, doc Doc) error {
	raw, err := docToRaw(doc)
	if err != nil {
		return err
	}
	if _, err := c.col.InsertOne(ctx, raw); err != nil {
		return fmt.Errorf("store/mongo: insert %s/%s: %w", c.Name(), doc.ID, err)
	}
	return nil
}

func (c *mongoCollection) Update(ctx context.Context, doc Doc) error {
	raw, err := docToRaw(doc)
	if err != nil {
		return err
	}
	res, err := c.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, raw)
	if err != nil {
		return fmt.Errorf("store/mongo: update %s/%s: %w", c.Name(), doc.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) Delete(ctx context.Context, id string) error {
	res, err := c.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store/mongo: delete %s/%s: %w", c.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) Watch(ctx context.Context) (Feed, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := c.col.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, fmt.Errorf("store/mongo: watch %s: %w", c.Name(), err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	f := &mongoFeed{
		ch:     make(chan Event, feedBuffer),
		cancel: cancel,
	}
	go f.pump(feedCtx, c.Name(), cs)
	return f, nil
}

// ─── Feed ─────────────────────────────────────────────────────────────────────

type mongoFeed struct {
	ch     chan Event
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (f *mongoFeed) Events() <-chan Event { return f.ch }

func (f *mongoFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *mongoFeed) Close() { f.cancel() }

// pump drains the change stream into the feed channel until the stream dies
// or the feed is closed.
func (f *mongoFeed) pump(ctx context.Context, name string, cs *mongo.ChangeStream) {
	defer close(f.ch)
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		var change struct {
			OperationType string `bson:"operationType"`
			FullDocument  bson.M `bson:"fullDocument"`
			DocumentKey   struct {
				ID interface{} `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := cs.Decode(&change); err != nil {
			f.setErr(fmt.Errorf("store/mongo: decode change on %s: %w", name, err))
			return
		}

		ev, ok := changeToEvent(change.OperationType, change.FullDocument, change.DocumentKey.ID)
		if !ok {
			continue // drop/rename/invalidate and other collection-level ops
		}

		select {
		case f.ch <- ev:
		case <-ctx.Done():
			return
		}
	}

	// Next returned false: voluntary close leaves err nil, a broken stream
	// surfaces as a terminal feed error.
	if err := cs.Err(); err != nil && ctx.Err() == nil {
		f.setErr(fmt.Errorf("store/mongo: change stream on %s: %w", name, err))
	}
}

func (f *mongoFeed) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func changeToEvent(op string, full bson.M, key interface{}) (Event, bool) {
	id := idToString(key)

	switch op {
	case "insert":
		doc, err := rawToDoc(full)
		if err != nil {
			return Event{}, false
		}
		return Event{Type: EventInsert, Doc: doc}, true
	case "update", "replace":
		doc, err := rawToDoc(full)
		if err != nil {
			return Event{}, false
		}
		return Event{Type: EventUpdate, Doc: doc}, true
	case "delete":
		return Event{Type: EventDelete, Doc: Doc{ID: id}}, true
	default:
		return Event{}, false
	}
}

// ─── Codec ────────────────────────────────────────────────────────────────────

// docToRaw converts the JSON body into BSON with the ID as _id.
func docToRaw(doc Doc) (bson.M, error) {
	var raw bson.M
	if err := bson.UnmarshalExtJSON(doc.Data, false, &raw); err != nil {
		return nil, fmt.Errorf("store/mongo: encode %s: %w", doc.ID, err)
	}
	raw["_id"] = doc.ID
	return raw, nil
}

// rawToDoc converts a BSON document into a Doc, lifting _id out of the body.
func rawToDoc(raw bson.M) (Doc, error) {
	id := idToString(raw["_id"])
	delete(raw, "_id")

	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return Doc{}, fmt.Errorf("store/mongo: decode %s: %w", id, err)
	}
	return Doc{ID: id, Data: data}, nil
}

// idToString tolerates foreign writers that use ObjectID keys instead of the
// string keys this application writes.
func idToString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprintf("%v", id)
	}
}
