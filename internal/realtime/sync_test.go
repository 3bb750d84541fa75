package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func decodeWidget(doc store.Doc) (widget, error) {
	var w widget
	if err := json.Unmarshal(doc.Data, &w); err != nil {
		return widget{}, err
	}
	w.ID = doc.ID
	return w, nil
}

func widgetDoc(id, name string) store.Doc {
	data, _ := json.Marshal(widget{ID: id, Name: name})
	return store.Doc{ID: id, Data: data}
}

// waitSnapshot reads snapshots until cond holds or the deadline passes.
func waitSnapshot(t *testing.T, sub *Subscription[widget], cond func(Snapshot[widget]) bool) Snapshot[widget] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, open := <-sub.Snapshots():
			if !open {
				t.Fatalf("subscription closed while waiting: %v", sub.Err())
			}
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func startSyncer(t *testing.T, col store.Collection) *Syncer[widget] {
	t.Helper()
	s := New(col, decodeWidget)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s
}

func TestSyncer_InitialSnapshotContainsExistingDocs(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")
	ctx := context.Background()

	col.Insert(ctx, widgetDoc("w1", "one"))
	col.Insert(ctx, widgetDoc("w2", "two"))

	s := startSyncer(t, col)
	sub := s.Subscribe(context.Background())
	defer sub.Unsubscribe()

	snap := waitSnapshot(t, sub, func(s Snapshot[widget]) bool { return len(s.Items) == 2 })
	if snap.Items[0].ID != "w1" || snap.Items[1].ID != "w2" {
		t.Errorf("unexpected snapshot order: %+v", snap.Items)
	}
}

func TestSyncer_InsertThenDeleteConverges(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")
	ctx := context.Background()

	s := startSyncer(t, col)
	sub := s.Subscribe(context.Background())
	defer sub.Unsubscribe()

	col.Insert(ctx, widgetDoc("w1", "one"))
	col.Insert(ctx, widgetDoc("w2", "two"))
	col.Delete(ctx, "w1")

	snap := waitSnapshot(t, sub, func(s Snapshot[widget]) bool {
		return len(s.Items) == 1 && s.Items[0].ID == "w2"
	})
	if snap.Items[0].Name != "two" {
		t.Errorf("unexpected survivor: %+v", snap.Items[0])
	}
}

func TestSyncer_UpdateReplacesItem(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")
	ctx := context.Background()

	col.Insert(ctx, widgetDoc("w1", "before"))

	s := startSyncer(t, col)
	sub := s.Subscribe(context.Background())
	defer sub.Unsubscribe()

	waitSnapshot(t, sub, func(s Snapshot[widget]) bool { return len(s.Items) == 1 })
	col.Update(ctx, widgetDoc("w1", "after"))

	waitSnapshot(t, sub, func(s Snapshot[widget]) bool {
		return len(s.Items) == 1 && s.Items[0].Name == "after"
	})
}

// A subscriber that never drains still sees the newest state on its next
// read: intermediate snapshots are evicted, not queued.
func TestSyncer_SlowSubscriberGetsLatest(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")
	ctx := context.Background()

	s := startSyncer(t, col)
	sub := s.Subscribe(context.Background())
	defer sub.Unsubscribe()

	for i := 0; i < 20; i++ {
		col.Insert(ctx, widgetDoc(fmt.Sprintf("w%02d", i), "n"))
	}

	waitSnapshot(t, sub, func(s Snapshot[widget]) bool { return len(s.Items) == 20 })
}

func TestSyncer_UnsubscribeClosesChannel(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")

	s := startSyncer(t, col)
	sub := s.Subscribe(context.Background())

	waitSnapshot(t, sub, func(Snapshot[widget]) bool { return true })
	sub.Unsubscribe()

	select {
	case _, open := <-sub.Snapshots():
		if open {
			// Drain the possibly-buffered final snapshot, then expect close.
			if _, open := <-sub.Snapshots(); open {
				t.Error("channel still open after Unsubscribe")
			}
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after Unsubscribe")
	}

	if sub.Err() != nil {
		t.Errorf("voluntary unsubscribe must not report an error, got %v", sub.Err())
	}
}

func TestSyncer_ContextCancelUnsubscribes(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")

	s := startSyncer(t, col)

	subCtx, cancel := context.WithCancel(context.Background())
	sub := s.Subscribe(subCtx)
	waitSnapshot(t, sub, func(Snapshot[widget]) bool { return true })

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-sub.Snapshots():
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancellation")
		}
	}
}

func TestSyncer_FeedFailureTerminatesSubscribers(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")

	s := startSyncer(t, col)
	sub := s.Subscribe(context.Background())
	waitSnapshot(t, sub, func(Snapshot[widget]) bool { return true })

	cause := errors.New("connection reset")
	mem.FailFeeds("widgets", cause)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-sub.Snapshots():
			if !open {
				var syncErr *SyncError
				if !errors.As(sub.Err(), &syncErr) {
					t.Fatalf("expected SyncError, got %v", sub.Err())
				}
				if syncErr.Collection != "widgets" {
					t.Errorf("unexpected collection in error: %s", syncErr.Collection)
				}
				return
			}
		case <-deadline:
			t.Fatal("subscription not terminated after feed failure")
		}
	}
}

func TestSyncer_FeedFailureReleasesSubscriptionGauge(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("gauged")
	gauge := metrics.SyncSubscriptions.WithLabelValues("gauged")

	s := startSyncer(t, col)
	first := s.Subscribe(context.Background())
	second := s.Subscribe(context.Background())
	waitSnapshot(t, first, func(Snapshot[widget]) bool { return true })
	waitSnapshot(t, second, func(Snapshot[widget]) bool { return true })

	if got := testutil.ToFloat64(gauge); got != 2 {
		t.Fatalf("expected 2 live subscriptions, gauge reads %v", got)
	}

	mem.FailFeeds("gauged", errors.New("gone"))

	deadline := time.After(2 * time.Second)
	for testutil.ToFloat64(gauge) != 0 {
		select {
		case <-deadline:
			t.Fatalf("gauge stuck at %v after feed failure", testutil.ToFloat64(gauge))
		case <-time.After(10 * time.Millisecond):
		}
	}

	// A terminated subscriber still calls Unsubscribe on its way out; that
	// must not push the gauge negative.
	first.Unsubscribe()
	second.Unsubscribe()
	if got := testutil.ToFloat64(gauge); got != 0 {
		t.Errorf("gauge moved to %v after redundant unsubscribe", got)
	}
}

func TestSyncer_RefusesNewSubscribersAfterFailure(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")

	s := startSyncer(t, col)
	first := s.Subscribe(context.Background())
	waitSnapshot(t, first, func(Snapshot[widget]) bool { return true })

	mem.FailFeeds("widgets", errors.New("gone"))

	// Wait for the failure to land.
	deadline := time.After(2 * time.Second)
	for {
		if _, _, err := s.Current(); err != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("syncer never entered failed state")
		case <-time.After(10 * time.Millisecond):
		}
	}

	sub := s.Subscribe(context.Background())
	if _, open := <-sub.Snapshots(); open {
		t.Error("subscription to a failed syncer must arrive closed")
	}
	if sub.Err() == nil {
		t.Error("dead subscription must report the failure")
	}
}

func TestSyncer_CurrentBeforeFirstListing(t *testing.T) {
	mem := store.NewMemory()
	s := New(mem.Collection("widgets"), decodeWidget)

	if _, ok, err := s.Current(); ok || err != nil {
		t.Errorf("expected not-ready before Run, got ok=%v err=%v", ok, err)
	}
}

func TestSyncer_SeqStrictlyIncreases(t *testing.T) {
	mem := store.NewMemory()
	col := mem.Collection("widgets")
	ctx := context.Background()

	s := startSyncer(t, col)
	sub := s.Subscribe(context.Background())
	defer sub.Unsubscribe()

	var last uint64
	for i := 0; i < 5; i++ {
		col.Insert(ctx, widgetDoc(fmt.Sprintf("w%d", i), "n"))
		snap := waitSnapshot(t, sub, func(s Snapshot[widget]) bool { return s.Seq > last })
		if snap.Seq <= last {
			t.Fatalf("seq went backwards: %d after %d", snap.Seq, last)
		}
		last = snap.Seq
	}
}
