package cart

import (
	"testing"
	"time"
)

func TestManager_GetCreatesOnce(t *testing.T) {
	m := NewManager(time.Hour)

	a := m.Get("user-1")
	b := m.Get("user-1")
	if a != b {
		t.Error("same key must return the same cart")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 cart, got %d", m.Len())
	}
}

func TestManager_DistinctKeysDistinctCarts(t *testing.T) {
	m := NewManager(time.Hour)

	m.Get("user-1").Add(Product{ID: "p1", Price: 10})
	guest := m.Get("guest-token")

	if guest.Len() != 0 {
		t.Error("guest cart must not see the user's items")
	}
}

func TestManager_Drop(t *testing.T) {
	m := NewManager(time.Hour)
	m.Get("user-1").Add(Product{ID: "p1", Price: 10})
	m.Drop("user-1")

	if m.Get("user-1").Len() != 0 {
		t.Error("dropped cart must come back empty")
	}
}

func TestManager_SweepDiscardsIdleCarts(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	m.Get("stale")

	time.Sleep(25 * time.Millisecond)
	m.Get("fresh")

	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("expected 1 cart swept, got %d", removed)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 cart to survive, got %d", m.Len())
	}
}
