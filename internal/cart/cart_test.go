package cart

import (
	"fmt"
	"sync"
	"testing"
)

func product(id string, price float64) Product {
	return Product{ID: id, Name: "Product " + id, Price: price, ImageURL: "https://img/" + id}
}

func TestAdd_NewLineStartsAtOne(t *testing.T) {
	c := New()
	c.Add(product("p1", 10))

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(items))
	}
	if items[0].Quantity != 1 {
		t.Errorf("expected quantity 1, got %d", items[0].Quantity)
	}
}

func TestAdd_SameProductIncrementsQuantity(t *testing.T) {
	c := New()
	c.Add(product("p1", 10))
	c.Add(product("p1", 10))
	c.Add(product("p1", 10))

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected a single line, got %d", len(items))
	}
	if items[0].Quantity != 3 {
		t.Errorf("expected quantity 3, got %d", items[0].Quantity)
	}
}

func TestAdd_PreservesFirstSeenOrder(t *testing.T) {
	c := New()
	c.Add(product("a", 1))
	c.Add(product("b", 2))
	c.Add(product("c", 3))
	c.Add(product("a", 1)) // bump, must not move

	items := c.Items()
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if items[i].ProductID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, items[i].ProductID)
		}
	}
}

func TestDecrease_RemovesLineAtZero(t *testing.T) {
	c := New()
	c.Add(product("p1", 10))
	c.Add(product("p1", 10))

	c.Decrease("p1")
	if got := c.Items()[0].Quantity; got != 1 {
		t.Fatalf("expected quantity 1 after decrease, got %d", got)
	}

	c.Decrease("p1")
	if c.Len() != 0 {
		t.Errorf("line should disappear at zero, cart has %d lines", c.Len())
	}
}

func TestDecrease_AbsentProductIsNoop(t *testing.T) {
	c := New()
	c.Add(product("p1", 10))
	c.Decrease("missing")

	if c.Len() != 1 {
		t.Errorf("decreasing an absent product must not change the cart")
	}
}

func TestRemove_DropsWholeLine(t *testing.T) {
	c := New()
	c.Add(product("p1", 10))
	c.Add(product("p1", 10))
	c.Add(product("p2", 5))

	c.Remove("p1")

	items := c.Items()
	if len(items) != 1 || items[0].ProductID != "p2" {
		t.Errorf("expected only p2 to remain, got %+v", items)
	}
}

func TestClear_EmptiesEverything(t *testing.T) {
	c := New()
	c.Add(product("p1", 10))
	c.Add(product("p2", 5))
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected empty cart, got %d lines", c.Len())
	}
	if c.Subtotal() != 0 {
		t.Errorf("expected zero subtotal, got %f", c.Subtotal())
	}

	// Clearing an already-empty cart is a no-op.
	c.Clear()
	if c.Len() != 0 || c.Subtotal() != 0 {
		t.Errorf("repeated clear left state behind: len=%d subtotal=%f", c.Len(), c.Subtotal())
	}
}

func TestSubtotal_SumsPriceTimesQuantity(t *testing.T) {
	c := New()
	c.Add(product("p1", 10.50))
	c.Add(product("p1", 10.50))
	c.Add(product("p2", 4.25))

	want := 10.50*2 + 4.25
	if got := c.Subtotal(); got != want {
		t.Errorf("expected subtotal %f, got %f", want, got)
	}
}

func TestItems_ReturnsCopy(t *testing.T) {
	c := New()
	c.Add(product("p1", 10))

	items := c.Items()
	items[0].Quantity = 99

	if got := c.Items()[0].Quantity; got != 1 {
		t.Errorf("mutating the returned slice leaked into the cart: %d", got)
	}
}

// Session walkthrough: add two shirts and a scarf, drop one shirt, remove
// the scarf, then check what the order would be built from.
func TestCart_ShoppingScenario(t *testing.T) {
	c := New()
	c.Add(product("shirt", 49.90))
	c.Add(product("shirt", 49.90))
	c.Add(product("scarf", 34.50))

	c.Decrease("shirt")
	c.Remove("scarf")

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(items))
	}
	if items[0].ProductID != "shirt" || items[0].Quantity != 1 {
		t.Errorf("unexpected final line: %+v", items[0])
	}
	if got := c.Subtotal(); got != 49.90 {
		t.Errorf("expected subtotal 49.90, got %f", got)
	}
}

func TestCart_ConcurrentMutations(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", n)
			for j := 0; j < 50; j++ {
				c.Add(product(id, 1))
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 10 {
		t.Fatalf("expected 10 lines, got %d", c.Len())
	}
	for _, item := range c.Items() {
		if item.Quantity != 50 {
			t.Errorf("line %s: expected quantity 50, got %d", item.ProductID, item.Quantity)
		}
	}
}
