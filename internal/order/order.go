// Package order implements the order lifecycle: Pending → Paid, one way,
// with deletion as the only other exit, and both reserved to administrators.
package order

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/store"
)

// Status is the closed order-state enum. It is deliberately not a free-form
// string: decoding rejects anything outside the table below.
type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
)

// transitions is the explicit lifecycle table. Paid → Paid is listed because
// repeated payment confirmation is harmless (last write wins); Paid → Pending
// is not.
var transitions = map[Status]map[Status]bool{
	StatusPending: {StatusPaid: true},
	StatusPaid:    {StatusPaid: true},
}

// ParseStatus validates a stored status string against the enum.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPaid:
		return Status(s), nil
	default:
		return "", fmt.Errorf("order: unknown status %q", s)
	}
}

// CanTransition reports whether the lifecycle permits moving to next.
func (s Status) CanTransition(next Status) bool {
	return transitions[s][next]
}

// Line is one immutable order line. It is a value copy taken at checkout:
// later edits or deletion of the source product never change it.
type Line struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Order is a placed order. Shipping fields are denormalized from the
// profile at checkout so historical orders survive profile edits.
// Only administrators mutate an order after creation, and only its status.
type Order struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	UserPhone       string    `json:"userPhone"`
	ShippingAddress string    `json:"shippingAddress"`
	ShippingCity    string    `json:"shippingCity"`
	Items           []Line    `json:"items"`
	Total           float64   `json:"total"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Decode turns a raw store document into an Order, rejecting unknown status
// values so a corrupted record cannot masquerade as a lifecycle state.
func Decode(doc store.Doc) (Order, error) {
	var raw struct {
		Order
		Status string `json:"status"`
	}
	if err := json.Unmarshal(doc.Data, &raw); err != nil {
		return Order{}, fmt.Errorf("order: decode %s: %w", doc.ID, err)
	}

	status, err := ParseStatus(raw.Status)
	if err != nil {
		return Order{}, err
	}

	o := raw.Order
	o.ID = doc.ID
	o.Status = status
	return o, nil
}

func encode(o Order) (store.Doc, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return store.Doc{}, fmt.Errorf("order: encode %s: %w", o.ID, err)
	}
	return store.Doc{ID: o.ID, Data: data}, nil
}

// SortNewestFirst is the deterministic secondary sort applied to every order
// snapshot: the store does not guarantee server-side order, so the view
// re-sorts by createdAt descending on each update to stay stable.
func SortNewestFirst(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		// Equal timestamps: fall back to ID so the view is still deterministic.
		return a.ID < b.ID
	})
}
