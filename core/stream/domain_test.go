package stream_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ma3yTa/equinox/core/stream"
)

// Shopping cart fixture used across the engine tests. Small enough to reason
// about, rich enough to exercise folds, snapshots and no-op decisions.

type cartState struct {
	Items map[string]int
}

func (s cartState) clone() cartState {
	out := cartState{Items: make(map[string]int, len(s.Items))}
	for k, v := range s.Items {
		out.Items[k] = v
	}
	return out
}

type itemAdded struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func (itemAdded) EventType() string { return "item_added" }

type itemRemoved struct {
	SKU string `json:"sku"`
}

func (itemRemoved) EventType() string { return "item_removed" }

type cartSnapshotted struct {
	Items map[string]int `json:"items"`
}

func (cartSnapshotted) EventType() string { return "cart_snapshotted" }

func cartHandler() stream.Handler[cartState] {
	return stream.Handler[cartState]{
		Initial: func() cartState {
			return cartState{Items: map[string]int{}}
		},
		Fold: func(s cartState, events []any) cartState {
			s = s.clone()
			for _, e := range events {
				switch ev := e.(type) {
				case *itemAdded:
					s.Items[ev.SKU] += ev.Qty
				case *itemRemoved:
					delete(s.Items, ev.SKU)
				}
			}
			return s
		},
		Adopt: func(v any) (cartState, bool) {
			snap, ok := v.(*cartSnapshotted)
			if !ok {
				return cartState{}, false
			}
			return cartState{Items: snap.Items}.clone(), true
		},
		Snapshot: func(s cartState) any {
			return &cartSnapshotted{Items: s.clone().Items}
		},
	}
}

func cartCodec() *stream.JSONCodec {
	c := stream.NewJSONCodec()
	c.Register(
		stream.Variant[itemAdded](),
		stream.Variant[itemRemoved](),
		stream.Variant[cartSnapshotted](),
	)
	return c
}

func addItem(sku string, qty int) stream.DecideFunc[cartState] {
	return func(cartState) ([]any, error) {
		return []any{&itemAdded{SKU: sku, Qty: qty}}, nil
	}
}

// removeItem is a no-op when the cart does not hold the SKU.
func removeItem(sku string) stream.DecideFunc[cartState] {
	return func(s cartState) ([]any, error) {
		if _, ok := s.Items[sku]; !ok {
			return nil, nil
		}
		return []any{&itemRemoved{SKU: sku}}, nil
	}
}

// seedCart encodes and appends domain events directly to the log, assigning
// indices from the given version.
func seedCart(t *testing.T, log stream.Log, streamID string, from stream.Version, domainEvents ...any) stream.Version {
	t.Helper()
	codec := cartCodec()
	events := make([]stream.Event, 0, len(domainEvents))
	next := from + 1
	for _, de := range domainEvents {
		ev, err := codec.Encode(de)
		require.NoError(t, err)
		ev.Index = next
		next++
		events = append(events, ev)
	}
	tail, err := log.Append(context.Background(), streamID, from, events)
	require.NoError(t, err)
	return tail
}

// cartHistory is eleven events: six adds with growing quantity, interleaved
// with removes, the final remove omitted. Folding it yields quantity 6.
func cartHistory() []any {
	var events []any
	for i := 1; i <= 6; i++ {
		events = append(events, &itemAdded{SKU: "sku-1", Qty: i})
		if i < 6 {
			events = append(events, &itemRemoved{SKU: "sku-1"})
		}
	}
	return events
}

// recorder captures the exact sequence of log round trips for assertions.
type recorder struct {
	mu        sync.Mutex
	trips     []stream.TripKind
	conflicts int
}

func (r *recorder) RecordTrip(kind stream.TripKind, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips = append(r.trips, kind)
}

func (r *recorder) RecordConflict(_ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func (r *recorder) Trips() []stream.TripKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stream.TripKind(nil), r.trips...)
}

func (r *recorder) Conflicts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips = nil
	r.conflicts = 0
}
