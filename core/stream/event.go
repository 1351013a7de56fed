package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Direction selects the order in which a stream's log is read.
type Direction int

const (
	// Forward reads from older to newer indices.
	Forward Direction = iota
	// Backward reads from the stream tail towards index 0.
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Event is one element of a stream's append-only log. Events are immutable
// once appended.
type Event struct {
	// ID is the unique identifier of this event.
	ID string `json:"id"`
	// Index is the zero-based position of the event within its stream.
	// Indices are contiguous and strictly increasing, no gaps, no duplicates.
	Index Version `json:"index"`
	// Type is the event type name used for codec routing.
	Type string `json:"type"`
	// Data contains the JSON-encoded event payload.
	Data json.RawMessage `json:"data"`
	// Meta is an optional metadata payload. A nil Meta means "no metadata"
	// and is never written as an explicit empty value.
	Meta json.RawMessage `json:"meta,omitempty"`
	// Unfold marks synthetic compaction events carrying already-folded
	// state. Unfolds seed folds and are never replayed as domain events.
	Unfold bool `json:"unfold,omitempty"`
	// OccurredAt is when the event was created.
	OccurredAt time.Time `json:"occurred_at"`
}

func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id is empty")
	}
	if e.Index < 0 {
		return fmt.Errorf("event index %d is negative", e.Index)
	}
	if e.Type == "" {
		return fmt.Errorf("event type is empty")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("event occurred at is zero")
	}
	return nil
}

// Batch is the result of one log round trip, tagged with the direction it
// was read in. Events within a batch are always in ascending index order,
// regardless of direction. Batches are transient, they exist only while a
// load is in progress.
type Batch struct {
	Events    []Event
	Direction Direction
}

// Slice is the unit returned by a single Log read. Tail is the index of the
// last event in the stream at the time of the read, which lets readers stop
// paging without issuing a probing round trip past the end.
type Slice struct {
	Events []Event
	Tail   Version
}
