package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TypedEvent is implemented by every domain event variant. The returned
// name is the wire-level tag the codec routes on; it must be stable across
// schema revisions of the same variant.
type TypedEvent interface {
	EventType() string
}

// Codec maps a closed set of domain event variants to and from the
// transport Event record.
//
// Encode is deterministic over the (Type, Data, Meta) triple: the same
// variant value always produces the same triple. TryDecode is total: an
// event type the codec does not recognize yields (nil, nil), never an
// error, which keeps folds forward-compatible with schema evolution. A
// structurally invalid payload for a recognized type is a schema error and
// does fail.
type Codec interface {
	Encode(v any) (Event, error)
	TryDecode(e Event) (any, error)
}

// JSONCodec is a registry-backed Codec using JSON payloads. Variants are
// registered with a constructor per event type name, decode routes on the
// name and produces a fresh instance per call.
type JSONCodec struct {
	mu    sync.RWMutex
	ctors map[string]func() any
}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{ctors: map[string]func() any{}}
}

// Variant returns a constructor for the event variant T, for use with
// JSONCodec.Register.
func Variant[T any]() func() any { return func() any { return new(T) } }

// Register adds event variants to the codec. Each constructor is invoked
// once to derive the type name via TypedEvent; constructors whose values do
// not implement TypedEvent are a programming error and panic.
func (c *JSONCodec) Register(ctors ...func() any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ctor := range ctors {
		sample := ctor()
		te, ok := sample.(TypedEvent)
		if !ok {
			panic(fmt.Sprintf("stream: event %T does not implement TypedEvent", sample))
		}
		c.ctors[te.EventType()] = ctor
	}
}

func (c *JSONCodec) Encode(v any) (Event, error) {
	te, ok := v.(TypedEvent)
	if !ok {
		return Event{}, fmt.Errorf("%w: %T", ErrUnknownEventType, v)
	}

	name := te.EventType()
	c.mu.RLock()
	_, registered := c.ctors[name]
	c.mu.RUnlock()
	if !registered {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownEventType, name)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}

	return Event{
		ID:         gonanoid.Must(),
		Type:       name,
		Data:       data,
		OccurredAt: time.Now(),
	}, nil
}

func (c *JSONCodec) TryDecode(e Event) (any, error) {
	c.mu.RLock()
	ctor, ok := c.ctors[e.Type]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	v := ctor()
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Type, err)
		}
	}
	return v, nil
}

var _ Codec = (*JSONCodec)(nil)
