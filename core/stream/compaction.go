package stream

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// CompactionStrategy decides which events can seed a fold without any
// earlier events (resync points) and bounds how far a backward search may
// go before the loader concedes and reads from genesis.
//
// A nil strategy means no compaction: loads always fold forward from the
// start of the stream.
type CompactionStrategy interface {
	// IsResyncPoint reports whether ev is sufficient, together with all
	// later events, to reconstruct state equivalent to folding from
	// index 0.
	IsResyncPoint(ev Event) bool
	// Lookback is the maximum number of events scanned backward before
	// falling back to a forward read from genesis. 0 means unbounded.
	Lookback() int
	// UnfoldEvery is the number of events allowed to accumulate past the
	// last known resync point before the sync engine emits a fresh unfold.
	// 0 disables unfold emission.
	UnfoldEvery() int
}

type compactionOpts struct {
	lookback    int
	unfoldEvery int
}

func (o compactionOpts) Lookback() int    { return o.lookback }
func (o compactionOpts) UnfoldEvery() int { return o.unfoldEvery }

type CompactionOption func(*compactionOpts)

// WithLookback bounds the backward search to n events.
func WithLookback(n int) CompactionOption {
	return func(o *compactionOpts) { o.lookback = n }
}

// WithUnfoldEvery makes the sync engine emit a new unfold once n events
// have accumulated past the last known resync point.
func WithUnfoldEvery(n int) CompactionOption {
	return func(o *compactionOpts) { o.unfoldEvery = n }
}

type eventTypeStrategy struct {
	compactionOpts
	name string
}

func (s eventTypeStrategy) IsResyncPoint(ev Event) bool {
	return ev.Unfold && ev.Type == s.name
}

// CompactByEventType treats unfold events of the given type as resync
// points. Use it when the aggregate emits explicit synthetic snapshot
// events.
func CompactByEventType(name string, opts ...CompactionOption) CompactionStrategy {
	s := eventTypeStrategy{name: name}
	for _, opt := range opts {
		opt(&s.compactionOpts)
	}
	return s
}

type predicateStrategy struct {
	compactionOpts
	pred func(Event) bool
}

func (s predicateStrategy) IsResyncPoint(ev Event) bool { return s.pred(ev) }

// CompactByPredicate treats any event satisfying pred, unfold or ordinary,
// as a resync point. This covers aggregates where a sufficiently recent
// domain event carries the whole value.
func CompactByPredicate(pred func(Event) bool, opts ...CompactionOption) CompactionStrategy {
	s := predicateStrategy{pred: pred}
	for _, opt := range opts {
		opt(&s.compactionOpts)
	}
	return s
}

// unfoldMeta is the metadata attached to engine-emitted unfold events.
type unfoldMeta struct {
	Checksum string `json:"checksum"`
}

// unfoldMetaFor computes the integrity metadata for an unfold payload.
func unfoldMetaFor(data []byte) (json.RawMessage, error) {
	sum := blake2b.Sum256(data)
	meta, err := json.Marshal(unfoldMeta{Checksum: hex.EncodeToString(sum[:])})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// verifyUnfold checks the payload of an unfold event against the checksum
// in its metadata. Unfolds without metadata (written by other producers)
// are accepted as-is.
func verifyUnfold(ev Event) error {
	if len(ev.Meta) == 0 {
		return nil
	}
	var meta unfoldMeta
	if err := json.Unmarshal(ev.Meta, &meta); err != nil {
		return fmt.Errorf("invalid unfold meta at index %d: %w", ev.Index, err)
	}
	if meta.Checksum == "" {
		return nil
	}
	sum := blake2b.Sum256(ev.Data)
	if hex.EncodeToString(sum[:]) != meta.Checksum {
		return fmt.Errorf("%w: index %d", ErrUnfoldChecksum, ev.Index)
	}
	return nil
}
