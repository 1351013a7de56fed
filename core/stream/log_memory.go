package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryLog is a simple, correct (optimistic) log for tests and
// development. Safe for concurrent use.
type InMemoryLog struct {
	mu      sync.Mutex
	log     *slog.Logger
	streams map[string][]Event
}

func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{
		log:     slog.Default().With(slog.String("log", "memory")),
		streams: map[string][]Event{},
	}
}

func (l *InMemoryLog) ReadForward(_ context.Context, streamID string, from Version, maxCount int) (Slice, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, ok := l.streams[streamID]
	if !ok || len(events) == 0 {
		return Slice{Tail: EmptyVersion}, ErrStreamNotFound
	}

	sl := Slice{Tail: events[len(events)-1].Index}
	for _, e := range events {
		if e.Index < from {
			continue
		}
		sl.Events = append(sl.Events, e)
		if maxCount > 0 && len(sl.Events) >= maxCount {
			break
		}
	}
	return sl, nil
}

func (l *InMemoryLog) ReadBackward(_ context.Context, streamID string, before Version, maxCount int) (Slice, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, ok := l.streams[streamID]
	if !ok || len(events) == 0 {
		return Slice{Tail: EmptyVersion}, ErrStreamNotFound
	}

	sl := Slice{Tail: events[len(events)-1].Index}

	end := len(events)
	if before >= 0 {
		end = min(end, int(before))
	}
	start := end
	if maxCount > 0 {
		start = max(0, end-maxCount)
	} else {
		start = 0
	}
	sl.Events = append(sl.Events, events[start:end]...)
	return sl, nil
}

func (l *InMemoryLog) Append(_ context.Context, streamID string, expect Version, events []Event) (Version, error) {
	if len(events) == 0 {
		return EmptyVersion, ErrNoEvents
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		cur     = l.streams[streamID]
		curTail = EmptyVersion
	)
	if len(cur) > 0 {
		curTail = cur[len(cur)-1].Index
	}
	if curTail != expect {
		return EmptyVersion, fmt.Errorf(
			"%w: expected version %d, stream %q is at %d",
			ErrVersionConflict, expect, streamID, curTail,
		)
	}

	for i, e := range events {
		if err := e.Validate(); err != nil {
			return EmptyVersion, err
		}
		if want := expect + Version(i) + 1; e.Index != want {
			return EmptyVersion, fmt.Errorf("event index %d out of sequence, want %d", e.Index, want)
		}
	}

	l.streams[streamID] = append(cur, events...)
	tail := events[len(events)-1].Index

	l.log.Debug(
		"append",
		slog.String("stream", streamID),
		slog.Int("num_events", len(events)),
		tail.SlogAttrWithKey("tail"),
	)

	return tail, nil
}

var _ Log = (*InMemoryLog)(nil)
