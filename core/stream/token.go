package stream

import "log/slog"

// Version is the zero-based index of an event within its stream. The
// version of a stream is the index of its last event; EmptyVersion denotes
// a stream with no events. Version is the unit of optimistic concurrency
// control: appends are conditioned on the writer's last known version
// matching the log's actual tail.
type Version int64

// EmptyVersion is the version of a stream that holds no events.
const EmptyVersion Version = -1

func (v Version) Int64() int64                         { return int64(v) }
func (v Version) SlogAttr() slog.Attr                  { return newSlogVersionAttr("version", v) }
func (v Version) SlogAttrWithKey(key string) slog.Attr { return newSlogVersionAttr(key, v) }

func newSlogVersionAttr(key string, v Version) slog.Attr { return slog.Int64(key, int64(v)) }

// Token records the position a load has reached within a stream.
type Token struct {
	// StreamVersion is the index of the last event the folded state
	// accounts for, EmptyVersion for a virgin stream.
	StreamVersion Version
	// CompactionIndex is the index of the most recent known resync point,
	// EmptyVersion when none has been observed. The sync engine uses it to
	// decide when a new unfold is due.
	CompactionIndex Version
}

func (t Token) slogGroup() slog.Attr {
	return slog.Group(
		"token",
		t.StreamVersion.SlogAttr(),
		t.CompactionIndex.SlogAttrWithKey("compaction_index"),
	)
}

// StreamState pairs a fold-consistent state value with the token it
// corresponds to. A StreamState is never mutated after construction; a
// reload supersedes it with a new value.
type StreamState[S any] struct {
	Token Token
	Value S
}
