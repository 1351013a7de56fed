package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamNotFound is returned by Log reads for streams that hold no
	// events. Callers treat it as an empty stream, a virgin aggregate is a
	// valid state folded from zero events.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrVersionConflict is returned by Log.Append when the expected
	// version does not match the stream tail. The sync engine recovers
	// from it internally; it only escapes through
	// ErrConcurrencyLimitExceeded.
	ErrVersionConflict = errors.New("version conflict")

	// ErrConcurrencyLimitExceeded is returned once a sync exhausted its
	// attempt budget with a conflict on every attempt.
	ErrConcurrencyLimitExceeded = errors.New("concurrency retry limit exceeded")

	// ErrAmbiguousAppend is returned when the outcome of an append is
	// unknown, e.g. the connection failed after the server may have
	// committed. It is surfaced, never retried, since a blind retry could
	// duplicate an already-committed append.
	ErrAmbiguousAppend = errors.New("append outcome ambiguous")

	// ErrUnknownEventType is returned by Codec.Encode for values that are
	// not part of the registered event set.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrUnfoldChecksum is returned by the loader when an unfold payload
	// does not match the checksum recorded in its metadata.
	ErrUnfoldChecksum = errors.New("unfold checksum mismatch")

	// ErrNoEvents is returned by Log.Append when called without events.
	ErrNoEvents = errors.New("no events to append")
)

func errConfig(msg string) error { return fmt.Errorf("stream: %s", msg) }
