package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Ma3yTa/equinox/core/stream"
)

const (
	defaultSubjectPrefix = "equinox.streams"
	defaultStreamName    = "EQUINOX"
)

type LogConfig struct {
	Connect       Connector    // Connect creates the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix is the prefix events are published under
	StreamName    string       // StreamName is the JetStream stream holding all event subjects
}

// Log implements stream.Log on NATS JetStream. Each logical stream maps to
// one subject under the configured prefix; appends resolve the subject's
// tail and publish conditioned on the server's per-subject last-sequence
// expectation.
type Log struct {
	nc            *natsgo.Conn
	closeNc       closeFunc
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subjectPrefix string
	streamName    string
}

func NewLog(cfg LogConfig) (*Log, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNatsCon, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}
	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	log = log.With(
		slog.String("log", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subject_prefix", subjectPrefix),
	)

	log.Debug("ensuring stream")

	ctx, cancel := context.WithTimeout(context.Background(), 10*natsgo.DefaultTimeout)
	defer cancel()

	s, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
		FirstSeq: 1,
	})
	if err != nil {
		return nil, err
	}
	si, err := s.Info(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("ensured", slog.Any("stream", si.Config.Name))

	return &Log{
		nc:            nc,
		closeNc:       closeNatsCon,
		js:            js,
		stream:        s,
		log:           log,
		subjectPrefix: subjectPrefix,
		streamName:    streamName,
	}, nil
}

func (l *Log) Close() error {
	l.closeNc()
	l.log.Debug("closed log")
	return nil
}

func (l *Log) subjectFor(streamID string) string {
	return l.subjectPrefix + "." + streamID
}

func (l *Log) ReadForward(ctx context.Context, streamID string, from stream.Version, maxCount int) (stream.Slice, error) {
	tail, _, ok, err := l.tail(ctx, streamID)
	if err != nil {
		return stream.Slice{Tail: stream.EmptyVersion}, err
	}
	if !ok {
		return stream.Slice{Tail: stream.EmptyVersion}, stream.ErrStreamNotFound
	}

	sl := stream.Slice{Tail: tail.Index}
	if from > tail.Index {
		return sl, nil
	}

	err = l.scan(ctx, streamID, func(ev stream.Event) bool {
		if ev.Index < from {
			return true
		}
		sl.Events = append(sl.Events, ev)
		if maxCount > 0 && len(sl.Events) >= maxCount {
			return false
		}
		return ev.Index < tail.Index
	})
	if err != nil {
		return stream.Slice{Tail: stream.EmptyVersion}, err
	}
	return sl, nil
}

func (l *Log) ReadBackward(ctx context.Context, streamID string, before stream.Version, maxCount int) (stream.Slice, error) {
	tail, _, ok, err := l.tail(ctx, streamID)
	if err != nil {
		return stream.Slice{Tail: stream.EmptyVersion}, err
	}
	if !ok {
		return stream.Slice{Tail: stream.EmptyVersion}, stream.ErrStreamNotFound
	}

	limit := tail.Index + 1
	if before >= 0 && before < limit {
		limit = before
	}

	// JetStream has no reverse consumer; scan the subject and keep the
	// trailing window below the limit.
	sl := stream.Slice{Tail: tail.Index}
	err = l.scan(ctx, streamID, func(ev stream.Event) bool {
		if ev.Index >= limit {
			return false
		}
		sl.Events = append(sl.Events, ev)
		if maxCount > 0 && len(sl.Events) > maxCount {
			sl.Events = sl.Events[1:]
		}
		return true
	})
	if err != nil {
		return stream.Slice{Tail: stream.EmptyVersion}, err
	}
	return sl, nil
}

// Append publishes each event as one conditional message on the stream's
// subject. The batch is not transactional: a failure mid-batch leaves the
// already-published prefix in the stream, which is why such failures
// surface as stream.ErrAmbiguousAppend instead of being retried.
func (l *Log) Append(ctx context.Context, streamID string, expect stream.Version, events []stream.Event) (stream.Version, error) {
	if len(events) == 0 {
		return stream.EmptyVersion, stream.ErrNoEvents
	}

	// Several logical streams share one JetStream stream, so the sequence
	// of a subject's last message is a global stream sequence unrelated to
	// the event index. Resolve the subject's actual tail first; the
	// conditional publish below closes the window between this read and
	// the append.
	tail, lastSeq, ok, err := l.tail(ctx, streamID)
	if err != nil {
		return stream.EmptyVersion, err
	}
	switch {
	case !ok && expect != stream.EmptyVersion:
		return stream.EmptyVersion, fmt.Errorf(
			"%w: stream %q expected version %d, holds no events",
			stream.ErrVersionConflict, streamID, expect,
		)
	case ok && tail.Index != expect:
		return stream.EmptyVersion, fmt.Errorf(
			"%w: stream %q expected version %d, is at %d",
			stream.ErrVersionConflict, streamID, expect, tail.Index,
		)
	}

	subject := l.subjectFor(streamID)
	expectSeq := lastSeq // 0 means the subject must still hold no messages
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			return stream.EmptyVersion, err
		}

		msg := natsgo.NewMsg(subject)
		msg.Header.Set("x-event-type", ev.Type)
		msg.Header.Set("x-stream-id", streamID)

		data, err := json.Marshal(ev)
		if err != nil {
			return stream.EmptyVersion, err
		}
		msg.Data = data

		ack, err := l.js.PublishMsg(
			ctx,
			msg,
			jetstream.WithMsgID(ev.ID),
			jetstream.WithExpectLastSequencePerSubject(expectSeq),
		)
		if err != nil {
			if i > 0 {
				// part of the batch is already durable; the outcome of the
				// append as a whole is unknown to the caller
				return stream.EmptyVersion, fmt.Errorf(
					"%w: stream %q failed after %d of %d events: %v",
					stream.ErrAmbiguousAppend, streamID, i, len(events), err,
				)
			}
			if isWrongLastSequence(err) {
				return stream.EmptyVersion, fmt.Errorf(
					"%w: stream %q expected version %d: %v",
					stream.ErrVersionConflict, streamID, expect, err,
				)
			}
			return stream.EmptyVersion, fmt.Errorf("failed to append to subject %s: %w", subject, err)
		}
		expectSeq = ack.Sequence
	}

	return events[len(events)-1].Index, nil
}

func isWrongLastSequence(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// tail returns the most recent event of the stream together with the
// global stream sequence it is stored under, ok=false when the subject
// holds no messages.
func (l *Log) tail(ctx context.Context, streamID string) (stream.Event, uint64, bool, error) {
	lm, err := l.stream.GetLastMsgForSubject(ctx, l.subjectFor(streamID))
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return stream.Event{}, 0, false, nil
		}
		return stream.Event{}, 0, false, err
	}
	var ev stream.Event
	if err := json.Unmarshal(lm.Data, &ev); err != nil {
		return stream.Event{}, 0, false, fmt.Errorf("failed to decode tail of stream %q: %w", streamID, err)
	}
	return ev, lm.Sequence, true, nil
}

// scan replays the subject in order, invoking visit per event until visit
// returns false or the subject is exhausted.
func (l *Log) scan(ctx context.Context, streamID string, visit func(stream.Event) bool) error {
	cc, err := l.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy:  jetstream.DeliverAllPolicy,
		FilterSubjects: []string{l.subjectFor(streamID)},
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		mb, err := cc.FetchNoWait(100)
		if err != nil {
			return err
		}
		if mb.Error() != nil {
			return mb.Error()
		}

		empty := true
		for msg := range mb.Messages() {
			empty = false
			var ev stream.Event
			if err := json.Unmarshal(msg.Data(), &ev); err != nil {
				return fmt.Errorf("failed to decode message on %s: %w", msg.Subject(), err)
			}
			if !visit(ev) {
				return nil
			}
		}
		if empty {
			return nil
		}
	}
}

var _ stream.Log = (*Log)(nil)
