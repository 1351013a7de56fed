package stream

// DecideFunc produces the candidate events for a command given the current
// folded state. Returning no events is a valid no-op outcome: the engine
// skips the append and returns the current state unchanged.
type DecideFunc[S any] func(state S) ([]any, error)

// Handler binds an aggregate's pure functions to the engine. Initial and
// Fold are required; Adopt and Snapshot are only needed when a compaction
// strategy is in play.
type Handler[S any] struct {
	// Initial returns the empty state a fresh stream folds from.
	Initial func() S

	// Fold applies decoded domain events to state, in order, and returns
	// the updated state. Fold must be pure; the engine never hands it
	// unfold events or events the codec did not recognize.
	Fold func(state S, events []any) S

	// Adopt seeds state from a decoded unfold event, reporting false when
	// the value is not an adoptable snapshot. Required for strategies that
	// match unfold events.
	Adopt func(v any) (S, bool)

	// Snapshot produces the unfold variant embedding the given state. Nil
	// disables unfold emission regardless of the compaction strategy.
	Snapshot func(state S) any
}

func (h Handler[S]) validate(strategy CompactionStrategy) error {
	if h.Initial == nil {
		return errConfig("Handler.Initial is required")
	}
	if h.Fold == nil {
		return errConfig("Handler.Fold is required")
	}
	if strategy != nil && h.Adopt == nil {
		return errConfig("Handler.Adopt is required when a compaction strategy is set")
	}
	return nil
}
