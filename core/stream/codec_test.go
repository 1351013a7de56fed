package stream_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ma3yTa/equinox/core/stream"
)

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := cartCodec()

	for _, tc := range []any{
		&itemAdded{SKU: "sku-1", Qty: 3},
		&itemRemoved{SKU: "sku-1"},
		&cartSnapshotted{Items: map[string]int{"sku-1": 3, "sku-2": 1}},
	} {
		ev, err := codec.Encode(tc)
		require.NoError(t, err)
		require.NotEmpty(t, ev.ID)
		require.Equal(t, tc.(stream.TypedEvent).EventType(), ev.Type)
		require.False(t, ev.OccurredAt.IsZero())

		v, err := codec.TryDecode(ev)
		require.NoError(t, err)
		require.Equal(t, tc, v)
	}
}

func TestJSONCodec_EncodeDeterministic(t *testing.T) {
	codec := cartCodec()

	a, err := codec.Encode(&itemAdded{SKU: "sku-1", Qty: 3})
	require.NoError(t, err)
	b, err := codec.Encode(&itemAdded{SKU: "sku-1", Qty: 3})
	require.NoError(t, err)

	require.Equal(t, a.Type, b.Type)
	require.JSONEq(t, string(a.Data), string(b.Data))
	require.NotEqual(t, a.ID, b.ID)
}

func TestJSONCodec_EncodeUnregistered(t *testing.T) {
	codec := stream.NewJSONCodec()

	_, err := codec.Encode(&itemAdded{SKU: "sku-1", Qty: 1})
	require.ErrorIs(t, err, stream.ErrUnknownEventType)

	_, err = codec.Encode("not an event")
	require.ErrorIs(t, err, stream.ErrUnknownEventType)
}

func TestJSONCodec_TryDecodeUnknownType(t *testing.T) {
	codec := cartCodec()

	v, err := codec.TryDecode(stream.Event{
		Type: "discount_applied",
		Data: json.RawMessage(`{"percent":10}`),
	})
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestJSONCodec_TryDecodeMalformedPayload(t *testing.T) {
	codec := cartCodec()

	_, err := codec.TryDecode(stream.Event{
		Type: "item_added",
		Data: json.RawMessage(`{"sku":`),
	})
	require.Error(t, err)
}

type notTyped struct{}

func TestJSONCodec_RegisterRequiresTypedEvent(t *testing.T) {
	codec := stream.NewJSONCodec()
	require.Panics(t, func() {
		codec.Register(stream.Variant[notTyped]())
	})
}
