package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractReplayMessage_Success(t *testing.T) {
	diag, err := json.Marshal(map[string]any{
		"outbox_id":     "outbox-1",
		"payload":       json.RawMessage(`{"order_id":"ORD-1"}`),
		"publish_error": "kafka: broker unreachable",
	})
	require.NoError(t, err)

	envelope, err := json.Marshal(map[string]any{
		"id":             "outbox-1",
		"aggregate_type": "order",
		"aggregate_id":   "ORD-1",
		"event_type":     "order.delivered",
		"payload":        json.RawMessage(diag),
	})
	require.NoError(t, err)

	replay, err := extractReplayMessage(envelope)
	require.NoError(t, err)
	require.Equal(t, "ORD-1", replay.Key)
	require.Equal(t, "order.delivered", replay.EventType)
	require.JSONEq(t, `{"order_id":"ORD-1"}`, string(replay.Payload))
	require.Equal(t, "kafka: broker unreachable", replay.PublishError)
}

func TestExtractReplayMessage_FallsBackToOutboxID(t *testing.T) {
	envelope := []byte(`{"id":"outbox-7","event_type":"stock.low","payload":{"payload":{"product_id":"netflix"}}}`)

	replay, err := extractReplayMessage(envelope)
	require.NoError(t, err)
	require.Equal(t, "outbox-7", replay.Key)
}

func TestExtractReplayMessage_Invalid(t *testing.T) {
	cases := map[string][]byte{
		"not json":           []byte("garbage"),
		"no event type":      []byte(`{"id":"x","payload":{"payload":{}}}`),
		"no inner payload":   []byte(`{"id":"x","event_type":"order.delivered","payload":{"outbox_id":"x"}}`),
		"diagnostics broken": []byte(`{"id":"x","event_type":"order.delivered","payload":"oops"}`),
	}
	for name, value := range cases {
		_, err := extractReplayMessage(value)
		require.Error(t, err, name)
	}
}
