package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeKeepsPayload(t *testing.T) {
	msg := Message{
		EventID:       "evt-1",
		EventType:     "item_approved",
		AggregateType: "request_item",
		AggregateID:   "4d1b7a0e-5ad2-4c39-9a1e-1d1c0ad8b8f2",
		Payload:       json.RawMessage(`{"version":1}`),
	}
	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, msg.EventID, got.EventID)
	require.Equal(t, msg.AggregateID, got.AggregateID)
	require.JSONEq(t, `{"version":1}`, string(got.Payload))

	_, err = Decode([]byte("not json"))
	require.Error(t, err)
}

func TestBrokerFansOutToSubscribers(t *testing.T) {
	ctx := context.Background()
	broker := NewBroker()
	defer broker.Close()

	first, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	second, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, Message{EventID: "evt-1"}))

	for _, sub := range []Subscription{first, second} {
		select {
		case msg := <-sub.Events():
			require.Equal(t, "evt-1", msg.EventID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestBrokerDropsWhenSubscriberBufferFull(t *testing.T) {
	ctx := context.Background()
	broker := NewBroker()
	sub, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < subscriptionBuffer*2; i++ {
		require.NoError(t, broker.Publish(ctx, Message{EventID: "evt"}))
	}
	require.Len(t, sub.Events(), subscriptionBuffer)
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	broker := NewBroker()
	sub, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Events():
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Close())
}

func TestClosedBrokerRejectsUse(t *testing.T) {
	ctx := context.Background()
	broker := NewBroker()
	sub, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close())

	_, ok := <-sub.Events()
	require.False(t, ok)
	require.NoError(t, sub.Close())

	require.ErrorIs(t, broker.Publish(ctx, Message{}), ErrClosed)
	_, err = broker.Subscribe(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestPubSubMessageMapping(t *testing.T) {
	msg := Message{
		EventID:       "evt-9",
		EventType:     "request_submitted",
		AggregateType: "request",
		AggregateID:   "agg",
		Payload:       json.RawMessage(`{}`),
	}
	out := toPubSubMessage(msg)
	require.Equal(t, "request_submitted", out.Attributes["event_type"])
	require.Equal(t, []byte(`{}`), out.Data)

	back := fromPubSubMessage(out)
	require.Equal(t, msg.EventID, back.EventID)
	require.Equal(t, msg.AggregateType, back.AggregateType)

	empty := fromPubSubMessage(&gcppubsub.Message{})
	require.Empty(t, empty.EventID)
}

func TestConstructorsValidateInput(t *testing.T) {
	_, err := NewRedis(nil, "requests.changed", nil)
	require.Error(t, err)
	_, err = NewPubSub(nil, nil)
	require.Error(t, err)
}
