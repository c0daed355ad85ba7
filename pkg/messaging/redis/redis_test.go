package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rdv-api/pkg/messaging"
)

func newTestBroker(t *testing.T) (messaging.Broker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	broker, err := NewRedisBroker(Config{URL: "redis://" + mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })
	return broker, mr
}

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	broker, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := broker.Subscribe(ctx, "rdv:appointments")
	require.NoError(t, err)

	publisher := messaging.NewPublisher(broker, "rdv:appointments")
	require.NoError(t, publisher.Publish(ctx, "appointment.created", map[string]interface{}{"id": 7}))

	select {
	case raw := <-msgs:
		var event messaging.Event
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.Equal(t, "appointment.created", event.Type)
		assert.Equal(t, map[string]interface{}{"id": float64(7)}, event.Payload)
		assert.False(t, event.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisBroker_SubscriptionEndsWithContext(t *testing.T) {
	broker, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := broker.Subscribe(ctx, "rdv:appointments")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestNewRedisBroker_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.SetError("ERR server down")

	_, err := NewRedisBroker(Config{URL: "redis://" + addr, MaxRetries: 1}, nil)
	assert.Error(t, err)
}

func TestNewRedisBroker_BadURL(t *testing.T) {
	_, err := NewRedisBroker(Config{URL: "://nope"}, nil)
	assert.Error(t, err)
}

func TestRedisBroker_PingContext(t *testing.T) {
	broker, mr := newTestBroker(t)
	pinger := broker.(*RedisBroker)

	require.NoError(t, pinger.PingContext(context.Background()))

	mr.SetError("ERR server down")
	assert.Error(t, pinger.PingContext(context.Background()))
}
