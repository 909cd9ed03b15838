package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSubDelivery(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "user:alice")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "user:alice", `{"type":"friend.request"}`))

	select {
	case msg := <-ch:
		assert.Equal(t, "user:alice", msg.Channel)
		assert.Contains(t, msg.Payload, "friend.request")
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestPubSubOtherChannelNotDelivered(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "user:alice")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "user:bob", "hi"))

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPubSubCancelClosesChannel(t *testing.T) {
	ps := NewPubSub(8)
	ch, cancel, err := ps.Subscribe(context.Background(), "user:alice")
	require.NoError(t, err)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after cancel must not panic or block.
	require.NoError(t, ps.Publish(context.Background(), "user:alice", "late"))
}
