package messaging_test

import (
	"context"
	"testing"

	"github.com/soundmates/server/messaging"
	"github.com/soundmates/server/social"
	"github.com/soundmates/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServices(t *testing.T) (*messaging.Service, *social.Service) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		testutil.CreateUser(t, db, id)
	}
	return messaging.NewService(db, ps, zap.NewNop()),
		social.NewService(db, ps, zap.NewNop())
}

func befriend(t *testing.T, soc *social.Service, a, b string) int64 {
	t.Helper()
	require.NoError(t, soc.SendRequest(context.Background(), a, b))
	threadID, err := soc.AcceptRequest(context.Background(), b, a)
	require.NoError(t, err)
	return threadID
}

func TestDirectThreadID(t *testing.T) {
	msg, soc := newServices(t)
	ctx := context.Background()

	threadID := befriend(t, soc, "alice", "bob")

	got, err := msg.DirectThreadID(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, threadID, got)

	// Symmetric lookup.
	got, err = msg.DirectThreadID(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, threadID, got)

	_, err = msg.DirectThreadID(ctx, "alice", "carol")
	assert.ErrorIs(t, err, messaging.ErrThreadNotFound)
}

func TestAppendAndList(t *testing.T) {
	msg, soc := newServices(t)
	ctx := context.Background()

	threadID := befriend(t, soc, "alice", "bob")

	m1, err := msg.Append(ctx, threadID, "alice", "hey")
	require.NoError(t, err)
	m2, err := msg.Append(ctx, threadID, "bob", "hi back")
	require.NoError(t, err)
	m3, err := msg.Append(ctx, threadID, "alice", "concert friday?")
	require.NoError(t, err)

	msgs, err := msg.List(ctx, threadID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, m1.ID, msgs[0].ID)
	assert.Equal(t, m2.ID, msgs[1].ID)
	assert.Equal(t, m3.ID, msgs[2].ID)
	assert.Equal(t, "hey", msgs[0].Content)
	assert.Equal(t, "bob", msgs[1].AuthorID)

	msgs, err = msg.List(ctx, threadID, 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestAppendValidation(t *testing.T) {
	msg, soc := newServices(t)
	ctx := context.Background()

	threadID := befriend(t, soc, "alice", "bob")

	_, err := msg.Append(ctx, threadID, "alice", "")
	assert.ErrorIs(t, err, messaging.ErrInvalidMessage)

	_, err = msg.Append(ctx, threadID, "", "hello")
	assert.ErrorIs(t, err, messaging.ErrInvalidMessage)

	_, err = msg.Append(ctx, threadID, "carol", "let me in")
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)

	_, err = msg.Append(ctx, 999, "alice", "void")
	assert.ErrorIs(t, err, messaging.ErrThreadNotFound)
}

func TestRemoveIdempotentAndScoped(t *testing.T) {
	msg, soc := newServices(t)
	ctx := context.Background()

	threadID := befriend(t, soc, "alice", "bob")
	m, err := msg.Append(ctx, threadID, "alice", "delete me")
	require.NoError(t, err)

	// bob cannot delete alice's message; the delete matches nothing.
	require.NoError(t, msg.Remove(ctx, threadID, m.ID, "bob"))
	msgs, err := msg.List(ctx, threadID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	require.NoError(t, msg.Remove(ctx, threadID, m.ID, "alice"))
	require.NoError(t, msg.Remove(ctx, threadID, m.ID, "alice"))
	msgs, err = msg.List(ctx, threadID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistorySurvivesUnfriend(t *testing.T) {
	msg, soc := newServices(t)
	ctx := context.Background()

	threadID := befriend(t, soc, "alice", "bob")
	_, err := msg.Append(ctx, threadID, "alice", "before unfriend")
	require.NoError(t, err)

	require.NoError(t, soc.Unfriend(ctx, "alice", "bob"))

	got, err := msg.DirectThreadID(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, threadID, got)

	msgs, err := msg.List(ctx, threadID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
