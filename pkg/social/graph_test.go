package social

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T, names ...string) (*Graph, metadata.Store, map[string]string) {
	t.Helper()
	store := memory.NewMemoryMetadataStore()
	ids := make(map[string]string, len(names))
	for _, name := range names {
		u := &metadata.User{Username: name, Email: name + "@example.com", Role: metadata.RoleUser, CreatedAt: epoch, UpdatedAt: epoch}
		require.NoError(t, store.CreateUser(context.Background(), u))
		ids[name] = u.ID
	}
	return NewGraph(store, clockwork.NewFakeClockAt(epoch)), store, ids
}

func requireCode(t *testing.T, err error, code metadata.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, metadata.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestSendRequestValidation(t *testing.T) {
	g, _, u := setup(t, "alice", "bob")
	ctx := context.Background()

	_, err := g.SendRequest(ctx, u["alice"], u["alice"])
	requireCode(t, err, metadata.ErrSelfReference)

	_, err = g.SendRequest(ctx, u["alice"], "ghost")
	requireCode(t, err, metadata.ErrNotFound)

	req, err := g.SendRequest(ctx, u["alice"], u["bob"])
	require.NoError(t, err)
	assert.Equal(t, metadata.RequestPending, req.Status)

	_, err = g.SendRequest(ctx, u["alice"], u["bob"])
	requireCode(t, err, metadata.ErrDuplicateRequest)

	_, err = g.Accept(ctx, u["bob"], req.ID)
	require.NoError(t, err)

	_, err = g.SendRequest(ctx, u["bob"], u["alice"])
	requireCode(t, err, metadata.ErrAlreadyFriends)
}

func TestAcceptCreatesOneFriendship(t *testing.T) {
	g, store, u := setup(t, "alice", "bob")
	ctx := context.Background()

	req, err := g.SendRequest(ctx, u["alice"], u["bob"])
	require.NoError(t, err)

	// Only the recipient may act on the request.
	_, err = g.Accept(ctx, u["alice"], req.ID)
	requireCode(t, err, metadata.ErrNotFound)

	friendship, err := g.Accept(ctx, u["bob"], req.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.NewPair(u["alice"], u["bob"]), friendship.Pair)

	_, err = g.Accept(ctx, u["bob"], req.ID)
	requireCode(t, err, metadata.ErrValidation)

	list, err := store.ListFriendships(ctx, u["alice"])
	require.NoError(t, err)
	assert.Len(t, list, 1)

	friends, err := g.Friends(ctx, u["bob"])
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "alice", friends[0].Username)
}

func TestDecline(t *testing.T) {
	g, store, u := setup(t, "alice", "bob")
	ctx := context.Background()

	req, err := g.SendRequest(ctx, u["alice"], u["bob"])
	require.NoError(t, err)
	require.NoError(t, g.Decline(ctx, u["bob"], req.ID))

	got, err := store.GetFriendRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.RequestDeclined, got.Status)

	pending, err := g.PendingRequests(ctx, u["bob"])
	require.NoError(t, err)
	assert.Empty(t, pending)

	requireCode(t, g.Decline(ctx, u["bob"], "missing"), metadata.ErrNotFound)
}

func TestBlockSupersedesFriendship(t *testing.T) {
	g, _, u := setup(t, "alice", "bob")
	ctx := context.Background()

	req, err := g.SendRequest(ctx, u["alice"], u["bob"])
	require.NoError(t, err)
	_, err = g.Accept(ctx, u["bob"], req.ID)
	require.NoError(t, err)

	require.NoError(t, g.Block(ctx, u["alice"], u["bob"]))
	require.NoError(t, g.Block(ctx, u["alice"], u["bob"]))

	friends, err := g.AreFriends(ctx, u["alice"], u["bob"])
	require.NoError(t, err)
	assert.False(t, friends)

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		blocked, err := g.AreBlocked(ctx, u[pair[0]], u[pair[1]])
		require.NoError(t, err)
		assert.True(t, blocked)

		_, err = g.SendRequest(ctx, u[pair[0]], u[pair[1]])
		requireCode(t, err, metadata.ErrBlocked)
	}
}

func TestBlockDeclinesPendingRequest(t *testing.T) {
	g, store, u := setup(t, "a", "b")
	ctx := context.Background()

	req, err := g.SendRequest(ctx, u["a"], u["b"])
	require.NoError(t, err)

	require.NoError(t, g.Block(ctx, u["b"], u["a"]))

	got, err := store.GetFriendRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.RequestDeclined, got.Status)

	_, err = g.SendRequest(ctx, u["a"], u["b"])
	requireCode(t, err, metadata.ErrBlocked)
}

func TestAcceptAfterBlockIsRejected(t *testing.T) {
	g, store, u := setup(t, "a", "b")
	ctx := context.Background()

	// b asks a, then blocks a; a's accept must not create a friendship.
	req, err := g.SendRequest(ctx, u["b"], u["a"])
	require.NoError(t, err)
	require.NoError(t, g.Block(ctx, u["b"], u["a"]))

	_, err = g.Accept(ctx, u["a"], req.ID)
	requireCode(t, err, metadata.ErrBlocked)

	got, err := store.GetFriendRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.RequestDeclined, got.Status)

	friends, err := g.AreFriends(ctx, u["a"], u["b"])
	require.NoError(t, err)
	assert.False(t, friends)
}

func TestUnblockIsDirectional(t *testing.T) {
	g, _, u := setup(t, "alice", "bob")
	ctx := context.Background()

	require.NoError(t, g.Block(ctx, u["alice"], u["bob"]))
	require.NoError(t, g.Block(ctx, u["bob"], u["alice"]))

	require.NoError(t, g.Unblock(ctx, u["alice"], u["bob"]))
	blocked, err := g.AreBlocked(ctx, u["alice"], u["bob"])
	require.NoError(t, err)
	assert.True(t, blocked, "bob's block must remain")

	require.NoError(t, g.Unblock(ctx, u["bob"], u["alice"]))
	blocked, err = g.AreBlocked(ctx, u["alice"], u["bob"])
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestHiddenOwnersAndBlockedList(t *testing.T) {
	g, _, u := setup(t, "alice", "bob", "carol", "dave")
	ctx := context.Background()

	require.NoError(t, g.Block(ctx, u["alice"], u["bob"]))
	require.NoError(t, g.Block(ctx, u["carol"], u["alice"]))

	hidden, err := g.HiddenOwners(ctx, u["alice"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{u["bob"], u["carol"]}, hidden)

	blocked, err := g.Blocked(ctx, u["alice"])
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "bob", blocked[0].Username)

	requireCode(t, g.Block(ctx, u["dave"], u["dave"]), metadata.ErrSelfReference)
}

func TestUnfriendEitherOrder(t *testing.T) {
	g, _, u := setup(t, "alice", "bob")
	ctx := context.Background()

	req, err := g.SendRequest(ctx, u["alice"], u["bob"])
	require.NoError(t, err)
	_, err = g.Accept(ctx, u["bob"], req.ID)
	require.NoError(t, err)

	ids, err := g.FriendIDs(ctx, u["alice"])
	require.NoError(t, err)
	assert.Equal(t, []string{u["bob"]}, ids)

	require.NoError(t, g.Unfriend(ctx, u["bob"], u["alice"]))
	ids, err = g.VisibleFriendIDs(ctx, u["alice"])
	require.NoError(t, err)
	assert.Empty(t, ids)
}
