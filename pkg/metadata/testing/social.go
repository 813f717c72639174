package testing

import (
	"testing"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRelationshipTests executes friend request, friendship and block tests.
func (suite *StoreTestSuite) RunRelationshipTests(t *testing.T) {
	t.Run("FriendRequests", suite.testFriendRequests)
	t.Run("Friendship_CanonicalPair", suite.testFriendshipCanonical)
	t.Run("Blocks_Directional", suite.testBlocksDirectional)
}

func (suite *StoreTestSuite) testFriendRequests(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	carol := mustCreateUser(t, store, "carol")

	older := &metadata.FriendRequest{FromID: alice.ID, ToID: bob.ID, Status: metadata.RequestPending, CreatedAt: at(1), UpdatedAt: at(1)}
	newer := &metadata.FriendRequest{FromID: carol.ID, ToID: bob.ID, Status: metadata.RequestPending, CreatedAt: at(2), UpdatedAt: at(2)}
	require.NoError(t, store.CreateFriendRequest(ctx, older))
	require.NoError(t, store.CreateFriendRequest(ctx, newer))

	incoming, err := store.FindFriendRequests(ctx, metadata.FriendRequestQuery{ToID: bob.ID, Status: metadata.RequestPending})
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, newer.ID, incoming[0].ID)
	assert.Equal(t, older.ID, incoming[1].ID)

	outgoing, err := store.FindFriendRequests(ctx, metadata.FriendRequestQuery{FromID: alice.ID})
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	require.NoError(t, store.SetFriendRequestStatus(ctx, older.ID, metadata.RequestAccepted, at(5)))
	got, err := store.GetFriendRequest(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.RequestAccepted, got.Status)
	assert.True(t, got.UpdatedAt.Equal(at(5)))

	pending, err := store.FindFriendRequests(ctx, metadata.FriendRequestQuery{ToID: bob.ID, Status: metadata.RequestPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, newer.ID, pending[0].ID)

	requireCode(t, store.SetFriendRequestStatus(ctx, "missing", metadata.RequestDeclined, at(6)), metadata.ErrNotFound)
	_, err = store.GetFriendRequest(ctx, "missing")
	requireCode(t, err, metadata.ErrNotFound)
}

func (suite *StoreTestSuite) testFriendshipCanonical(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	carol := mustCreateUser(t, store, "carol")

	// Stored once regardless of argument order.
	require.NoError(t, store.CreateFriendship(ctx, &metadata.Friendship{Pair: metadata.NewPair(alice.ID, bob.ID), CreatedAt: baseTime}))
	require.NoError(t, store.CreateFriendship(ctx, &metadata.Friendship{Pair: metadata.NewPair(bob.ID, alice.ID), CreatedAt: at(1)}))
	require.NoError(t, store.CreateFriendship(ctx, &metadata.Friendship{Pair: metadata.NewPair(alice.ID, carol.ID), CreatedAt: baseTime}))

	list, err := store.ListFriendships(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = store.ListFriendships(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, alice.ID, list[0].Pair.Other(bob.ID))

	exists, err := store.FriendshipExists(ctx, metadata.NewPair(bob.ID, alice.ID))
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.DeleteFriendship(ctx, metadata.NewPair(bob.ID, alice.ID)))
	exists, err = store.FriendshipExists(ctx, metadata.NewPair(alice.ID, bob.ID))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.DeleteFriendship(ctx, metadata.NewPair(alice.ID, bob.ID)))
}

func (suite *StoreTestSuite) testBlocksDirectional(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	carol := mustCreateUser(t, store, "carol")

	created, err := store.CreateBlock(ctx, &metadata.Block{BlockerID: alice.ID, BlockedID: bob.ID, CreatedAt: baseTime})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateBlock(ctx, &metadata.Block{BlockerID: alice.ID, BlockedID: bob.ID, CreatedAt: at(1)})
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := store.BlockExists(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.BlockExists(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.CreateBlock(ctx, &metadata.Block{BlockerID: carol.ID, BlockedID: alice.ID, CreatedAt: baseTime})
	require.NoError(t, err)

	blocks, err := store.ListBlocks(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	blocks, err = store.ListBlocks(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, alice.ID, blocks[0].BlockerID)

	require.NoError(t, store.DeleteBlock(ctx, alice.ID, bob.ID))
	exists, err = store.BlockExists(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.DeleteBlock(ctx, alice.ID, bob.ID))
}
