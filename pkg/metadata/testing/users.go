package testing

import (
	"testing"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunUserTests executes all user operation tests.
func (suite *StoreTestSuite) RunUserTests(t *testing.T) {
	t.Run("CreateAndGet", suite.testUserCreateAndGet)
	t.Run("UniqueUsername", suite.testUserUniqueUsername)
	t.Run("UniqueEmail", suite.testUserUniqueEmail)
	t.Run("GetByUsername_CaseInsensitive", suite.testUserGetByUsername)
	t.Run("GetByUsernames", suite.testUserGetByUsernames)
	t.Run("FindUsers", suite.testFindUsers)
	t.Run("Update", suite.testUserUpdate)
	t.Run("SetStorageUsed", suite.testSetStorageUsed)
	t.Run("Delete_Cascades", suite.testUserDeleteCascades)
	t.Run("Count", suite.testUserCount)
	t.Run("NotFound", suite.testUserNotFound)
}

func (suite *StoreTestSuite) testUserCreateAndGet(t *testing.T) {
	store := suite.store(t)
	u := mustCreateUser(t, store, "alice")

	got, err := store.GetUser(testContext(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, metadata.RoleUser, got.Role)
	assert.Equal(t, int64(1000), got.QuotaBytes)
	assert.True(t, got.CreatedAt.Equal(baseTime))
}

func (suite *StoreTestSuite) testUserUniqueUsername(t *testing.T) {
	store := suite.store(t)
	mustCreateUser(t, store, "alice")

	err := store.CreateUser(testContext(), &metadata.User{
		Username: "ALICE",
		Email:    "other@example.com",
		Role:     metadata.RoleUser,
	})
	requireCode(t, err, metadata.ErrAlreadyExists)
}

func (suite *StoreTestSuite) testUserUniqueEmail(t *testing.T) {
	store := suite.store(t)
	mustCreateUser(t, store, "alice")

	err := store.CreateUser(testContext(), &metadata.User{
		Username: "alice2",
		Email:    "Alice@Example.com",
		Role:     metadata.RoleUser,
	})
	requireCode(t, err, metadata.ErrAlreadyExists)
}

func (suite *StoreTestSuite) testUserGetByUsername(t *testing.T) {
	store := suite.store(t)
	u := mustCreateUser(t, store, "Alice")

	got, err := store.GetUserByUsername(testContext(), "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func (suite *StoreTestSuite) testUserGetByUsernames(t *testing.T) {
	store := suite.store(t)
	a := mustCreateUser(t, store, "alice")
	b := mustCreateUser(t, store, "bob")
	mustCreateUser(t, store, "carol")

	got, err := store.GetUsersByUsernames(testContext(), []string{"bob", "alice", "nobody"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{got[0].ID, got[1].ID})
}

func (suite *StoreTestSuite) testFindUsers(t *testing.T) {
	store := suite.store(t)
	alice := mustCreateUser(t, store, "alice")
	mustCreateUser(t, store, "alicia")
	bob := mustCreateUser(t, store, "bob")

	got, err := store.FindUsers(testContext(), metadata.UserQuery{Text: "ali"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, "alicia", got[1].Username)

	got, err = store.FindUsers(testContext(), metadata.UserQuery{Text: "ali", ExcludeIDs: []string{alice.ID}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alicia", got[0].Username)

	got, err = store.FindUsers(testContext(), metadata.UserQuery{Text: "alice", Exact: true})
	require.NoError(t, err)
	require.Len(t, got, 1)

	bob.DisplayName = "Bobby Tables"
	require.NoError(t, store.UpdateUser(testContext(), bob))
	got, err = store.FindUsers(testContext(), metadata.UserQuery{Text: "bobby TABLES", Exact: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bob.ID, got[0].ID)

	got, err = store.FindUsers(testContext(), metadata.UserQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func (suite *StoreTestSuite) testUserUpdate(t *testing.T) {
	store := suite.store(t)
	u := mustCreateUser(t, store, "alice")
	mustCreateUser(t, store, "bob")

	u.DisplayName = "Alice A."
	u.Banned = true
	u.QuotaBytes = 5000
	require.NoError(t, store.UpdateUser(testContext(), u))

	got, err := store.GetUser(testContext(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.DisplayName)
	assert.True(t, got.Banned)
	assert.Equal(t, int64(5000), got.QuotaBytes)

	u.Username = "bob"
	requireCode(t, store.UpdateUser(testContext(), u), metadata.ErrAlreadyExists)
}

func (suite *StoreTestSuite) testSetStorageUsed(t *testing.T) {
	store := suite.store(t)
	u := mustCreateUser(t, store, "alice")

	require.NoError(t, store.SetStorageUsed(testContext(), u.ID, 640))

	got, err := store.GetUser(testContext(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(640), got.UsedBytes)
	assert.Equal(t, "alice", got.Username)

	requireCode(t, store.SetStorageUsed(testContext(), "missing", 1), metadata.ErrNotFound)
}

func (suite *StoreTestSuite) testUserDeleteCascades(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	a := mustCreateUser(t, store, "alice")
	b := mustCreateUser(t, store, "bob")
	f := mustCreateFile(t, store, b, "doc", metadata.VisibilityPrivate, 0)

	require.NoError(t, store.CreateFriendship(ctx, &metadata.Friendship{Pair: metadata.NewPair(a.ID, b.ID), CreatedAt: baseTime}))
	_, err := store.CreateBlock(ctx, &metadata.Block{BlockerID: b.ID, BlockedID: a.ID, CreatedAt: baseTime})
	require.NoError(t, err)
	require.NoError(t, store.CreateFriendRequest(ctx, &metadata.FriendRequest{FromID: a.ID, ToID: b.ID, Status: metadata.RequestPending, CreatedAt: baseTime}))
	require.NoError(t, store.ReplaceGrants(ctx, f.ID, []string{a.ID}))
	require.NoError(t, store.CreateNotifications(ctx, []*metadata.Notification{{RecipientID: a.ID, Kind: metadata.KindMessage, CreatedAt: baseTime}}))

	require.NoError(t, store.DeleteUser(ctx, a.ID))

	_, err = store.GetUser(ctx, a.ID)
	requireCode(t, err, metadata.ErrNotFound)

	exists, err := store.FriendshipExists(ctx, metadata.NewPair(a.ID, b.ID))
	require.NoError(t, err)
	assert.False(t, exists)

	blocks, err := store.ListBlocks(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	reqs, err := store.FindFriendRequests(ctx, metadata.FriendRequestQuery{ToID: b.ID})
	require.NoError(t, err)
	assert.Empty(t, reqs)

	grants, err := store.ListGrants(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	notes, err := store.ListNotifications(ctx, a.ID, false)
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = store.GetFile(ctx, f.ID)
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testUserCount(t *testing.T) {
	store := suite.store(t)
	mustCreateUser(t, store, "alice")
	b := mustCreateUser(t, store, "bob")
	b.Banned = true
	require.NoError(t, store.UpdateUser(testContext(), b))

	total, banned, err := store.CountUsers(testContext())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, banned)
}

func (suite *StoreTestSuite) testUserNotFound(t *testing.T) {
	store := suite.store(t)

	_, err := store.GetUser(testContext(), "missing")
	requireCode(t, err, metadata.ErrNotFound)

	_, err = store.GetUserByUsername(testContext(), "missing")
	requireCode(t, err, metadata.ErrNotFound)

	requireCode(t, store.DeleteUser(testContext(), "missing"), metadata.ErrNotFound)
	requireCode(t, store.UpdateUser(testContext(), &metadata.User{ID: "missing", Username: "x"}), metadata.ErrNotFound)
}

// RunGraylistTests executes graylist tests.
func (suite *StoreTestSuite) RunGraylistTests(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()

	require.NoError(t, store.AddGraylistEntry(ctx, &metadata.GraylistEntry{
		Username: "mallory",
		Email:    "mallory@example.com",
		Reason:   "spam",
		BannedAt: baseTime,
	}))

	byName, err := store.FindGraylistEntries(ctx, "MALLORY", "")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "spam", byName[0].Reason)

	byEmail, err := store.FindGraylistEntries(ctx, "someone", "mallory@example.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	none, err := store.FindGraylistEntries(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.AddGraylistEntry(ctx, &metadata.GraylistEntry{
		Username: "trudy",
		Email:    "trudy@example.com",
		Reason:   "abuse",
		BannedAt: baseTime.Add(time.Hour),
	}))

	all, err := store.ListGraylist(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "trudy", all[0].Username)
	assert.Equal(t, "mallory", all[1].Username)
	assert.NotEmpty(t, all[0].ID)
}
