package testing

import (
	"testing"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFileTests executes all file operation tests.
func (suite *StoreTestSuite) RunFileTests(t *testing.T) {
	t.Run("CreateAndGet", suite.testFileCreateAndGet)
	t.Run("Update", suite.testFileUpdate)
	t.Run("Find_NewestFirstWithLimit", suite.testFindNewestFirst)
	t.Run("Find_ViewScope", suite.testFindViewScope)
	t.Run("Find_OwnerFilters", suite.testFindOwnerFilters)
	t.Run("Find_Categories", suite.testFindCategories)
	t.Run("Find_Title", suite.testFindTitle)
	t.Run("MarkOwnerFiles_AndDue", suite.testMarkOwnerFiles)
	t.Run("RemoveFile_Atomic", suite.testRemoveFile)
	t.Run("RemoveFile_ClampsUsage", suite.testRemoveFileClamps)
	t.Run("RemoveFile_OwnerGone", suite.testRemoveFileOwnerGone)
	t.Run("ListContentIDs", suite.testListContentIDs)
}

func (suite *StoreTestSuite) testFileCreateAndGet(t *testing.T) {
	store := suite.store(t)
	owner := mustCreateUser(t, store, "alice")
	f := mustCreateFile(t, store, owner, "holiday", metadata.VisibilityPublic, 0)

	got, err := store.GetFile(testContext(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, "holiday", got.Title)
	assert.Equal(t, metadata.VisibilityPublic, got.Visibility)
	assert.Equal(t, int64(100), got.SizeBytes)
	assert.False(t, got.MarkedForDeletion)
	assert.Nil(t, got.DeletionScheduledAt)

	count, err := store.CountFiles(testContext())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.GetFile(testContext(), "missing")
	requireCode(t, err, metadata.ErrNotFound)
}

func (suite *StoreTestSuite) testFileUpdate(t *testing.T) {
	store := suite.store(t)
	owner := mustCreateUser(t, store, "alice")
	f := mustCreateFile(t, store, owner, "draft", metadata.VisibilityPrivate, 0)

	f.Title = "final"
	f.Visibility = metadata.VisibilityUnlisted
	due := at(60)
	f.MarkedForDeletion = true
	f.DeletionScheduledAt = &due
	require.NoError(t, store.UpdateFile(testContext(), f))

	got, err := store.GetFile(testContext(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.Equal(t, metadata.VisibilityUnlisted, got.Visibility)
	require.NotNil(t, got.DeletionScheduledAt)
	assert.True(t, got.DeletionScheduledAt.Equal(due))

	requireCode(t, store.UpdateFile(testContext(), &metadata.File{ID: "missing"}), metadata.ErrNotFound)
}

func (suite *StoreTestSuite) testFindNewestFirst(t *testing.T) {
	store := suite.store(t)
	owner := mustCreateUser(t, store, "alice")
	oldest := mustCreateFile(t, store, owner, "a", metadata.VisibilityPublic, 1)
	middle := mustCreateFile(t, store, owner, "b", metadata.VisibilityPublic, 2)
	newest := mustCreateFile(t, store, owner, "c", metadata.VisibilityPublic, 3)

	all, err := store.FindFiles(testContext(), metadata.FileQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, fileIDs(all))

	limited, err := store.FindFiles(testContext(), metadata.FileQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, middle.ID}, fileIDs(limited))
}

func (suite *StoreTestSuite) testFindViewScope(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")

	public := mustCreateFile(t, store, bob, "public", metadata.VisibilityPublic, 1)
	unlisted := mustCreateFile(t, store, bob, "unlisted", metadata.VisibilityUnlisted, 2)
	granted := mustCreateFile(t, store, bob, "granted", metadata.VisibilityPrivate, 3)
	mustCreateFile(t, store, bob, "secret", metadata.VisibilityPrivate, 4)
	own := mustCreateFile(t, store, alice, "own", metadata.VisibilityPrivate, 5)

	require.NoError(t, store.ReplaceGrants(ctx, granted.ID, []string{alice.ID}))
	grantedIDs, err := store.GrantedFileIDs(ctx, alice.ID)
	require.NoError(t, err)

	got, err := store.FindFiles(ctx, metadata.FileQuery{
		Scope: &metadata.ViewScope{ViewerID: alice.ID, GrantedIDs: grantedIDs},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{own.ID, granted.ID, unlisted.ID, public.ID}, fileIDs(got))
}

func (suite *StoreTestSuite) testFindOwnerFilters(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	carol := mustCreateUser(t, store, "carol")

	fa := mustCreateFile(t, store, alice, "a", metadata.VisibilityPublic, 1)
	fb := mustCreateFile(t, store, bob, "b", metadata.VisibilityPublic, 2)
	fc := mustCreateFile(t, store, carol, "c", metadata.VisibilityPublic, 3)

	got, err := store.FindFiles(ctx, metadata.FileQuery{OwnerID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{fb.ID}, fileIDs(got))

	got, err = store.FindFiles(ctx, metadata.FileQuery{OwnerIn: []string{alice.ID, carol.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{fc.ID, fa.ID}, fileIDs(got))

	got, err = store.FindFiles(ctx, metadata.FileQuery{OwnerIn: []string{}})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.FindFiles(ctx, metadata.FileQuery{ExcludeOwners: []string{carol.ID, bob.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{fa.ID}, fileIDs(got))
}

func (suite *StoreTestSuite) testFindCategories(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	owner := mustCreateUser(t, store, "alice")

	img := mustCreateFile(t, store, owner, "img", metadata.VisibilityPublic, 1)
	img.Category = metadata.CategoryImage
	require.NoError(t, store.UpdateFile(ctx, img))

	vid := mustCreateFile(t, store, owner, "vid", metadata.VisibilityPublic, 2)
	vid.Category = metadata.CategoryVideo
	require.NoError(t, store.UpdateFile(ctx, vid))

	doc := mustCreateFile(t, store, owner, "doc", metadata.VisibilityPublic, 3)

	media := []metadata.Category{metadata.CategoryImage, metadata.CategoryVideo}

	got, err := store.FindFiles(ctx, metadata.FileQuery{Categories: media})
	require.NoError(t, err)
	assert.Equal(t, []string{vid.ID, img.ID}, fileIDs(got))

	got, err = store.FindFiles(ctx, metadata.FileQuery{ExcludeCategories: media})
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, fileIDs(got))
}

func (suite *StoreTestSuite) testFindTitle(t *testing.T) {
	store := suite.store(t)
	owner := mustCreateUser(t, store, "alice")
	match := mustCreateFile(t, store, owner, "Summer Holiday", metadata.VisibilityPublic, 1)
	mustCreateFile(t, store, owner, "Tax return", metadata.VisibilityPublic, 2)

	got, err := store.FindFiles(testContext(), metadata.FileQuery{TitleContains: "holi"})
	require.NoError(t, err)
	assert.Equal(t, []string{match.ID}, fileIDs(got))
}

func (suite *StoreTestSuite) testMarkOwnerFiles(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")

	a1 := mustCreateFile(t, store, alice, "a1", metadata.VisibilityPublic, 1)
	a2 := mustCreateFile(t, store, alice, "a2", metadata.VisibilityPrivate, 2)
	b1 := mustCreateFile(t, store, bob, "b1", metadata.VisibilityPublic, 3)

	n, err := store.MarkOwnerFiles(ctx, alice.ID, at(60))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.GetFile(ctx, a1.ID)
	require.NoError(t, err)
	assert.True(t, got.MarkedForDeletion)
	require.NotNil(t, got.DeletionScheduledAt)
	assert.True(t, got.DeletionScheduledAt.Equal(at(60)))

	before := at(59)
	due, err := store.FindFiles(ctx, metadata.FileQuery{DueBy: &before})
	require.NoError(t, err)
	assert.Empty(t, due)

	after := at(60)
	due, err = store.FindFiles(ctx, metadata.FileQuery{DueBy: &after})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a1.ID, a2.ID}, fileIDs(due))

	visible, err := store.FindFiles(ctx, metadata.FileQuery{HideDueAt: &after})
	require.NoError(t, err)
	assert.Equal(t, []string{b1.ID}, fileIDs(visible))
}

func (suite *StoreTestSuite) testRemoveFile(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	owner := mustCreateUser(t, store, "alice")
	other := mustCreateUser(t, store, "bob")
	require.NoError(t, store.SetStorageUsed(ctx, owner.ID, 300))

	f := mustCreateFile(t, store, owner, "doc", metadata.VisibilityPrivate, 0)
	keep := mustCreateFile(t, store, owner, "keep", metadata.VisibilityPrivate, 1)

	require.NoError(t, store.ReplaceGrants(ctx, f.ID, []string{other.ID}))
	require.NoError(t, store.ReplaceGrants(ctx, keep.ID, []string{other.ID}))
	c := &metadata.Comment{FileID: f.ID, AuthorID: other.ID, Text: "nice", CreatedAt: baseTime}
	require.NoError(t, store.CreateComment(ctx, c))
	kc := &metadata.Comment{FileID: keep.ID, AuthorID: other.ID, Text: "kept", CreatedAt: baseTime}
	require.NoError(t, store.CreateComment(ctx, kc))

	removed, err := store.RemoveFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, removed.ID)
	assert.Equal(t, f.ContentID, removed.ContentID)

	_, err = store.GetFile(ctx, f.ID)
	requireCode(t, err, metadata.ErrNotFound)

	_, err = store.GetComment(ctx, c.ID)
	requireCode(t, err, metadata.ErrNotFound)

	has, err := store.HasGrant(ctx, f.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, has)

	u, err := store.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), u.UsedBytes)

	// Unrelated rows are untouched.
	_, err = store.GetComment(ctx, kc.ID)
	require.NoError(t, err)
	has, err = store.HasGrant(ctx, keep.ID, other.ID)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = store.RemoveFile(ctx, f.ID)
	requireCode(t, err, metadata.ErrNotFound)
}

func (suite *StoreTestSuite) testRemoveFileClamps(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	owner := mustCreateUser(t, store, "alice")
	require.NoError(t, store.SetStorageUsed(ctx, owner.ID, 40))

	f := mustCreateFile(t, store, owner, "doc", metadata.VisibilityPublic, 0)
	_, err := store.RemoveFile(ctx, f.ID)
	require.NoError(t, err)

	u, err := store.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.UsedBytes)
}

func (suite *StoreTestSuite) testRemoveFileOwnerGone(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	owner := mustCreateUser(t, store, "alice")
	f := mustCreateFile(t, store, owner, "doc", metadata.VisibilityPublic, 0)

	require.NoError(t, store.DeleteUser(ctx, owner.ID))

	_, err := store.RemoveFile(ctx, f.ID)
	require.NoError(t, err)

	_, err = store.GetFile(ctx, f.ID)
	requireCode(t, err, metadata.ErrNotFound)
}

func (suite *StoreTestSuite) testListContentIDs(t *testing.T) {
	store := suite.store(t)
	owner := mustCreateUser(t, store, "alice")
	f1 := mustCreateFile(t, store, owner, "a", metadata.VisibilityPublic, 1)
	f2 := mustCreateFile(t, store, owner, "b", metadata.VisibilityPublic, 2)

	ids, err := store.ListContentIDs(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f1.ContentID, f2.ContentID}, ids)
}

// RunGrantTests executes access grant tests.
func (suite *StoreTestSuite) RunGrantTests(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	owner := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	carol := mustCreateUser(t, store, "carol")
	f := mustCreateFile(t, store, owner, "doc", metadata.VisibilityPrivate, 0)

	require.NoError(t, store.ReplaceGrants(ctx, f.ID, []string{bob.ID, carol.ID}))
	grants, err := store.ListGrants(ctx, f.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{bob.ID, carol.ID}, grants)

	require.NoError(t, store.ReplaceGrants(ctx, f.ID, []string{carol.ID}))
	has, err := store.HasGrant(ctx, f.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, has)
	has, err = store.HasGrant(ctx, f.ID, carol.ID)
	require.NoError(t, err)
	assert.True(t, has)

	ids, err := store.GrantedFileIDs(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.ID}, ids)

	require.NoError(t, store.ReplaceGrants(ctx, f.ID, nil))
	grants, err = store.ListGrants(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

// RunCommentTests executes comment tests.
func (suite *StoreTestSuite) RunCommentTests(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	owner := mustCreateUser(t, store, "alice")
	f := mustCreateFile(t, store, owner, "doc", metadata.VisibilityPublic, 0)

	first := &metadata.Comment{FileID: f.ID, AuthorID: owner.ID, Text: "first", CreatedAt: at(1)}
	second := &metadata.Comment{FileID: f.ID, AuthorID: owner.ID, ParentID: "", Text: "second", CreatedAt: at(2)}
	require.NoError(t, store.CreateComment(ctx, second))
	require.NoError(t, store.CreateComment(ctx, first))

	reply := &metadata.Comment{FileID: f.ID, AuthorID: owner.ID, ParentID: first.ID, Text: "reply", CreatedAt: at(3)}
	require.NoError(t, store.CreateComment(ctx, reply))

	list, err := store.ListComments(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Text)
	assert.Equal(t, "second", list[1].Text)
	assert.Equal(t, first.ID, list[2].ParentID)

	require.NoError(t, store.DeleteComment(ctx, first.ID))
	_, err = store.GetComment(ctx, first.ID)
	requireCode(t, err, metadata.ErrNotFound)
	requireCode(t, store.DeleteComment(ctx, first.ID), metadata.ErrNotFound)

	err = store.CreateComment(ctx, &metadata.Comment{FileID: "missing", AuthorID: owner.ID, Text: "x", CreatedAt: baseTime})
	requireCode(t, err, metadata.ErrNotFound)
}
