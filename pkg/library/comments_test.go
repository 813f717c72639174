package library

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCommentValidation(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	alice := e.user(t, "alice", 1000)
	bob := e.user(t, "bob", 1000)

	f := e.upload(t, alice, "Doc", "d.txt", "public", 1)
	other := e.upload(t, alice, "Other", "o.txt", "public", 1)
	private := e.upload(t, alice, "Private", "p.txt", "private", 1)

	_, err := e.lib.AddComment(ctx, bob, f.ID, "   ", "")
	requireCode(t, err, metadata.ErrValidation)

	_, err = e.lib.AddComment(ctx, bob, f.ID, strings.Repeat("é", MaxCommentLength+1), "")
	requireCode(t, err, metadata.ErrValidation)

	_, err = e.lib.AddComment(ctx, bob, f.ID, strings.Repeat("é", MaxCommentLength), "")
	require.NoError(t, err)

	_, err = e.lib.AddComment(ctx, bob, private.ID, "let me in", "")
	requireCode(t, err, metadata.ErrNotFound)

	onOther, err := e.lib.AddComment(ctx, bob, other.ID, "elsewhere", "")
	require.NoError(t, err)
	_, err = e.lib.AddComment(ctx, bob, f.ID, "reply", onOther.ID)
	requireCode(t, err, metadata.ErrValidation)

	_, err = e.lib.AddComment(ctx, bob, f.ID, "reply", "missing")
	requireCode(t, err, metadata.ErrValidation)
}

func TestCommentNotifications(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	alice := e.user(t, "alice", 1000)
	bob := e.user(t, "bob", 1000)
	carol := e.user(t, "carol", 1000)
	dave := e.user(t, "dave", 1000)

	f := e.upload(t, alice, "Song", "s.mp3", "private", 1, "bob", "carol")

	// Owner commenting on their own file notifies nobody but mentions.
	_, err := e.lib.AddComment(ctx, alice, f.ID, "thoughts @bob?", "")
	require.NoError(t, err)
	assertUnread(t, e, alice.ID, 0)
	assertUnread(t, e, bob.ID, 1)

	// dave cannot see the file, so mentioning him is silent.
	require.NoError(t, e.graph.Block(ctx, carol.ID, bob.ID))
	_, err = e.lib.AddComment(ctx, bob, f.ID, "@alice @carol @dave @bob", "")
	require.NoError(t, err)
	assertUnread(t, e, alice.ID, 2) // comment + mention
	assertUnread(t, e, carol.ID, 0) // blocked
	assertUnread(t, e, dave.ID, 0)  // no access
	assertUnread(t, e, bob.ID, 1)   // self-mention
}

func TestCommentNotifiesOwnerAcrossBlock(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	alice := e.user(t, "alice", 1000)
	bob := e.user(t, "bob", 1000)

	f := e.upload(t, alice, "Open", "o.txt", "public", 1)
	require.NoError(t, e.graph.Block(ctx, alice.ID, bob.ID))

	// Public files stay reachable by direct link, and the owner still
	// hears about comments on them.
	_, err := e.lib.AddComment(ctx, bob, f.ID, "nice", "")
	require.NoError(t, err)
	assertUnread(t, e, alice.ID, 1)

	list, err := e.notify.List(ctx, alice.ID, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, metadata.KindComment, list[0].Kind)
}

func assertUnread(t *testing.T, e *env, userID string, want int) {
	t.Helper()
	n, err := e.notify.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, want, n)
}

func TestCommentTree(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	alice := e.user(t, "alice", 1000)
	bob := e.user(t, "bob", 1000)

	f := e.upload(t, alice, "Doc", "d.txt", "public", 1)

	root, err := e.lib.AddComment(ctx, bob, f.ID, "first **bold**", "")
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	reply, err := e.lib.AddComment(ctx, alice, f.ID, "reply", root.ID)
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	nested, err := e.lib.AddComment(ctx, bob, f.ID, "reply to reply", reply.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, nested.ParentID, "threads stay one level deep")
	e.clock.Advance(time.Second)
	second, err := e.lib.AddComment(ctx, alice, f.ID, "second", "")
	require.NoError(t, err)

	tree, err := e.lib.Comments(ctx, bob, f.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, root.ID, tree[0].ID)
	assert.Contains(t, tree[0].HTML, "<strong>bold</strong>")
	assert.Equal(t, "bob", tree[0].Author.Username)
	require.Len(t, tree[0].Replies, 2)
	assert.Equal(t, reply.ID, tree[0].Replies[0].ID)
	assert.Equal(t, second.ID, tree[1].ID)

	// Deleting a parent promotes its replies.
	require.NoError(t, e.lib.DeleteComment(ctx, bob, root.ID))
	tree, err = e.lib.Comments(ctx, bob, f.ID)
	require.NoError(t, err)
	assert.Len(t, tree, 3)
}

func TestDeleteCommentPermissions(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	alice := e.user(t, "alice", 1000)
	bob := e.user(t, "bob", 1000)
	carol := e.user(t, "carol", 1000)
	admin := e.admin(t)

	f := e.upload(t, alice, "Doc", "d.txt", "public", 1)

	byBob := func() *metadata.Comment {
		c, err := e.lib.AddComment(ctx, bob, f.ID, "hello", "")
		require.NoError(t, err)
		return c
	}

	c := byBob()
	requireCode(t, e.lib.DeleteComment(ctx, carol, c.ID), metadata.ErrForbidden)
	require.NoError(t, e.lib.DeleteComment(ctx, bob, c.ID))
	requireCode(t, e.lib.DeleteComment(ctx, bob, c.ID), metadata.ErrNotFound)

	require.NoError(t, e.lib.DeleteComment(ctx, alice, byBob().ID))
	require.NoError(t, e.lib.DeleteComment(ctx, admin, byBob().ID))
}
