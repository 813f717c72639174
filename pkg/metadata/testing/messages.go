package testing

import (
	"testing"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMessageTests executes direct message thread tests.
func (suite *StoreTestSuite) RunMessageTests(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	carol := mustCreateUser(t, store, "carol")

	ab, err := store.GetOrCreateThread(ctx, metadata.NewPair(alice.ID, bob.ID), at(0))
	require.NoError(t, err)
	again, err := store.GetOrCreateThread(ctx, metadata.NewPair(bob.ID, alice.ID), at(5))
	require.NoError(t, err)
	assert.Equal(t, ab.ID, again.ID)

	ac, err := store.GetOrCreateThread(ctx, metadata.NewPair(alice.ID, carol.ID), at(1))
	require.NoError(t, err)

	send := func(thread *metadata.Thread, from, to *metadata.User, text string, minutes int) {
		t.Helper()
		require.NoError(t, store.CreateMessage(ctx, &metadata.Message{
			ThreadID:  thread.ID,
			FromID:    from.ID,
			ToID:      to.ID,
			Text:      text,
			CreatedAt: at(minutes),
		}))
	}
	send(ab, alice, bob, "hi", 2)
	send(ab, bob, alice, "hello", 3)
	send(ab, alice, bob, "how are you", 4)
	send(ac, alice, carol, "hey", 10)

	threads, err := store.ListThreads(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, ac.ID, threads[0].ID)
	assert.True(t, threads[0].UpdatedAt.Equal(at(10)))

	msgs, err := store.ListMessages(ctx, ab.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "how are you", msgs[2].Text)

	n, err := store.MarkMessagesRead(ctx, ab.ID, bob.ID, at(20))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.MarkMessagesRead(ctx, ab.ID, bob.ID, at(21))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	msgs, err = store.ListMessages(ctx, ab.ID)
	require.NoError(t, err)
	assert.NotNil(t, msgs[0].ReadAt)
	assert.Nil(t, msgs[1].ReadAt)

	got, err := store.GetThread(ctx, ab.ID)
	require.NoError(t, err)
	assert.True(t, got.Pair.Contains(alice.ID))
	assert.True(t, got.Pair.Contains(bob.ID))

	_, err = store.GetThread(ctx, "missing")
	requireCode(t, err, metadata.ErrNotFound)

	found, err := store.FindThread(ctx, metadata.NewPair(bob.ID, alice.ID))
	require.NoError(t, err)
	assert.Equal(t, ab.ID, found.ID)

	_, err = store.FindThread(ctx, metadata.NewPair(bob.ID, carol.ID))
	requireCode(t, err, metadata.ErrNotFound)
	threads, err = store.ListThreads(ctx, carol.ID)
	require.NoError(t, err)
	assert.Len(t, threads, 1, "lookup must not create a thread")

	err = store.CreateMessage(ctx, &metadata.Message{ThreadID: "missing", FromID: alice.ID, ToID: bob.ID, Text: "x", CreatedAt: baseTime})
	requireCode(t, err, metadata.ErrNotFound)
}

// RunNotificationTests executes notification inbox tests.
func (suite *StoreTestSuite) RunNotificationTests(t *testing.T) {
	store := suite.store(t)
	ctx := testContext()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")

	first := &metadata.Notification{RecipientID: alice.ID, Kind: metadata.KindComment, Message: "first", Link: "/files/1", CreatedAt: at(1)}
	second := &metadata.Notification{RecipientID: alice.ID, Kind: metadata.KindMention, Message: "second", Link: "/files/2", CreatedAt: at(2)}
	other := &metadata.Notification{RecipientID: bob.ID, Kind: metadata.KindMessage, Message: "other", CreatedAt: at(3)}
	require.NoError(t, store.CreateNotifications(ctx, []*metadata.Notification{first, second, other}))
	require.NotEmpty(t, first.ID)

	list, err := store.ListNotifications(ctx, alice.ID, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	unread, err := store.CountUnreadNotifications(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	// Ownership is enforced.
	changed, err := store.MarkNotificationRead(ctx, first.ID, bob.ID, at(5))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = store.MarkNotificationRead(ctx, first.ID, alice.ID, at(5))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.MarkNotificationRead(ctx, first.ID, alice.ID, at(6))
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := store.GetNotification(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadAt)
	assert.True(t, got.ReadAt.Equal(at(5)))

	unreadList, err := store.ListNotifications(ctx, alice.ID, true)
	require.NoError(t, err)
	require.Len(t, unreadList, 1)
	assert.Equal(t, second.ID, unreadList[0].ID)

	// Only read notifications owned by the caller are deleted.
	deleted, err := store.DeleteReadNotifications(ctx, alice.ID, []string{first.ID, second.ID, other.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetNotification(ctx, first.ID)
	requireCode(t, err, metadata.ErrNotFound)

	n, err := store.MarkAllNotificationsRead(ctx, alice.ID, at(7))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err = store.CountUnreadNotifications(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	unread, err = store.CountUnreadNotifications(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}
