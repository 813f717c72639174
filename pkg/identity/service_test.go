package identity

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type scheduled struct {
	ownerID string
	grace   time.Duration
}

type recordingScheduler struct {
	grace time.Duration
	calls []scheduled
}

func (r *recordingScheduler) ScheduleOwnerDeletion(ctx context.Context, ownerID string) (int, error) {
	return r.ScheduleOwnerDeletionAfter(ctx, ownerID, r.grace)
}

func (r *recordingScheduler) ScheduleOwnerDeletionAfter(_ context.Context, ownerID string, grace time.Duration) (int, error) {
	r.calls = append(r.calls, scheduled{ownerID: ownerID, grace: grace})
	return 0, nil
}

type fixture struct {
	store *memory.MemoryMetadataStore
	sched *recordingScheduler
	svc   *Service
	admin access.Viewer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewMemoryMetadataStore(),
		sched: &recordingScheduler{grace: 72 * time.Hour},
	}
	f.svc = NewService(f.store, NewBcryptHasher(bcrypt.MinCost), f.sched, clockwork.NewFakeClockAt(epoch), Config{})

	admin, created, err := f.svc.EnsureFirstAdmin(context.Background())
	require.NoError(t, err)
	require.True(t, created)
	f.admin = access.ViewerOf(admin)
	return f
}

func (f *fixture) register(t *testing.T, username string) *metadata.User {
	t.Helper()
	res, err := f.svc.Register(context.Background(), NewAccount{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return res.User
}

func requireCode(t *testing.T, err error, code metadata.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, metadata.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestEnsureFirstAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, f.admin.IsAdmin())

	_, created, err := f.svc.EnsureFirstAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := f.svc.Authenticate(ctx, "admin", "adminpass")
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, u.ID)
}

func TestRegisterDefaults(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice")

	assert.Equal(t, metadata.RoleUser, u.Role)
	assert.Equal(t, DefaultQuota, u.QuotaBytes)
	assert.Equal(t, "alice", u.DisplayName)
	assert.NotEqual(t, "password123", u.PasswordHash)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  NewAccount
	}{
		{"ShortUsername", NewAccount{Username: "ab", Email: "ab@example.com", Password: "password123"}},
		{"BadCharacters", NewAccount{Username: "bad name", Email: "x@example.com", Password: "password123"}},
		{"BadEmail", NewAccount{Username: "carol", Email: "nope", Password: "password123"}},
		{"ShortPassword", NewAccount{Username: "carol", Email: "c@example.com", Password: "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tc.req)
			requireCode(t, err, metadata.ErrValidation)
		})
	}

	f.register(t, "alice")
	_, err := f.svc.Register(ctx, NewAccount{Username: "ALICE", Email: "other@example.com", Password: "password123"})
	requireCode(t, err, metadata.ErrAlreadyExists)
}

func TestRegisterCannotChooseRole(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Register(context.Background(), NewAccount{
		Username: "mallory", Email: "m@example.com", Password: "password123", Role: metadata.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, metadata.RoleUser, res.User.Role)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	_, err := f.svc.Authenticate(ctx, "alice", "wrong-password")
	requireCode(t, err, metadata.ErrUnauthenticated)

	_, err = f.svc.Authenticate(ctx, "nobody", "password123")
	requireCode(t, err, metadata.ErrUnauthenticated)

	u, err := f.svc.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = f.svc.Ban(ctx, f.admin, alice.ID, "spam")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, "alice", "password123")
	requireCode(t, err, metadata.ErrUnauthenticated)
}

func TestBanGraylistsAndSchedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	_, err := f.svc.Ban(ctx, access.ViewerOf(alice), f.admin.ID, "")
	requireCode(t, err, metadata.ErrForbidden)

	_, err = f.svc.Ban(ctx, f.admin, f.admin.ID, "")
	requireCode(t, err, metadata.ErrSelfReference)

	_, err = f.svc.Ban(ctx, f.admin, alice.ID, "spam")
	require.NoError(t, err)
	require.Len(t, f.sched.calls, 1)
	assert.Equal(t, scheduled{ownerID: alice.ID, grace: 72 * time.Hour}, f.sched.calls[0])

	entries, err := f.store.FindGraylistEntries(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "spam", entries[0].Reason)

	// Banning again does not duplicate the graylist entry.
	_, err = f.svc.Ban(ctx, f.admin, alice.ID, "again")
	require.NoError(t, err)
	entries, err = f.store.FindGraylistEntries(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Unban clears the flag only.
	require.NoError(t, f.svc.Unban(ctx, f.admin, alice.ID))
	u, err := f.svc.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, u.Banned)
	assert.Len(t, f.sched.calls, 2)

	// A new account reusing the email is flagged, not refused.
	res, err := f.svc.CreateUser(ctx, f.admin, NewAccount{Username: "alice2", Email: "alice@example.com", Password: "password123"})
	require.Error(t, err, "email is still taken by alice")
	assert.Nil(t, res)

	require.NoError(t, f.svc.DeleteUser(ctx, f.admin, alice.ID))
	res, err = f.svc.CreateUser(ctx, f.admin, NewAccount{Username: "alice2", Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, res.Graylisted)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	quota := int64(500)
	role := metadata.RoleAdmin
	res, err := f.svc.UpdateUser(ctx, f.admin, alice.ID, UserUpdate{QuotaBytes: &quota, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.User.QuotaBytes)
	assert.Equal(t, metadata.RoleAdmin, res.User.Role)

	// Own role changes are ignored.
	demoted := metadata.RoleUser
	res, err = f.svc.UpdateUser(ctx, f.admin, f.admin.ID, UserUpdate{Role: &demoted})
	require.NoError(t, err)
	assert.Equal(t, metadata.RoleAdmin, res.User.Role)

	banned := true
	res, err = f.svc.UpdateUser(ctx, f.admin, alice.ID, UserUpdate{Banned: &banned})
	require.NoError(t, err)
	assert.True(t, res.User.Banned)

	bad := "not an email"
	_, err = f.svc.UpdateUser(ctx, f.admin, alice.ID, UserUpdate{Email: &bad})
	requireCode(t, err, metadata.ErrValidation)

	_, err = f.svc.UpdateUser(ctx, access.Viewer{ID: alice.ID, Role: metadata.RoleUser}, alice.ID, UserUpdate{})
	requireCode(t, err, metadata.ErrForbidden)
}

func TestUpdateUser_SelfBanLeavesAccountUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quota := int64(1)
	name := "Renamed"
	banned := true
	_, err := f.svc.UpdateUser(ctx, f.admin, f.admin.ID, UserUpdate{QuotaBytes: &quota, DisplayName: &name, Banned: &banned})
	requireCode(t, err, metadata.ErrSelfReference)

	u, err := f.svc.Get(ctx, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultQuota, u.QuotaBytes)
	assert.Equal(t, "Administrator", u.DisplayName)
	assert.False(t, u.Banned)
	assert.Equal(t, epoch, u.UpdatedAt)
}

func TestGraylistListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(epoch)
	f.svc.clock = clk

	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	_, err := f.svc.Ban(ctx, f.admin, alice.ID, "spam")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = f.svc.Ban(ctx, f.admin, bob.ID, "abuse")
	require.NoError(t, err)

	entries, err := f.svc.Graylist(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].Username)
	assert.Equal(t, "alice", entries[1].Username)

	_, err = f.svc.Graylist(ctx, access.ViewerOf(alice))
	requireCode(t, err, metadata.ErrForbidden)
}

func TestRecover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	require.NoError(t, f.svc.Recover(ctx, "alice"))
	_, err := f.svc.Authenticate(ctx, "alice", "password123")
	requireCode(t, err, metadata.ErrUnauthenticated)

	u, err := f.svc.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotEqual(t, alice.PasswordHash, u.PasswordHash)

	// Unknown accounts look the same to the caller.
	assert.NoError(t, f.svc.Recover(ctx, "nobody"))
}

func TestProfileAndPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	name := "Alice Liddell"
	u, err := f.svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", u.Name())

	requireCode(t, f.svc.ChangePassword(ctx, alice.ID, "wrong", "newpassword1"), metadata.ErrUnauthenticated)
	requireCode(t, f.svc.ChangePassword(ctx, alice.ID, "password123", "short"), metadata.ErrValidation)
	require.NoError(t, f.svc.ChangePassword(ctx, alice.ID, "password123", "newpassword1"))

	_, err = f.svc.Authenticate(ctx, "alice", "newpassword1")
	require.NoError(t, err)

	temp, err := f.svc.ResetPassword(ctx, f.admin, alice.ID)
	require.NoError(t, err)
	assert.Len(t, temp, 16)
	_, err = f.svc.Authenticate(ctx, "alice", temp)
	require.NoError(t, err)
}

func TestDeleteUserSchedulesImmediateDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	requireCode(t, f.svc.DeleteUser(ctx, f.admin, f.admin.ID), metadata.ErrSelfReference)

	require.NoError(t, f.svc.DeleteUser(ctx, f.admin, alice.ID))
	require.Len(t, f.sched.calls, 1)
	assert.Equal(t, scheduled{ownerID: alice.ID, grace: 0}, f.sched.calls[0])

	_, err := f.svc.Get(ctx, alice.ID)
	requireCode(t, err, metadata.ErrNotFound)
}

func TestStatsAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	f.register(t, "alicia")
	bob := f.register(t, "bob")

	_, err := f.svc.Ban(ctx, f.admin, bob.ID, "")
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Users)
	assert.Equal(t, 1, stats.Banned)
	assert.Equal(t, 0, stats.Files)

	_, err = f.svc.Stats(ctx, access.ViewerOf(alice))
	requireCode(t, err, metadata.ErrForbidden)

	found, err := f.svc.SearchUsers(ctx, alice.ID, "ali", true, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alicia", found[0].Username)

	found, err = f.svc.SearchUsers(ctx, alice.ID, "bob", false, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = f.store.CreateBlock(ctx, &metadata.Block{BlockerID: bob.ID, BlockedID: alice.ID, CreatedAt: epoch})
	require.NoError(t, err)
	found, err = f.svc.SearchUsers(ctx, alice.ID, "bob", false, 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}
