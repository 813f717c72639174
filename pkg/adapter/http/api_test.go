package httpadapter

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": "password-other",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "already_exists", errorCode(t, rec))
	})

	t.Run("invalid registration is rejected", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"username": "bob",
			"email":    "not-an-email",
			"password": "password-bob",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "alice",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", errorCode(t, rec))
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token is unauthorized", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/me", "not.a.token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me hides the password hash", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/me", alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")

		var me accountView
		decode(t, rec, &me)
		assert.Equal(t, alice.ID, me.ID)
		assert.Equal(t, "alice@example.com", me.Email)
		assert.EqualValues(t, 1<<20, me.QuotaBytes)
	})

	t.Run("profile update", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/v1/me", alice.Token, map[string]string{"display_name": "Alice A."})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var me accountView
		decode(t, rec, &me)
		assert.Equal(t, "Alice A.", me.DisplayName)
	})

	t.Run("password change", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/me/password", alice.Token, map[string]string{
			"current_password": "password-alice",
			"new_password":     "a-brand-new-password",
		})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "alice",
			"password": "a-brand-new-password",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestFileLifecycle(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")
	bob := api.signup("bob")
	payload := []byte("hello, mosaic")

	rec := api.upload(alice.Token, "notes.txt", payload, map[string]string{
		"title":      "Notes",
		"visibility": "public",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "content_id")

	var public fileView
	decode(t, rec, &public)
	assert.Equal(t, "Notes", public.Title)
	assert.EqualValues(t, len(payload), public.SizeBytes)

	rec = api.upload(alice.Token, "secret.txt", []byte("private"), map[string]string{"visibility": "private"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var private fileView
	decode(t, rec, &private)
	assert.Equal(t, "secret.txt", private.Title, "title defaults to the file name")

	t.Run("public file is visible to others", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/files/"+public.ID, bob.Token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("private file is hidden from others", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/files/"+private.ID, bob.Token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("download streams the bytes", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/files/"+public.ID+"/download", bob.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, payload, rec.Body.Bytes())
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment"))
	})

	t.Run("search lists visible files only", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/files?q=", bob.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var files []fileView
		decode(t, rec, &files)
		require.Len(t, files, 1)
		assert.Equal(t, public.ID, files[0].ID)
	})

	t.Run("granting access through update", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/v1/files/"+private.ID, alice.Token, map[string]any{
			"title":             "Shared secret",
			"allowed_usernames": []string{"bob"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = api.do(http.MethodGet, "/api/v1/files/"+private.ID, bob.Token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = api.do(http.MethodGet, "/api/v1/files/"+private.ID+"/grants", alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var users []userView
		decode(t, rec, &users)
		require.Len(t, users, 1)
		assert.Equal(t, "bob", users[0].Username)
	})

	t.Run("only owners may modify", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/v1/files/"+public.ID, bob.Token, map[string]any{"title": "Mine now"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = api.do(http.MethodDelete, "/api/v1/files/"+public.ID, bob.Token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("delete releases the quota", func(t *testing.T) {
		rec := api.do(http.MethodDelete, "/api/v1/files/"+public.ID, alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"removed"`)

		rec = api.do(http.MethodGet, "/api/v1/files/"+public.ID, alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = api.do(http.MethodGet, "/api/v1/me", alice.Token, nil)
		var me accountView
		decode(t, rec, &me)
		assert.EqualValues(t, len("private"), me.UsedBytes)
	})
}

func TestUploadLimits(t *testing.T) {
	api := newTestAPI(t)
	admin := api.loginAdmin()
	bob := api.signup("bob")

	t.Run("oversize upload is a validation error", func(t *testing.T) {
		rec := api.upload(bob.Token, "big.bin", bytes.Repeat([]byte{1}, testMaxUpload+1), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("over quota upload is rejected", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/v1/admin/users/"+bob.ID, admin.Token, map[string]any{"quota_bytes": 10})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = api.upload(bob.Token, "twenty.bin", bytes.Repeat([]byte{1}, 20), nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "quota_exceeded", errorCode(t, rec))

		rec = api.upload(bob.Token, "ten.bin", bytes.Repeat([]byte{1}, 10), nil)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("missing file part", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/files", bob.Token, map[string]string{"title": "nothing"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestComments(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")
	bob := api.signup("bob")

	rec := api.upload(alice.Token, "song.mp3", []byte("la la la"), map[string]string{"visibility": "public"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var f fileView
	decode(t, rec, &f)
	assert.Equal(t, "audio", string(f.Category))

	rec = api.do(http.MethodPost, "/api/v1/files/"+f.ID+"/comments", bob.Token, map[string]string{"text": "**great** track"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var top struct {
		ID string `json:"id"`
	}
	decode(t, rec, &top)

	rec = api.do(http.MethodPost, "/api/v1/files/"+f.ID+"/comments", alice.Token, map[string]string{
		"text":      "thanks",
		"parent_id": top.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/v1/files/"+f.ID+"/comments", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var tree []commentView
	decode(t, rec, &tree)
	require.Len(t, tree, 1)
	assert.Contains(t, tree[0].HTML, "<strong>great</strong>")
	require.NotNil(t, tree[0].Author)
	assert.Equal(t, "bob", tree[0].Author.Username)
	require.Len(t, tree[0].Replies, 1)

	t.Run("owner is notified", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/notifications?unread=true", alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Notifications []struct {
				Kind string `json:"kind"`
			} `json:"notifications"`
			Unread int `json:"unread"`
		}
		decode(t, rec, &body)
		assert.Equal(t, 1, body.Unread)
		require.Len(t, body.Notifications, 1)
		assert.Equal(t, "comment", body.Notifications[0].Kind)
	})

	t.Run("empty comment is rejected", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/files/"+f.ID+"/comments", bob.Token, map[string]string{"text": ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("author deletes their comment", func(t *testing.T) {
		rec := api.do(http.MethodDelete, "/api/v1/comments/"+top.ID, bob.Token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestFriendsAndBlocks(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")
	bob := api.signup("bob")

	rec := api.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, map[string]string{"username": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_request", errorCode(t, rec))

	rec = api.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/friends/requests", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []friendRequestView
	decode(t, rec, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].From.Username)

	rec = api.do(http.MethodPost, "/api/v1/friends/requests/"+pending[0].ID+"/accept", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/v1/friends", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var friends []userView
	decode(t, rec, &friends)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	rec = api.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_friends", errorCode(t, rec))

	t.Run("block supersedes friendship", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/blocks", bob.Token, map[string]string{"username": "alice"})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = api.do(http.MethodGet, "/api/v1/friends", alice.Token, nil)
		var friends []userView
		decode(t, rec, &friends)
		assert.Empty(t, friends)

		rec = api.do(http.MethodPost, "/api/v1/messages/bob", alice.Token, map[string]string{"text": "hi?"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "blocked", errorCode(t, rec))

		rec = api.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, map[string]string{"username": "bob"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = api.do(http.MethodGet, "/api/v1/blocks", bob.Token, nil)
		var blocked []userView
		decode(t, rec, &blocked)
		require.Len(t, blocked, 1)
		assert.Equal(t, "alice", blocked[0].Username)
	})

	t.Run("unblock", func(t *testing.T) {
		rec := api.do(http.MethodDelete, "/api/v1/blocks/alice", bob.Token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = api.do(http.MethodPost, "/api/v1/messages/bob", alice.Token, map[string]string{"text": "hi again"})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/blocks", bob.Token, map[string]string{"username": "nobody"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMessagesAndNotifications(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")
	carol := api.signup("carol")

	rec := api.do(http.MethodPost, "/api/v1/messages/carol", alice.Token, map[string]string{"text": "hello carol"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/v1/messages/alice", alice.Token, map[string]string{"text": "talking to myself"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "self_reference", errorCode(t, rec))

	rec = api.do(http.MethodGet, "/api/v1/messages", carol.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var threads []threadView
	decode(t, rec, &threads)
	require.Len(t, threads, 1)
	assert.Equal(t, 1, threads[0].Unread)
	assert.Equal(t, "alice", threads[0].Peer.Username)

	rec = api.do(http.MethodGet, "/api/v1/messages/alice", carol.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello carol")

	dave := api.signup("dave")
	rec = api.do(http.MethodGet, "/api/v1/messages/alice", dave.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"thread_id":""`)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)
	rec = api.do(http.MethodGet, "/api/v1/messages", dave.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/v1/notifications", carol.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Notifications []struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"notifications"`
		Unread int `json:"unread"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "message", body.Notifications[0].Kind)
	id := body.Notifications[0].ID

	// Alice cannot read or purge Carol's notification
	rec = api.do(http.MethodPost, "/api/v1/notifications/"+id+"/read", alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(http.MethodPost, "/api/v1/notifications/purge", carol.Token, map[string]any{"ids": []string{id}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":0`)

	rec = api.do(http.MethodPost, "/api/v1/notifications/"+id+"/read", carol.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/notifications/purge", carol.Token, map[string]any{"ids": []string{id}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":1`)
}

func TestAdmin(t *testing.T) {
	api := newTestAPI(t)
	admin := api.loginAdmin()
	bob := api.signup("bob")

	rec := api.upload(bob.Token, "clip.mp4", []byte("frames"), map[string]string{"visibility": "public"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("non admins are forbidden", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/admin/stats", bob.Token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/admin/stats", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"users":2,"banned":0,"files":1}`, rec.Body.String())
	})

	t.Run("create user", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/admin/users", admin.Token, map[string]string{
			"username": "moderator",
			"email":    "mod@example.com",
			"password": "moderator-password",
			"role":     "ADMIN",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"role":"ADMIN"`)
		assert.Contains(t, rec.Body.String(), `"graylisted":false`)
	})

	t.Run("reset password", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/admin/users/"+bob.ID+"/reset-password", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Password string `json:"password"`
		}
		decode(t, rec, &body)
		require.NotEmpty(t, body.Password)

		rec = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "bob", "password": body.Password})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ban locks the account out and schedules files", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/admin/users/"+bob.ID+"/ban", admin.Token, map[string]string{"reason": "spam"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"scheduled_files":1`)

		rec = api.do(http.MethodGet, "/api/v1/me", bob.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = api.do(http.MethodGet, "/api/v1/admin/files", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var files []fileView
		decode(t, rec, &files)
		require.Len(t, files, 1)
		assert.True(t, files[0].MarkedForDeletion)
	})

	t.Run("graylist lists banned identities", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/admin/graylist", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entries []struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Reason   string `json:"reason"`
		}
		decode(t, rec, &entries)
		require.Len(t, entries, 1)
		assert.Equal(t, "bob", entries[0].Username)
		assert.Equal(t, "bob@example.com", entries[0].Email)
		assert.Equal(t, "spam", entries[0].Reason)
	})

	t.Run("unban restores access", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/admin/users/"+bob.ID+"/unban", admin.Token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = api.do(http.MethodGet, "/api/v1/me", bob.Token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("sweep before grace keeps files", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/admin/sweep", admin.Token, map[string]bool{"orphans": true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Sweep   sweepView  `json:"sweep"`
			Orphans orphanView `json:"orphans"`
		}
		decode(t, rec, &body)
		assert.Equal(t, 0, body.Sweep.Due)
		assert.Equal(t, 1, body.Orphans.Referenced)
		assert.Equal(t, 0, body.Orphans.Orphaned)
	})

	t.Run("delete user removes files on the next sweep", func(t *testing.T) {
		rec := api.do(http.MethodDelete, "/api/v1/admin/users/"+bob.ID, admin.Token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = api.do(http.MethodPost, "/api/v1/admin/sweep", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Sweep sweepView `json:"sweep"`
		}
		decode(t, rec, &body)
		assert.Equal(t, 1, body.Sweep.Due)
		assert.Equal(t, 1, body.Sweep.Removed)

		rec = api.do(http.MethodGet, "/api/v1/me", bob.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPasswordRecovery(t *testing.T) {
	api := newTestAPI(t)
	api.signup("carol")

	rec := api.do(http.MethodPost, "/api/v1/auth/recover", "", map[string]string{"username": "carol"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	known := rec.Body.String()

	rec = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "carol", "password": "password-carol"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/auth/recover", "", map[string]string{"username": "nobody"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, known, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/v1/auth/recover", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
