package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/stretchr/testify/require"
)

// baseTime is a fixed, second-aligned instant so that every backend
// round-trips timestamps exactly.
var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testContext() context.Context {
	return context.Background()
}

// at returns baseTime shifted by the given number of minutes.
func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

// mustCreateUser stores a USER-role account with a 1000-byte quota.
func mustCreateUser(t *testing.T, store metadata.Store, username string) *metadata.User {
	t.Helper()
	u := &metadata.User{
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: username,
		Role:        metadata.RoleUser,
		QuotaBytes:  1000,
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
	}
	require.NoError(t, store.CreateUser(testContext(), u))
	require.NotEmpty(t, u.ID)
	return u
}

// mustCreateFile stores a file owned by owner. minutes offsets CreatedAt.
func mustCreateFile(t *testing.T, store metadata.Store, owner *metadata.User, title string, vis metadata.Visibility, minutes int) *metadata.File {
	t.Helper()
	f := &metadata.File{
		OwnerID:      owner.ID,
		Title:        title,
		OriginalName: title + ".bin",
		ContentID:    fmt.Sprintf("content-%s-%d", title, minutes),
		MimeType:     "application/octet-stream",
		Category:     metadata.CategoryOther,
		SizeBytes:    100,
		Visibility:   vis,
		CreatedAt:    at(minutes),
		UpdatedAt:    at(minutes),
	}
	require.NoError(t, store.CreateFile(testContext(), f))
	require.NotEmpty(t, f.ID)
	return f
}

func fileIDs(files []*metadata.File) []string {
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	return ids
}

func requireCode(t *testing.T, err error, code metadata.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	got, ok := metadata.CodeOf(err)
	require.True(t, ok, "expected domain error, got %v", err)
	require.Equal(t, code, got, "unexpected code for %v", err)
}
