package gc

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/pkg/content"
	contentmemory "github.com/marmos91/mozaichub/pkg/content/memory"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// failingDeletes refuses every Delete while delegating everything else.
type failingDeletes struct {
	content.ContentStore
}

func (failingDeletes) Delete(context.Context, string) error {
	return errors.New("backend unavailable")
}

type env struct {
	meta    *memory.MemoryMetadataStore
	content content.ContentStore
	clock   *clockwork.FakeClock
	sweeper *Sweeper
	owner   *metadata.User
}

func newEnv(t *testing.T, wrap func(content.ContentStore) content.ContentStore, cfg Config) *env {
	t.Helper()
	ctx := context.Background()

	cs, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	e := &env{meta: memory.NewMemoryMetadataStore(), content: cs, clock: clockwork.NewFakeClockAt(epoch)}
	if wrap != nil {
		e.content = wrap(cs)
	}
	e.sweeper = NewSweeper(e.meta, e.content, e.clock, cfg, nil)

	e.owner = &metadata.User{Username: "owner", Email: "owner@example.com", Role: metadata.RoleUser, QuotaBytes: 1000, CreatedAt: epoch, UpdatedAt: epoch}
	require.NoError(t, e.meta.CreateUser(ctx, e.owner))
	return e
}

// upload stores an artifact and its record, and charges the owner.
func (e *env) upload(t *testing.T, contentID string, size int64) *metadata.File {
	t.Helper()
	ctx := context.Background()

	_, err := e.content.WriteContent(ctx, contentID, bytes.NewReader(make([]byte, size)))
	require.NoError(t, err)

	f := &metadata.File{
		OwnerID:    e.owner.ID,
		Title:      contentID,
		ContentID:  contentID,
		Category:   metadata.CategoryOther,
		SizeBytes:  size,
		Visibility: metadata.VisibilityPublic,
		CreatedAt:  e.clock.Now(),
		UpdatedAt:  e.clock.Now(),
	}
	require.NoError(t, e.meta.CreateFile(ctx, f))

	u, err := e.meta.GetUser(ctx, e.owner.ID)
	require.NoError(t, err)
	require.NoError(t, e.meta.SetStorageUsed(ctx, e.owner.ID, u.UsedBytes+size))
	return f
}

func TestSweepRemovesOnlyDueFiles(t *testing.T) {
	e := newEnv(t, nil, Config{Grace: DefaultGrace})
	ctx := context.Background()

	due := e.upload(t, "due", 100)
	later := e.upload(t, "later", 50)
	e.upload(t, "kept", 10)

	_, err := e.sweeper.ScheduleDeletion(ctx, due.ID, 0)
	require.NoError(t, err)
	_, err = e.sweeper.ScheduleDeletion(ctx, later.ID, time.Hour)
	require.NoError(t, err)

	report, err := e.sweeper.RunSweep(ctx, e.clock.Now())
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, due.ID, report.Items[0].FileID)
	assert.Equal(t, content.Removed, report.Items[0].Artifact.Outcome)
	assert.True(t, report.Items[0].RecordRemoved())

	_, err = e.meta.GetFile(ctx, due.ID)
	assert.True(t, metadata.IsNotFound(err))

	exists, err := e.content.ContentExists(ctx, "due")
	require.NoError(t, err)
	assert.False(t, exists)

	u, err := e.meta.GetUser(ctx, e.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), u.UsedBytes)

	e.clock.Advance(time.Hour)
	report, err = e.sweeper.RunSweep(ctx, e.clock.Now())
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, later.ID, report.Items[0].FileID)

	remaining, err := e.meta.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestSweepRemovesRecordWhenArtifactRemovalFails(t *testing.T) {
	e := newEnv(t, func(cs content.ContentStore) content.ContentStore {
		return failingDeletes{cs}
	}, Config{})
	ctx := context.Background()

	a := e.upload(t, "a", 10)
	b := e.upload(t, "b", 20)
	for _, f := range []*metadata.File{a, b} {
		_, err := e.sweeper.ScheduleDeletion(ctx, f.ID, 0)
		require.NoError(t, err)
	}

	report, err := e.sweeper.RunSweep(ctx, e.clock.Now())
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, 2, report.Count(content.RemovalFailed))
	assert.Equal(t, 0, report.Failed())

	for _, f := range []*metadata.File{a, b} {
		_, err := e.meta.GetFile(ctx, f.ID)
		assert.True(t, metadata.IsNotFound(err), "record of %s must be gone", f.Title)
	}

	// The artifacts are now orphans.
	orphans, err := e.sweeper.CollectOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, orphans.OrphanedCount)
}

func TestSweepArtifactAlreadyAbsent(t *testing.T) {
	e := newEnv(t, nil, Config{})
	ctx := context.Background()

	f := e.upload(t, "gone", 10)
	require.NoError(t, e.content.Delete(ctx, "gone"))
	_, err := e.sweeper.ScheduleDeletion(ctx, f.ID, 0)
	require.NoError(t, err)

	report, err := e.sweeper.RunSweep(ctx, e.clock.Now())
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, content.AlreadyAbsent, report.Items[0].Artifact.Outcome)
	assert.True(t, report.Items[0].RecordRemoved())
}

func TestSweepDropsCommentsAndGrants(t *testing.T) {
	e := newEnv(t, nil, Config{})
	ctx := context.Background()

	f := e.upload(t, "f", 10)
	require.NoError(t, e.meta.CreateComment(ctx, &metadata.Comment{FileID: f.ID, AuthorID: e.owner.ID, Text: "hi", CreatedAt: epoch}))
	require.NoError(t, e.meta.ReplaceGrants(ctx, f.ID, []string{e.owner.ID}))

	_, err := e.sweeper.ScheduleDeletion(ctx, f.ID, 0)
	require.NoError(t, err)
	_, err = e.sweeper.RunSweep(ctx, e.clock.Now())
	require.NoError(t, err)

	granted, err := e.meta.GrantedFileIDs(ctx, e.owner.ID)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestScheduleOwnerDeletionUsesGrace(t *testing.T) {
	e := newEnv(t, nil, Config{Grace: DefaultGrace})
	ctx := context.Background()

	e.upload(t, "one", 10)
	e.upload(t, "two", 10)

	n, err := e.sweeper.ScheduleOwnerDeletion(ctx, e.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	report, err := e.sweeper.RunSweep(ctx, e.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, report.Items)

	e.clock.Advance(DefaultGrace)
	report, err = e.sweeper.RunSweep(ctx, e.clock.Now())
	require.NoError(t, err)
	assert.Len(t, report.Items, 2)
}

func TestScheduleDeletionValidation(t *testing.T) {
	e := newEnv(t, nil, Config{})
	ctx := context.Background()

	_, err := e.sweeper.ScheduleDeletion(ctx, "missing", 0)
	assert.True(t, metadata.IsNotFound(err))

	f := e.upload(t, "x", 1)
	_, err = e.sweeper.ScheduleDeletion(ctx, f.ID, -time.Second)
	assert.True(t, metadata.IsCode(err, metadata.ErrValidation))
}

func TestCollectOrphans(t *testing.T) {
	ctx := context.Background()

	t.Run("DryRun", func(t *testing.T) {
		e := newEnv(t, nil, Config{DryRun: true})
		e.upload(t, "referenced", 10)
		_, err := e.content.WriteContent(ctx, "orphan", bytes.NewReader([]byte("x")))
		require.NoError(t, err)

		stats, err := e.sweeper.CollectOrphans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.OrphanedCount)
		assert.Equal(t, 0, stats.DeletedCount)

		exists, err := e.content.ContentExists(ctx, "orphan")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Delete", func(t *testing.T) {
		e := newEnv(t, nil, Config{BatchSize: 1})
		e.upload(t, "referenced", 10)
		for _, id := range []string{"o1", "o2", "o3"} {
			_, err := e.content.WriteContent(ctx, id, bytes.NewReader([]byte(id)))
			require.NoError(t, err)
		}

		stats, err := e.sweeper.CollectOrphans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.ReferencedCount)
		assert.Equal(t, 4, stats.ExistingCount)
		assert.Equal(t, 3, stats.DeletedCount)
		assert.Equal(t, 0, stats.FailedCount)

		ids, err := e.content.ListAllContent(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"referenced"}, ids)
	})
}
