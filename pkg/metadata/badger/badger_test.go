package badger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metadata/badger"
	storetest "github.com/marmos91/mozaichub/pkg/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerMetadataStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			store, err := badger.NewBadgerMetadataStore(context.Background(), badger.BadgerMetadataStoreConfig{
				DBPath: t.TempDir(),
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStore_InMemory(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			store, err := badger.NewBadgerMetadataStore(context.Background(), badger.BadgerMetadataStoreConfig{
				InMemory: true,
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "meta")

	store, err := badger.NewBadgerMetadataStore(ctx, badger.BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)

	user := &metadata.User{Username: "alice", Email: "alice@example.com", Role: metadata.RoleUser}
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.Close())

	reopened, err := badger.NewBadgerMetadataStore(ctx, badger.BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// The username index survives a rename.
	got.Username = "alicia"
	require.NoError(t, reopened.UpdateUser(ctx, got))

	_, err = reopened.GetUserByUsername(ctx, "alice")
	assert.True(t, metadata.IsNotFound(err))

	require.NoError(t, reopened.CreateUser(ctx, &metadata.User{Username: "alice", Email: "new@example.com", Role: metadata.RoleUser}))
}

func TestNewBadgerMetadataStore_RequiresPath(t *testing.T) {
	_, err := badger.NewBadgerMetadataStore(context.Background(), badger.BadgerMetadataStoreConfig{})
	assert.Error(t, err)
}
