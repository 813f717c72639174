package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/marmos91/mozaichub/pkg/content/fs"
	contenttest "github.com/marmos91/mozaichub/pkg/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSContentStore(t *testing.T) {
	suite := &contenttest.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			store, err := fs.NewFSContentStore(context.Background(), t.TempDir())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestFSContentStore_IgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := fs.NewFSContentStore(ctx, dir)
	require.NoError(t, err)

	_, err = store.WriteContent(ctx, "abc", strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "not-hex.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "616263-123.partial"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	ids, err := store.ListAllContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, ids)
}

func TestFSContentStore_CreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := fs.NewFSContentStore(context.Background(), dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
