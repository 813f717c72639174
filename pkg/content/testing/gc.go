package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGCTests covers the listing and batch deletion used by orphan
// collection.
func (suite *StoreTestSuite) RunGCTests(t *testing.T) {
	t.Run("ListAllContent", func(t *testing.T) {
		store := suite.store(t)
		ids := []string{generateTestID(), generateTestID(), generateTestID()}
		for _, id := range ids {
			mustWriteContent(t, store, id, []byte(id))
		}

		listed, err := store.ListAllContent(testContext())
		require.NoError(t, err)
		assert.ElementsMatch(t, ids, listed)
	})

	t.Run("DeleteBatch", func(t *testing.T) {
		store := suite.store(t)
		keep := generateTestID()
		drop := []string{generateTestID(), generateTestID()}
		mustWriteContent(t, store, keep, []byte("keep"))
		for _, id := range drop {
			mustWriteContent(t, store, id, []byte("drop"))
		}

		failures, err := store.DeleteBatch(testContext(), drop)
		require.NoError(t, err)
		assert.Empty(t, failures)

		listed, err := store.ListAllContent(testContext())
		require.NoError(t, err)
		assert.Equal(t, []string{keep}, listed)
	})

	t.Run("DeleteBatch_Empty", func(t *testing.T) {
		store := suite.store(t)
		failures, err := store.DeleteBatch(testContext(), nil)
		require.NoError(t, err)
		assert.Empty(t, failures)
	})
}

// RunStatsTests checks GetStorageStats totals.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	store := suite.store(t)
	mustWriteContent(t, store, generateTestID(), make([]byte, 100))
	mustWriteContent(t, store, generateTestID(), make([]byte, 300))

	stats, err := store.GetStorageStats(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(400), stats.UsedSize)
	assert.Equal(t, int64(2), stats.ContentCount)
	assert.Equal(t, int64(200), stats.AverageSize)
}
