package testing

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests covers write, read, size and existence checks.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("WriteAndRead", suite.testWriteAndRead)
	t.Run("Overwrite", suite.testOverwrite)
	t.Run("EmptyContent", suite.testEmptyContent)
	t.Run("ReadNonExistent", suite.testReadNonExistent)
	t.Run("InvalidID", suite.testInvalidID)
	t.Run("Exists", suite.testExists)
}

func (suite *StoreTestSuite) testWriteAndRead(t *testing.T) {
	store := suite.store(t)
	id := generateTestID()
	data := []byte("holiday photos, compressed")

	mustWriteContent(t, store, id, data)
	assertContentEquals(t, store, id, data)

	size, err := store.GetContentSize(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	store := suite.store(t)
	id := generateTestID()

	mustWriteContent(t, store, id, []byte("first version of the file"))
	mustWriteContent(t, store, id, []byte("second"))
	assertContentEquals(t, store, id, []byte("second"))
}

func (suite *StoreTestSuite) testEmptyContent(t *testing.T) {
	store := suite.store(t)
	id := generateTestID()

	mustWriteContent(t, store, id, []byte{})
	assertContentEquals(t, store, id, []byte{})
}

func (suite *StoreTestSuite) testReadNonExistent(t *testing.T) {
	store := suite.store(t)

	_, err := store.ReadContent(testContext(), generateTestID())
	require.Error(t, err)
	assert.True(t, errors.Is(err, content.ErrContentNotFound))

	_, err = store.GetContentSize(testContext(), generateTestID())
	assert.True(t, errors.Is(err, content.ErrContentNotFound))
}

func (suite *StoreTestSuite) testInvalidID(t *testing.T) {
	store := suite.store(t)

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := store.WriteContent(testContext(), id, strings.NewReader("x"))
		assert.True(t, errors.Is(err, content.ErrInvalidContentID), "id %q", id)
	}
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.store(t)
	id := generateTestID()

	exists, err := store.ContentExists(testContext(), id)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.WriteContent(testContext(), id, bytes.NewBufferString("data"))
	require.NoError(t, err)

	exists, err = store.ContentExists(testContext(), id)
	require.NoError(t, err)
	assert.True(t, exists)
}

// RunDeleteTests covers Delete and the Remove outcome mapping.
func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("DeleteExisting", func(t *testing.T) {
		store := suite.store(t)
		id := generateTestID()
		mustWriteContent(t, store, id, []byte("bye"))

		require.NoError(t, store.Delete(testContext(), id))

		exists, err := store.ContentExists(testContext(), id)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		store := suite.store(t)
		err := store.Delete(testContext(), generateTestID())
		assert.True(t, errors.Is(err, content.ErrContentNotFound))
	})

	t.Run("RemoveOutcomes", func(t *testing.T) {
		store := suite.store(t)
		id := generateTestID()
		mustWriteContent(t, store, id, []byte("bye"))

		first := content.Remove(testContext(), store, id)
		assert.Equal(t, content.Removed, first.Outcome)
		assert.NoError(t, first.Err)

		second := content.Remove(testContext(), store, id)
		assert.Equal(t, content.AlreadyAbsent, second.Outcome)
	})
}
