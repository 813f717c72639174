package testing

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/stretchr/testify/require"
)

// generateTestID returns a unique content ID.
func generateTestID() string {
	return uuid.NewString()
}

// mustWriteContent writes data and fails the test on error.
func mustWriteContent(t *testing.T, store content.ContentStore, id string, data []byte) {
	t.Helper()
	n, err := store.WriteContent(testContext(), id, bytes.NewReader(data))
	require.NoError(t, err, "WriteContent failed for %s", id)
	require.Equal(t, int64(len(data)), n)
}

// assertContentEquals reads id back and compares it with expected.
func assertContentEquals(t *testing.T, store content.ContentStore, id string, expected []byte) {
	t.Helper()
	reader, err := store.ReadContent(testContext(), id)
	require.NoError(t, err, "ReadContent failed for %s", id)
	defer func() { _ = reader.Close() }()

	actual, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, expected, actual)
}
