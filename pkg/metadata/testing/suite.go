package testing

import (
	"testing"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

// StoreTestSuite is a comprehensive test suite for metadata.Store
// implementations. It tests the interface contract, not implementation
// details, so the same suite runs against memory, badger and sql stores.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetest.StoreTestSuite{
//	        NewStore: func(t *testing.T) metadata.Store {
//	            return mystore.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh Store for each
	// test. Stores are closed by the suite.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Users", suite.RunUserTests)
	t.Run("Graylist", suite.RunGraylistTests)
	t.Run("Files", suite.RunFileTests)
	t.Run("Grants", suite.RunGrantTests)
	t.Run("Comments", suite.RunCommentTests)
	t.Run("Relationships", suite.RunRelationshipTests)
	t.Run("Messages", suite.RunMessageTests)
	t.Run("Notifications", suite.RunNotificationTests)
	t.Run("Healthcheck", suite.testHealthcheck)
}

func (suite *StoreTestSuite) store(t *testing.T) metadata.Store {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (suite *StoreTestSuite) testHealthcheck(t *testing.T) {
	store := suite.store(t)
	if err := store.Healthcheck(testContext()); err != nil {
		t.Fatalf("Healthcheck failed: %v", err)
	}
}
