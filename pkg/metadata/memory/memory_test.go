package memory_test

import (
	"testing"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metadata/memory"
	storetest "github.com/marmos91/mozaichub/pkg/metadata/testing"
)

func TestMemoryMetadataStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			return memory.NewMemoryMetadataStore()
		},
	}
	suite.Run(t)
}
