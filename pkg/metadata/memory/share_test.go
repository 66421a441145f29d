package memory

import (
	"testing"

	"github.com/tyonekura/nfsserver/pkg/metadata"
	metadatatesting "github.com/tyonekura/nfsserver/pkg/metadata/testing"
)

// TestMemoryMetadataStore runs the complete MetadataStore test suite
// against the MemoryMetadataStore implementation.
func TestMemoryMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.MetadataStore {
			return NewMemoryMetadataStoreWithDefaults()
		},
	}

	suite.Run(t)
}
