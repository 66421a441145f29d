// Package content defines the storage-agnostic interface used to read and
// write file data. Metadata (names, permissions, directory structure) lives
// in the sibling metadata package; this package only ever sees opaque
// content IDs and bytes.
package content

import (
	"context"
	"io"

	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// ContentStore provides the read side of content storage: fetching data,
// its size, and whether it exists at all. Implementations (filesystem,
// memory, S3) trust the ContentID handed to them by the metadata layer and
// perform no access control of their own.
type ContentStore interface {
	// ReadContent returns a reader for the content identified by id. The
	// caller must close the returned reader.
	ReadContent(ctx context.Context, id metadata.ContentID) (io.ReadCloser, error)

	// GetContentSize returns the size of the content in bytes without
	// reading it.
	GetContentSize(ctx context.Context, id metadata.ContentID) (uint64, error)

	// ContentExists reports whether content with the given ID exists. A
	// missing ID is not an error; it returns false, nil.
	ContentExists(ctx context.Context, id metadata.ContentID) (bool, error)

	// GetStorageStats returns capacity and usage statistics for the store.
	GetStorageStats(ctx context.Context) (*StorageStats, error)
}

// WritableContentStore extends ContentStore with mutation operations. Not
// every backend needs to support writes (e.g. a read-only mirror).
type WritableContentStore interface {
	ContentStore

	// WriteAt writes data at the given offset, creating the content if it
	// doesn't exist and zero-filling any gap up to offset.
	WriteAt(ctx context.Context, id metadata.ContentID, data []byte, offset int64) error

	// Truncate resizes content to newSize, zero-extending or discarding
	// trailing bytes as needed.
	Truncate(ctx context.Context, id metadata.ContentID, newSize uint64) error

	// Delete removes content. Deleting a non-existent ID is not an error.
	Delete(ctx context.Context, id metadata.ContentID) error

	// WriteContent replaces the entire content for id in one call.
	WriteContent(ctx context.Context, id metadata.ContentID, data []byte) error
}

// SeekableContentStore is implemented by backends that support efficient
// random access reads (filesystem, memory). S3 does not implement it.
type SeekableContentStore interface {
	ContentStore

	ReadContentSeekable(ctx context.Context, id metadata.ContentID) (io.ReadSeekCloser, error)
}

// StreamingContentStore is implemented by backends where incremental
// reads/writes avoid buffering the whole object in memory (S3 in
// particular).
type StreamingContentStore interface {
	ContentStore

	OpenWriter(ctx context.Context, id metadata.ContentID) (io.WriteCloser, error)
	OpenReader(ctx context.Context, id metadata.ContentID) (io.ReadCloser, error)
}

// MultipartContentStore is implemented by backends supporting S3-style
// multipart uploads for large content.
type MultipartContentStore interface {
	ContentStore

	BeginMultipartUpload(ctx context.Context, id metadata.ContentID) (uploadID string, err error)
	UploadPart(ctx context.Context, id metadata.ContentID, uploadID string, partNumber int, data []byte) error
	CompleteMultipartUpload(ctx context.Context, id metadata.ContentID, uploadID string, partNumbers []int) error
	AbortMultipartUpload(ctx context.Context, id metadata.ContentID, uploadID string) error
}

// GarbageCollectableStore is implemented by backends that can enumerate and
// bulk-delete content, used to reclaim space orphaned by file deletion.
type GarbageCollectableStore interface {
	ContentStore

	ListAllContent(ctx context.Context) ([]metadata.ContentID, error)
	DeleteBatch(ctx context.Context, ids []metadata.ContentID) (failures map[metadata.ContentID]error, err error)
}

// StorageStats reports capacity and usage for a content store. Backends
// that can't measure a field (e.g. unlimited cloud storage) report 0 or
// math.MaxUint64 as appropriate.
type StorageStats struct {
	TotalSize     uint64
	UsedSize      uint64
	AvailableSize uint64
	ContentCount  uint64
	AverageSize   uint64
}
