// Package fs implements filesystem-based content storage for DittoFS.
//
// This file contains the main infrastructure for the filesystem content store,
// including the store type, constructor, helper methods, and lifecycle management.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tyonekura/nfsserver/pkg/store/content"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// FSContentStore implements ContentRepository using the local filesystem.
//
// This implementation stores file contents directly on the filesystem using
// content IDs as filenames. It provides basic CRUD operations for file content
// with context cancellation support for all I/O operations.
//
// Thread Safety:
// The underlying filesystem operations are thread-safe at the OS level, but
// concurrent writes to the same file may result in corruption. Callers should
// ensure proper synchronization for concurrent access to the same content ID.
type FSContentStore struct {
	basePath string
	fdCache  *FDCache
}

// NewFSContentStore creates a new filesystem-based content repository.
//
// This initializes the repository by creating the base directory if it doesn't
// exist. The base directory will be created with permissions 0755.
//
// Context Cancellation:
// This operation checks the context before creating the directory structure.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - basePath: Root directory for storing content files
//
// Returns:
//   - *FSContentStore: Initialized repository
//   - error: Returns error if directory creation fails or context is cancelled
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Create the base directory if it doesn't exist
	// ========================================================================

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	const defaultFDCacheSize = 512

	return &FSContentStore{
		basePath: basePath,
		fdCache:  NewFDCache(defaultFDCacheSize),
	}, nil
}

// getFilePath returns the full path for a given content ID.
//
// This is a lightweight helper function that performs no I/O and does not
// need context cancellation checks.
//
// Implementation Note:
// We used to hex-encode the full ContentID, but this caused issues with very
// long paths (deep directory nesting) exceeding OS filename limits (255 chars
// on macOS). Instead, we now store files directly using the ContentID as the
// path, which is already filesystem-safe (e.g., "export/dir/file.txt").
//
// Parameters:
//   - ctx: Context (unused but kept for interface consistency)
//   - id: Content identifier
//
// Returns:
//   - string: Full filesystem path for the content
func (r *FSContentStore) getFilePath(_ context.Context, id metadata.ContentID) string {
	// ContentID is already in a filesystem-safe format (e.g., "export/path/to/file.txt")
	// Just join it with the base path
	return filepath.Join(r.basePath, string(id))
}

// GetStorageStats returns statistics about the filesystem storage.
//
// ⚠️  IMPORTANT: This is currently a placeholder implementation that returns
// zeros for all fields. It is NOT suitable for production use cases requiring
// accurate capacity planning or quota enforcement.
//
// Implementation Status:
// This method requires platform-specific system calls (syscall.Statfs on Unix,
// GetDiskFreeSpaceEx on Windows) to retrieve filesystem statistics, and
// directory scanning to count content items. Given DittoFS's experimental
// status, this was deprioritized in favor of core NFS functionality.
//
// To implement this properly:
//  1. Use build tags for platform-specific implementations (fs_unix.go, fs_windows.go)
//  2. Call syscall.Statfs (Unix) or GetDiskFreeSpaceEx (Windows) for disk stats
//  3. Scan r.basePath to count files and calculate total size
//  4. Consider caching results with TTL (expensive operation)
//
// For now, callers should check for zero values and handle gracefully.
// The memory implementation (MemoryContentStore) provides a reference for
// complete stats functionality.
//
// This implements the ContentStore.GetStorageStats interface method.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//
// Returns:
//   - *content.StorageStats: Placeholder statistics (all zeros)
//   - error: Returns error for context cancellation only
func (r *FSContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Get filesystem statistics
	// ========================================================================
	// Note: This is a platform-specific operation. For now, we return
	// placeholder values. A full implementation would use syscall.Statfs
	// on Unix systems or GetDiskFreeSpaceEx on Windows.

	return &content.StorageStats{
		TotalSize:     0, // Would need platform-specific syscall
		UsedSize:      0, // Would need to scan directory
		AvailableSize: 0, // Would need platform-specific syscall
		ContentCount:  0, // Would need to scan directory
		AverageSize:   0, // Would need to scan directory
	}, nil
}

// Close closes all cached file descriptors and cleans up resources
func (r *FSContentStore) Close() error {
	return r.fdCache.Close()
}
