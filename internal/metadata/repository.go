package metadata

import (
	"context"
	"time"
)

// DirEntry represents a directory entry returned by ReadDir.
type DirEntry struct {
	// Fileid is the unique file identifier
	Fileid uint64

	// Name is the filename
	Name string

	// Cookie is an opaque value for pagination
	Cookie uint64
}

// Interface for NFS metadata persistence
type Repository interface {
	// Export operations
	AddExport(ctx context.Context, path string, options ExportOptions, rootAttr *FileAttr) error
	GetExports(ctx context.Context) ([]Export, error)
	FindExport(ctx context.Context, path string) (*Export, error)
	DeleteExport(ctx context.Context, path string) error

	// GetRootHandle returns the root file handle for an export path
	GetRootHandle(ctx context.Context, exportPath string) (FileHandle, error)

	// File operations
	CreateFile(ctx context.Context, handle FileHandle, attr *FileAttr) error
	GetFile(ctx context.Context, handle FileHandle) (*FileAttr, error)
	UpdateFile(ctx context.Context, handle FileHandle, attr *FileAttr) error
	// DeleteFile deletes file metadata by handle.
	//
	// WARNING: This is a low-level operation that bypasses all safety checks.
	// It does NOT:
	//   - Check permissions
	//   - Remove the file from its parent directory
	//   - Update parent directory timestamps
	//   - Verify the file can be safely deleted
	//
	// In most cases, you should use RemoveFile instead, which performs
	// proper validation and cleanup.
	//
	// This method should only be used for:
	//   - Internal cleanup operations
	//   - Orphaned handle garbage collection
	//   - Operations that have already performed all necessary checks
	//
	// Returns error if the handle doesn't exist.
	DeleteFile(ctx context.Context, handle FileHandle) error

	// Directory hierarchy operations
	SetParent(ctx context.Context, child FileHandle, parent FileHandle) error
	GetParent(ctx context.Context, child FileHandle) (FileHandle, error)

	AddChild(ctx context.Context, parent FileHandle, name string, child FileHandle) error
	GetChild(ctx context.Context, parent FileHandle, name string) (FileHandle, error)
	GetChildren(ctx context.Context, parent FileHandle) (map[string]FileHandle, error)
	DeleteChild(ctx context.Context, parent FileHandle, name string) error

	// Helper method to add files/directories to a parent
	AddFileToDirectory(ctx context.Context, parentHandle FileHandle, name string, attr *FileAttr) (FileHandle, error)

	// Mount tracking operations
	// RecordMount records an active mount by a client
	RecordMount(ctx context.Context, exportPath string, clientAddr string, authFlavor uint32, machineName string, uid *uint32, gid *uint32) error

	// RemoveMount removes a mount record when a client unmounts
	RemoveMount(ctx context.Context, exportPath string, clientAddr string) error

	// GetMounts returns all active mounts, optionally filtered by export path
	// If exportPath is empty, returns all mounts
	GetMounts(ctx context.Context, exportPath string) ([]MountEntry, error)

	// IsClientMounted checks if a specific client has an active mount
	IsClientMounted(ctx context.Context, exportPath string, clientAddr string) (bool, error)

	// CheckExportAccess verifies if a client can access an export and returns effective credentials.
	// Returns an AccessDecision with details about the authorization and an AuthContext with
	// the effective UID/GID after applying squashing rules (AllSquash, RootSquash).
	//
	// The returned AuthContext should be used for all subsequent permission checks to ensure
	// consistent application of squashing rules throughout the mount session.
	CheckExportAccess(
		ctx context.Context,
		exportPath string,
		clientAddr string,
		authFlavor uint32,
		uid *uint32,
		gid *uint32,
		gids []uint32,
	) (*AccessDecision, *AuthContext, error)

	// CheckAccess verifies if a client has the requested access permissions on a file.
	// It performs Unix-style permission checking based on file ownership, mode bits,
	// and client credentials.
	//
	// Parameters:
	//   - handle: The file handle to check permissions for
	//   - requested: Bitmap of requested permissions (AccessRead, AccessModify, etc.)
	//   - ctx: Authentication context with client credentials
	//
	// Returns:
	//   - uint32: Bitmap of granted permissions (subset of requested)
	//   - error: Returns error only for internal failures; denied access returns 0 permissions
	CheckAccess(handle FileHandle, requested uint32, ctx *AccessCheckContext) (uint32, error)

	// GetMountsByClient returns all active mounts for a specific client
	// Used by UMNTALL to determine what will be removed
	GetMountsByClient(ctx context.Context, clientAddr string) ([]MountEntry, error)

	// RemoveAllMounts removes all mount records for a specific client
	// Used by UMNTALL to clean up all mounts in one operation
	RemoveAllMounts(ctx context.Context, clientAddr string) error

	// ServerConfig operations
	// SetServerConfig sets the server-wide configuration
	SetServerConfig(ctx context.Context, config ServerConfig) error

	// GetServerConfig returns the current server configuration
	GetServerConfig(ctx context.Context) (ServerConfig, error)

	// CheckDumpAccess verifies if a client can call the DUMP procedure
	// Returns error if access is denied, nil if allowed
	CheckDumpAccess(ctx context.Context, clientAddr string) error

	// GetFSInfo returns the static filesystem information and capabilities
	// This is used by the FSINFO NFS procedure to inform clients about
	// server limits and preferences (max transfer sizes, properties, etc.)
	GetFSInfo(ctx context.Context, handle FileHandle) (*FSInfo, error)

	// GetFSStats returns the dynamic filesystem statistics
	// This is used by the FSSTAT NFS procedure to inform clients about
	// current filesystem capacity, usage, and available space/inodes
	GetFSStats(ctx context.Context, handle FileHandle) (*FSStat, error)

	// CreateLink creates a hard link to an existing file.
	//
	// This adds a new directory entry that references the same file data.
	// The file's link count (nlink) should be incremented.
	//
	// Parameters:
	//   - dirHandle: Target directory where the link will be created
	//   - name: Name for the new link
	//   - fileHandle: File to link to
	//   - ctx: Authentication context for access control
	//
	// Returns error if:
	//   - Access denied (no write permission on directory)
	//   - Name already exists in directory
	//   - Cross-filesystem link attempted (implementation-specific)
	//   - fileHandle or dirHandle is invalid
	CreateLink(dirHandle FileHandle, name string, fileHandle FileHandle, ctx *AuthContext) error

	// CreateDirectory creates a new directory with the specified attributes.
	//
	// This method is responsible for:
	//  1. Checking write permission on the parent directory
	//  2. Verifying the name doesn't already exist
	//  3. Building complete directory attributes with defaults
	//  4. Creating the directory metadata
	//  5. Linking it to the parent directory
	//  6. Setting up the parent-child relationship
	//  7. Updating parent directory timestamps
	//
	// Parameters:
	//   - parentHandle: Handle of the parent directory
	//   - name: Name for the new directory
	//   - attr: Partial attributes (type, mode, uid, gid) - may have defaults
	//   - ctx: Authentication context for access control
	//
	// Returns:
	//   - FileHandle: Handle of the newly created directory
	//   - error: Returns error if:
	//     * Access denied (no write permission on parent)
	//     * Name already exists
	//     * Parent is not a directory
	//     * I/O error
	//
	// The implementation should:
	//   - Complete the attr structure with size (typically 4096), timestamps, etc.
	//   - Check that the caller has write permission on the parent directory
	//   - Ensure the directory has proper default attributes if not specified
	CreateDirectory(parentHandle FileHandle, name string, attr *FileAttr, ctx *AuthContext) (FileHandle, error)

	// GetPathConf returns POSIX-compatible filesystem information.
	// This is used by the PATHCONF NFS procedure to inform clients about
	// filesystem properties and limitations (filename lengths, link limits, etc.)
	GetPathConf(ctx context.Context, handle FileHandle) (*PathConf, error)

	// CreateSpecialFile creates a special file (device, socket, or FIFO).
	//
	// This method is responsible for:
	//  1. Checking write permission on the parent directory
	//  2. Checking privilege requirements (device creation often requires root)
	//  3. Verifying the name doesn't already exist
	//  4. Building complete file attributes with defaults
	//  5. Storing device numbers (for block/char devices)
	//  6. Creating the special file metadata
	//  7. Linking it to the parent directory
	//  8. Setting up the parent-child relationship
	//  9. Updating parent directory timestamps
	//
	// Parameters:
	//   - parentHandle: Handle of the parent directory
	//   - name: Name for the new special file
	//   - attr: Partial attributes (type, mode, uid, gid) - may have defaults
	//   - majorDevice: Major device number (for block/char devices, 0 otherwise)
	//   - minorDevice: Minor device number (for block/char devices, 0 otherwise)
	//   - ctx: Authentication context for access control
	//
	// Returns:
	//   - FileHandle: Handle of the newly created special file
	//   - error: Returns error if:
	//     * Access denied (no write permission on parent or insufficient privileges)
	//     * Name already exists
	//     * Parent is not a directory
	//     * Invalid file type
	//     * I/O error
	//
	// The implementation should:
	//   - Complete the attr structure with size (0), timestamps, etc.
	//   - Check that the caller has write permission on the parent directory
	//   - For device files, check that the caller has sufficient privileges (typically root)
	//   - Store device numbers appropriately (implementation-specific)
	//   - Ensure the special file has proper default attributes if not specified
	CreateSpecialFile(parentHandle FileHandle, name string, attr *FileAttr, majorDevice uint32, minorDevice uint32, ctx *AuthContext) (FileHandle, error)

	// ReadDir reads directory entries with pagination support.
	//
	// This method handles:
	//  - Checking read/execute permission on the directory
	//  - Building "." and ".." entries
	//  - Iterating through regular entries
	//  - Cookie-based pagination
	//  - Respecting count limits
	//
	// Parameters:
	//   - dirHandle: Directory to read
	//   - cookie: Starting position (0 = beginning)
	//   - count: Maximum response size in bytes (hint)
	//   - ctx: Authentication context for access control
	//
	// Returns:
	//   - []DirEntry: List of entries starting from cookie
	//   - bool: EOF flag (true if all entries returned)
	//   - error: Access denied or I/O errors
	ReadDir(dirHandle FileHandle, cookie uint64, count uint32, ctx *AuthContext) ([]DirEntry, bool, error)

	// RemoveFile removes a file (not a directory) from a directory.
	//
	// This method is responsible for:
	//  1. Verifying the file exists and is not a directory
	//  2. Checking write permission on the parent directory
	//  3. Removing the file from the directory
	//  4. Deleting the file metadata
	//  5. Updating parent directory timestamps
	//
	// Parameters:
	//   - parentHandle: Handle of the parent directory
	//   - filename: Name of the file to remove
	//   - ctx: Authentication context for access control
	//
	// Returns:
	//   - *FileAttr: The attributes of the removed file (for response)
	//   - error: Returns error if:
	//     * Access denied (no write permission on parent)
	//     * File not found
	//     * File is a directory (use RemoveDirectory instead)
	//     * Parent is not a directory
	//     * I/O error
	RemoveFile(parentHandle FileHandle, filename string, ctx *AuthContext) (*FileAttr, error)

	// ReadSymlink reads the target path of a symbolic link.
	//
	// This method is responsible for:
	//  1. Verifying the handle is a valid symbolic link
	//  2. Checking read permission on the symlink
	//  3. Retrieving the symlink target path
	//  4. Returning symlink attributes for cache consistency
	//
	// Parameters:
	//   - handle: File handle of the symbolic link
	//   - ctx: Authentication context for access control
	//
	// Returns:
	//   - string: The symlink target path
	//   - *FileAttr: Symlink attributes
	//   - error: Returns error if:
	//     * Handle not found
	//     * Handle is not a symlink
	//     * Access denied (no read permission)
	//     * Target path is missing or empty
	//     * I/O error
	ReadSymlink(handle FileHandle, ctx *AuthContext) (string, *FileAttr, error)

	// RemoveDirectory removes an empty directory from a parent directory.
	//
	// This method is responsible for:
	//  1. Verifying the directory exists as a child of the parent
	//  2. Verifying the target is actually a directory
	//  3. Checking the directory is empty (no entries except "." and "..")
	//  4. Checking write permission on the parent directory
	//  5. Removing the directory entry from the parent
	//  6. Deleting the directory metadata
	//  7. Updating parent directory timestamps
	//
	// Parameters:
	//   - parentHandle: Handle of the parent directory
	//   - name: Name of the directory to remove
	//   - ctx: Authentication context for access control
	//
	// Returns error if:
	//   - Access denied (no write permission on parent)
	//   - Directory not found
	//   - Target is not a directory
	//   - Directory is not empty
	//   - Parent is not a directory
	//   - I/O error
	RemoveDirectory(parentHandle FileHandle, name string, ctx *AuthContext) error

	// RenameFile renames or moves a file from one directory to another.
	//
	// This method implements support for the RENAME NFS procedure (RFC 1813 section 3.3.14).
	// RENAME is used to change a file's name within the same directory, move a file
	// to a different directory, or atomically replace an existing file.
	//
	// Atomicity:
	// The implementation should strive for atomicity by validating all preconditions
	// before making any changes and performing operations in a way that minimizes
	// the window for failure. In a production implementation with persistent storage,
	// you would use proper transaction semantics or a write-ahead log.
	//
	// Replacement Semantics:
	// When the destination name already exists:
	//  - File over file: Allowed (atomic replacement)
	//  - Directory over empty directory: Allowed
	//  - Directory over non-empty directory: Not allowed (return error)
	//  - File over directory: Not allowed (return error)
	//  - Directory over file: Not allowed (return error)
	//
	// This method is responsible for:
	//  1. Verifying source directory exists and is a directory
	//  2. Verifying destination directory exists and is a directory
	//  3. Checking write permission on source directory (to remove entry)
	//  4. Checking write permission on destination directory (to add entry)
	//  5. Verifying source file/directory exists
	//  6. Handling no-op case (same directory, same name)
	//  7. Checking if destination exists and validating replacement rules
	//  8. Removing destination if replacement is allowed
	//  9. Performing the rename (remove from source, add to destination)
	//  10. Updating parent relationships for cross-directory moves
	//  11. Updating timestamps (ctime for source, mtime+ctime for directories)
	//
	// Parameters:
	//   - fromDirHandle: Source directory handle
	//   - fromName: Current name of the file/directory
	//   - toDirHandle: Destination directory handle
	//   - toName: New name for the file/directory
	//   - ctx: Authentication context for access control
	//
	// Returns error if:
	//   - Source file/directory not found
	//   - Source or destination directory not found or not a directory
	//   - Access denied (no write permission on either directory)
	//   - Destination is a non-empty directory when replacing
	//   - Type mismatch (file vs directory) when replacing
	//   - I/O error
	//
	// Special Cases:
	//   - Same directory, same name: Returns nil (no-op success)
	//   - Same directory, different name: Simple rename
	//   - Different directory: Move with potential rename
	//   - Over existing file: Atomic replacement
	RenameFile(fromDirHandle FileHandle, fromName string, toDirHandle FileHandle, toName string, ctx *AuthContext) error

	// SetFileAttributes updates file attributes with access control.
	//
	// This method is responsible for:
	//  1. Checking ownership (for chown/chmod)
	//  2. Checking write permission (for size/time changes)
	//  3. Validating attribute values
	//  4. Coordinating with content repository for size changes
	//  5. Updating ctime automatically
	//  6. Ensuring atomicity of updates
	//
	// Parameters:
	//   - handle: The file handle to update
	//   - attrs: The attributes to set (only Set* = true are modified)
	//   - ctx: Authentication context for access control
	//
	// Returns error if:
	//   - Access denied (no permission)
	//   - Not owner (for chown/chmod)
	//   - Invalid attribute values
	//   - Read-only filesystem
	//   - I/O error
	SetFileAttributes(handle FileHandle, attrs *SetAttrs, ctx *AuthContext) error

	// CreateSymlink creates a symbolic link with the specified target path.
	//
	// This method is responsible for:
	//  1. Verifying the parent directory exists and is a directory
	//  2. Checking write permission on the parent directory
	//  3. Verifying the name doesn't already exist
	//  4. Completing symlink attributes with server-assigned values:
	//     - Type: FileTypeSymlink
	//     - Size: Length of target path
	//     - Timestamps: Current time for atime, mtime, ctime
	//     - UID/GID: From auth context or request attributes
	//     - Mode: Default 0777 or from request attributes
	//  5. Storing the target path in the symlink metadata
	//  6. Creating the symlink metadata
	//  7. Linking it to the parent directory
	//  8. Updating parent directory timestamps
	//
	// Parameters:
	//   - parentHandle: Handle of the parent directory
	//   - name: Name for the new symbolic link
	//   - target: Path that the symlink will point to
	//   - attr: Partial attributes (mode, uid, gid may be set)
	//   - ctx: Authentication context for access control
	//
	// Returns:
	//   - FileHandle: Handle of the newly created symlink
	//   - error: Returns error if:
	//     * Access denied (no write permission on parent)
	//     * Name already exists
	//     * Parent is not a directory
	//     * I/O error
	//
	// The implementation should:
	//   - Complete the attr structure with server-assigned values
	//   - Check that the caller has write permission on the parent directory
	//   - Store the target path in attr.SymlinkTarget
	//   - Ensure the symlink has proper default attributes if not specified
	CreateSymlink(parentHandle FileHandle, name string, target string, attr *FileAttr, ctx *AuthContext) (FileHandle, error)

	// WriteFile updates file metadata for a write operation.
	//
	// This method handles the metadata aspects of file writes:
	//   - Permission validation (owner/group/other write bits)
	//   - File size updates (extension if newSize > current size)
	//   - Timestamp updates (mtime always, ctime if size changed)
	//   - Content ID generation if needed
	//
	// Pre-Operation Attributes:
	// The method returns the file's size and timestamps BEFORE any modifications.
	// The protocol layer uses these for WCC (Weak Cache Consistency) data to help
	// clients detect concurrent modifications.
	//
	// Design Philosophy:
	// This method does NOT perform actual data writing. The protocol handler
	// is responsible for coordinating between metadata and content repositories:
	//  1. Call WriteFile to check permissions and capture pre-op attributes
	//  2. Write data via content repository using the ContentID from attributes
	//  3. Pre-op attributes and updated attributes are ready for response
	//
	// Parameters:
	//   - handle: File handle to update
	//   - newSize: File size after write (offset + length of data)
	//   - ctx: Authentication context for permission checking
	//
	// Returns:
	//   - *FileAttr: Updated file attributes (includes ContentID for writing)
	//   - uint64: Pre-operation file size
	//   - time.Time: Pre-operation modification time
	//   - time.Time: Pre-operation change time
	//   - error: ExportError if operation fails
	//
	// Example usage:
	//
	//	newSize := offset + uint64(len(data))
	//	attr, preSize, preMtime, preCtime, err := repo.WriteFile(handle, newSize, authCtx)
	//	if err != nil {
	//	    return err
	//	}
	//	err = contentRepo.WriteAt(attr.ContentID, data, offset)
	WriteFile(handle FileHandle, newSize uint64, ctx *AuthContext) (*FileAttr, uint64, time.Time, time.Time, error)

	// GetMaxWriteSize returns the maximum write size in bytes that the server will accept.
	// This should match or be slightly larger than the wtmax value returned by GetFSInfo.
	//
	// The returned value is used for validation in the WRITE procedure to prevent:
	//   - Memory exhaustion from oversized requests
	//   - Protocol violations from malicious clients
	//   - Resource exhaustion attacks
	//
	// Typical values:
	//   - Production servers: 64KB-1MB (balances performance and safety)
	//   - High-throughput servers: 1MB-32MB (requires more memory)
	//   - Conservative servers: 32KB-64KB (matches typical wtmax)
	//
	// The value should be at least as large as the wtmax advertised in FSINFO,
	// but can be larger to provide some tolerance for non-compliant clients.
	//
	// Returns:
	//   - uint32: Maximum write size in bytes
	GetMaxWriteSize(ctx context.Context) uint32

	// Healthcheck performs a health check on the repository.
	// Returns nil if the repository is healthy and accessible.
	// This is used by the NULL procedure for optional health monitoring.
	Healthcheck(ctx context.Context) error
}
