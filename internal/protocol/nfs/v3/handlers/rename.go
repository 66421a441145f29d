package handlers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tyonekura/nfsserver/internal/logger"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/types"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/xdr"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// RenameRequest represents a RENAME request from an NFS client.
// The client provides source and destination directory handles and names
// to move or rename a file or directory.
//
// This structure is decoded from XDR-encoded data received over the network.
//
// RFC 1813 Section 3.3.14 specifies the RENAME procedure as:
//
//	RENAME3res NFSPROC3_RENAME(RENAME3args) = 14;
//
// The RENAME procedure changes the name of a file or directory, and can also
// move it to a different directory (if supported by the filesystem).
type RenameRequest struct {
	// FromDirHandle is the file handle of the source directory.
	// Must be a valid directory handle obtained from MOUNT or LOOKUP.
	// Maximum length is 64 bytes per RFC 1813.
	FromDirHandle []byte

	// FromName is the current name of the file or directory to rename.
	// Must follow NFS naming conventions (max 255 bytes, no null bytes or slashes).
	FromName string

	// ToDirHandle is the file handle of the destination directory.
	// Must be a valid directory handle.
	// Can be the same as FromDirHandle for a simple rename.
	// Maximum length is 64 bytes per RFC 1813.
	ToDirHandle []byte

	// ToName is the new name for the file or directory.
	// Must follow NFS naming conventions (max 255 bytes, no null bytes or slashes).
	// If a file with this name already exists in the destination, it will be
	// replaced (atomically, if the filesystem supports it).
	ToName string
}

// RenameResponse represents the response to a RENAME request.
// It contains the status of the operation and WCC data for both
// source and destination directories.
//
// The response is encoded in XDR format before being sent back to the client.
type RenameResponse struct {
	NFSResponseBase // Embeds Status field and GetStatus() method

	// FromDirWccBefore contains pre-operation attributes of the source directory.
	// Used for weak cache consistency.
	FromDirWccBefore *types.WccAttr

	// FromDirWccAfter contains post-operation attributes of the source directory.
	// Used for weak cache consistency.
	FromDirWccAfter *types.NFSFileAttr

	// ToDirWccBefore contains pre-operation attributes of the destination directory.
	// Used for weak cache consistency.
	ToDirWccBefore *types.WccAttr

	// ToDirWccAfter contains post-operation attributes of the destination directory.
	// Used for weak cache consistency.
	ToDirWccAfter *types.NFSFileAttr
}

// ============================================================================
// Protocol Handler
// ============================================================================

// Rename changes the name of a file or directory, optionally moving it.
//
// This implements the NFS RENAME procedure as defined in RFC 1813 Section 3.3.14.
//
// **Purpose:**
//
// RENAME is used to:
//   - Change a file's name within the same directory
//   - Move a file to a different directory
//   - Atomically replace an existing file with a new one
//
// Common use cases:
//   - File renaming: mv oldname.txt newname.txt
//   - File moving: mv file.txt /other/directory/
//   - Atomic replacement: mv newfile.txt existingfile.txt
//
// **Process:**
//
//  1. Check for context cancellation (early exit if client disconnected)
//  2. Validate request parameters (handles, names)
//  3. Extract client IP and authentication credentials from context
//  4. Verify source directory exists and is valid
//  5. Capture pre-operation WCC data for source directory
//  6. Check for cancellation before destination lookup
//  7. Verify destination directory exists and is valid
//  8. Capture pre-operation WCC data for destination directory
//  9. Check for cancellation before atomic rename operation
//  10. Delegate rename operation to store.RenameFile()
//  11. Return updated WCC data for both directories
//
// **Context cancellation:**
//
//   - Checks at the beginning to respect client disconnection
//   - Checks after source directory lookup
//   - Checks after destination directory lookup (before atomic rename)
//   - No check during RenameFile to maintain atomicity
//   - Returns NFS3ErrIO status with context error for cancellation
//   - Always includes WCC data for both directories for cache consistency
//
// **Design Principles:**
//
//   - Protocol layer handles only XDR encoding/decoding and validation
//   - All business logic (rename, replace, validation) delegated to store
//   - File handle validation performed by store.GetFile()
//   - Comprehensive logging at INFO level for operations, DEBUG for details
//
// **Authentication:**
//
// The context contains authentication credentials from the RPC layer.
// The protocol layer passes these to the store, which implements:
//   - Write permission checking on source directory (to remove entry)
//   - Write permission checking on destination directory (to add entry)
//   - Ownership checks for replacing existing files
//   - Access control based on UID/GID
//
// **Atomicity:**
//
// Per RFC 1813, RENAME should be atomic if possible:
//   - If destination exists, it should be replaced atomically
//   - The source should not disappear before destination is updated
//   - Failures should leave filesystem in consistent state
//
// The store implementation should ensure atomicity or handle
// failure recovery appropriately.
//
// **Special Cases:**
//
//   - Renaming to same name in same directory: Success (no-op)
//   - Renaming over existing file: Replaces atomically if allowed
//   - Renaming over existing directory: Only if empty (RFC 1813 requirement)
//   - Renaming directory over file: Not allowed (NFS3ErrExist or types.NFS3ErrNotDir)
//   - Renaming file over directory: Not allowed (NFS3ErrExist or types.NFS3ErrIsDir)
//   - Renaming "." or "..": Not allowed (NFS3ErrInval)
//   - Cross-filesystem rename: May not be supported (NFS3ErrXDev)
//
// **Error Handling:**
//
// Protocol-level errors return appropriate NFS status codes.
// store errors are mapped to NFS status codes:
//   - Source not found → types.NFS3ErrNoEnt
//   - Source/dest not directory → types.NFS3ErrNotDir
//   - Invalid names → NFS3ErrInval
//   - Permission denied → NFS3ErrAcces
//   - Cross-device → NFS3ErrXDev
//   - Destination is non-empty directory → NFS3ErrNotEmpty
//   - I/O error → types.NFS3ErrIO
//   - Context cancelled → types.NFS3ErrIO with error return
//
// **Weak Cache Consistency (WCC):**
//
// WCC data is provided for both source and destination directories:
//  1. Capture pre-operation attributes for both directories
//  2. Perform the rename operation
//  3. Capture post-operation attributes for both directories
//  4. Return both sets of WCC data to client
//
// This helps clients detect concurrent modifications and maintain
// cache consistency for both affected directories.
//
// **Security Considerations:**
//
//   - Handle validation prevents malformed requests
//   - store enforces write permission on both directories
//   - Name validation prevents directory traversal
//   - Cannot rename "." or ".." (prevents filesystem corruption)
//   - Client context enables audit logging
//
// **Parameters:**
//   - ctx: Context with cancellation, client address and authentication credentials
//   - metadataStore: The metadata store for file operations
//   - req: The rename request containing source and destination info
//
// **Returns:**
//   - *RenameResponse: Response with status and WCC data
//   - error: Returns error for context cancellation or catastrophic internal failures;
//     protocol-level errors are indicated via the response Status field
//
// **RFC 1813 Section 3.3.14: RENAME Procedure**
//
// Example:
//
//	handler := &DefaultNFSHandler{}
//	req := &RenameRequest{
//	    FromDirHandle: sourceDirHandle,
//	    FromName:      "oldname.txt",
//	    ToDirHandle:   destDirHandle,
//	    ToName:        "newname.txt",
//	}
//	ctx := &RenameContext{
//	    Context: context.Background(),
//	    ClientAddr: "192.168.1.100:1234",
//	    AuthFlavor: 1, // AUTH_UNIX
//	    UID:        &uid,
//	    GID:        &gid,
//	}
//	resp, err := handler.Rename(ctx, store, req)
//	if err != nil {
//	    if errors.Is(err, context.Canceled) {
//	        // Client disconnected
//	    } else {
//	        // Internal server error
//	    }
//	}
//	if resp.Status == types.NFS3OK {
//	    // Rename successful
//	}
func (h *Handler) Rename(
	ctx *NFSHandlerContext,
	req *RenameRequest,
) (*RenameResponse, error) {
	// Check for cancellation before starting any work
	// This handles the case where the client disconnects before we begin processing
	select {
	case <-ctx.Context.Done():
		logger.Debug("RENAME cancelled before processing: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, ctx.ClientAddr, ctx.Context.Err())
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrIO}}, ctx.Context.Err()
	default:
	}

	// Extract client IP for logging
	clientIP := xdr.ExtractClientIP(ctx.ClientAddr)

	logger.Info("RENAME: from='%s' in dir=%x to='%s' in dir=%x client=%s auth=%d",
		req.FromName, req.FromDirHandle, req.ToName, req.ToDirHandle, clientIP, ctx.AuthFlavor)

	// ========================================================================
	// Step 1: Validate request parameters
	// ========================================================================

	if err := validateRenameRequest(req); err != nil {
		logger.Warn("RENAME validation failed: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, clientIP, err)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: err.nfsStatus}}, nil
	}

	// ========================================================================
	// Step 2: Decode share names from directory file handles
	// ========================================================================

	fromDirHandle := metadata.FileHandle(req.FromDirHandle)
	fromShareName, fromPath, err := metadata.DecodeFileHandle(fromDirHandle)
	if err != nil {
		logger.Warn("RENAME failed: invalid source directory handle: dir=%x client=%s error=%v",
			req.FromDirHandle, clientIP, err)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrBadHandle}}, nil
	}

	toDirHandle := metadata.FileHandle(req.ToDirHandle)
	toShareName, toPath, err := metadata.DecodeFileHandle(toDirHandle)
	if err != nil {
		logger.Warn("RENAME failed: invalid destination directory handle: dir=%x client=%s error=%v",
			req.ToDirHandle, clientIP, err)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrBadHandle}}, nil
	}

	// Verify both handles are from the same share (cross-share rename not allowed)
	if fromShareName != toShareName {
		logger.Warn("RENAME failed: cross-share rename attempted: from_share=%s to_share=%s client=%s",
			fromShareName, toShareName, clientIP)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrInval}}, nil
	}

	// Check if share exists
	if !h.Registry.ShareExists(fromShareName) {
		logger.Warn("RENAME failed: share not found: share=%s client=%s",
			fromShareName, clientIP)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}

	// Get metadata store for this share
	metadataStore, err := h.Registry.GetMetadataStoreForShare(fromShareName)
	if err != nil {
		logger.Error("RENAME failed: cannot get metadata store: share=%s client=%s error=%v",
			fromShareName, clientIP, err)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrIO}}, nil
	}

	logger.Debug("RENAME: share=%s from_path=%s/%s to_path=%s/%s", fromShareName, fromPath, req.FromName, toPath, req.ToName)

	// ========================================================================
	// Step 3: Verify source directory exists and is valid
	// ========================================================================

	fromDirFile, err := metadataStore.GetFile(ctx.Context, fromDirHandle)
	if err != nil {
		// Check if the error is due to context cancellation
		if ctx.Context.Err() != nil {
			logger.Debug("RENAME cancelled during source directory lookup: from='%s' to='%s' client=%s error=%v",
				req.FromName, req.ToName, clientIP, ctx.Context.Err())
			return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrIO}}, ctx.Context.Err()
		}

		logger.Warn("RENAME failed: source directory not found: dir=%x client=%s error=%v",
			req.FromDirHandle, clientIP, err)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrNoEnt}}, nil
	}

	// Capture pre-operation attributes for source directory
	fromDirWccBefore := xdr.CaptureWccAttr(&fromDirFile.FileAttr)

	// Verify source is a directory
	if fromDirFile.Type != metadata.FileTypeDirectory {
		logger.Warn("RENAME failed: source handle not a directory: dir=%x type=%d client=%s",
			req.FromDirHandle, fromDirFile.Type, clientIP)

		fromDirID := xdr.ExtractFileID(fromDirHandle)
		fromDirWccAfter := xdr.MetadataToNFS(&fromDirFile.FileAttr, fromDirID)

		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrNotDir},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  fromDirWccAfter,
		}, nil
	}

	// Check for cancellation before destination directory lookup
	select {
	case <-ctx.Context.Done():
		logger.Debug("RENAME cancelled before destination lookup: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, clientIP, ctx.Context.Err())

		fromDirID := xdr.ExtractFileID(fromDirHandle)
		fromDirWccAfter := xdr.MetadataToNFS(&fromDirFile.FileAttr, fromDirID)

		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrIO},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  fromDirWccAfter,
		}, ctx.Context.Err()
	default:
	}

	// ========================================================================
	// Step 3: Verify destination directory exists and is valid
	// ========================================================================

	toDirFile, err := metadataStore.GetFile(ctx.Context, toDirHandle)
	if err != nil {
		// Check if the error is due to context cancellation
		if ctx.Context.Err() != nil {
			logger.Debug("RENAME cancelled during destination directory lookup: from='%s' to='%s' client=%s error=%v",
				req.FromName, req.ToName, clientIP, ctx.Context.Err())

			// Return WCC for source directory
			fromDirID := xdr.ExtractFileID(fromDirHandle)
			fromDirWccAfter := xdr.MetadataToNFS(&fromDirFile.FileAttr, fromDirID)

			return &RenameResponse{
				NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrIO},
				FromDirWccBefore: fromDirWccBefore,
				FromDirWccAfter:  fromDirWccAfter,
			}, ctx.Context.Err()
		}

		logger.Warn("RENAME failed: destination directory not found: dir=%x client=%s error=%v",
			req.ToDirHandle, clientIP, err)

		// Return WCC for source directory
		fromDirID := xdr.ExtractFileID(fromDirHandle)
		fromDirWccAfter := xdr.MetadataToNFS(&fromDirFile.FileAttr, fromDirID)

		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrNoEnt},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  fromDirWccAfter,
		}, nil
	}

	// Capture pre-operation attributes for destination directory
	toDirWccBefore := xdr.CaptureWccAttr(&toDirFile.FileAttr)

	// Verify destination is a directory
	if toDirFile.Type != metadata.FileTypeDirectory {
		logger.Warn("RENAME failed: destination handle not a directory: dir=%x type=%d client=%s",
			req.ToDirHandle, toDirFile.Type, clientIP)

		fromDirID := xdr.ExtractFileID(fromDirHandle)
		fromDirWccAfter := xdr.MetadataToNFS(&fromDirFile.FileAttr, fromDirID)

		toDirID := xdr.ExtractFileID(toDirHandle)
		toDirWccAfter := xdr.MetadataToNFS(&toDirFile.FileAttr, toDirID)

		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrNotDir},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  fromDirWccAfter,
			ToDirWccBefore:   toDirWccBefore,
			ToDirWccAfter:    toDirWccAfter,
		}, nil
	}

	// Check for cancellation before the atomic rename operation
	// This is the most critical check - we don't want to start the rename
	// if the client has already disconnected
	select {
	case <-ctx.Context.Done():
		logger.Debug("RENAME cancelled before rename operation: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, clientIP, ctx.Context.Err())

		fromDirID := xdr.ExtractFileID(fromDirHandle)
		fromDirWccAfter := xdr.MetadataToNFS(&fromDirFile.FileAttr, fromDirID)

		toDirID := xdr.ExtractFileID(toDirHandle)
		toDirWccAfter := xdr.MetadataToNFS(&toDirFile.FileAttr, toDirID)

		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrIO},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  fromDirWccAfter,
			ToDirWccBefore:   toDirWccBefore,
			ToDirWccAfter:    toDirWccAfter,
		}, ctx.Context.Err()
	default:
	}

	// ========================================================================
	// Step 4: Build authentication context for store
	// ========================================================================

	authCtx, err := BuildAuthContextWithMapping(ctx, h.Registry, ctx.Share)
	if err != nil {
		// Check if error is due to context cancellation
		if ctx.Context.Err() != nil {
			logger.Debug("RENAME cancelled during auth context building: from='%s' to='%s' client=%s error=%v",
				req.FromName, req.ToName, clientIP, ctx.Context.Err())

			fromDirID := xdr.ExtractFileID(fromDirHandle)
			fromDirWccAfter := xdr.MetadataToNFS(&fromDirFile.FileAttr, fromDirID)

			toDirID := xdr.ExtractFileID(toDirHandle)
			toDirWccAfter := xdr.MetadataToNFS(&toDirFile.FileAttr, toDirID)

			return &RenameResponse{
				NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrIO},
				FromDirWccBefore: fromDirWccBefore,
				FromDirWccAfter:  fromDirWccAfter,
				ToDirWccBefore:   toDirWccBefore,
				ToDirWccAfter:    toDirWccAfter,
			}, ctx.Context.Err()
		}

		logger.Error("RENAME failed: failed to build auth context: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, clientIP, err)

		fromDirID := xdr.ExtractFileID(fromDirHandle)
		fromDirWccAfter := xdr.MetadataToNFS(&fromDirFile.FileAttr, fromDirID)

		toDirID := xdr.ExtractFileID(toDirHandle)
		toDirWccAfter := xdr.MetadataToNFS(&toDirFile.FileAttr, toDirID)

		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrIO},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  fromDirWccAfter,
			ToDirWccBefore:   toDirWccBefore,
			ToDirWccAfter:    toDirWccAfter,
		}, nil
	}

	// ========================================================================
	// Step 5: Perform rename via store
	// ========================================================================
	// The store is responsible for:
	// - Verifying source file exists
	// - Checking write permissions on both directories
	// - Handling atomic replacement of destination if it exists
	// - Ensuring destination is not a non-empty directory
	// - Updating parent relationships
	// - Updating directory timestamps
	// - Ensuring atomicity or proper rollback
	//
	// We don't check for cancellation inside RenameFile to maintain atomicity.
	// The store should respect context internally for its operations.

	err = metadataStore.Move(authCtx, fromDirHandle, req.FromName, toDirHandle, req.ToName)
	if err != nil {
		// Check if the error is due to context cancellation
		if ctx.Context.Err() != nil {
			logger.Debug("RENAME cancelled during rename operation: from='%s' to='%s' client=%s error=%v",
				req.FromName, req.ToName, clientIP, ctx.Context.Err())

			// Get updated directory attributes for WCC data (best effort)
			var fromDirWccAfter *types.NFSFileAttr
			if updatedFromDirFile, getErr := metadataStore.GetFile(ctx.Context, fromDirHandle); getErr == nil {
				fromDirID := xdr.ExtractFileID(fromDirHandle)
				fromDirWccAfter = xdr.MetadataToNFS(&updatedFromDirFile.FileAttr, fromDirID)
			}

			var toDirWccAfter *types.NFSFileAttr
			if updatedToDirFile, getErr := metadataStore.GetFile(ctx.Context, toDirHandle); getErr == nil {
				toDirID := xdr.ExtractFileID(toDirHandle)
				toDirWccAfter = xdr.MetadataToNFS(&updatedToDirFile.FileAttr, toDirID)
			}

			return &RenameResponse{
				NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrIO},
				FromDirWccBefore: fromDirWccBefore,
				FromDirWccAfter:  fromDirWccAfter,
				ToDirWccBefore:   toDirWccBefore,
				ToDirWccAfter:    toDirWccAfter,
			}, ctx.Context.Err()
		}

		logger.Error("RENAME failed: store error: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, clientIP, err)

		// Get updated directory attributes for WCC data
		var fromDirWccAfter *types.NFSFileAttr
		if updatedFromDirFile, getErr := metadataStore.GetFile(ctx.Context, fromDirHandle); getErr == nil {
			fromDirID := xdr.ExtractFileID(fromDirHandle)
			fromDirWccAfter = xdr.MetadataToNFS(&updatedFromDirFile.FileAttr, fromDirID)
		}

		var toDirWccAfter *types.NFSFileAttr
		if updatedToDirFile, getErr := metadataStore.GetFile(ctx.Context, toDirHandle); getErr == nil {
			toDirID := xdr.ExtractFileID(toDirHandle)
			toDirWccAfter = xdr.MetadataToNFS(&updatedToDirFile.FileAttr, toDirID)
		}

		// Map store errors to NFS status codes
		status := xdr.MapStoreErrorToNFSStatus(err, clientIP, "rename")

		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: status},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  fromDirWccAfter,
			ToDirWccBefore:   toDirWccBefore,
			ToDirWccAfter:    toDirWccAfter,
		}, nil
	}

	// ========================================================================
	// Step 6: Build success response with updated WCC data
	// ========================================================================

	// Get updated source directory attributes
	var fromDirWccAfter *types.NFSFileAttr
	if updatedFromDirFile, getErr := metadataStore.GetFile(ctx.Context, fromDirHandle); getErr != nil {
		logger.Warn("RENAME: successful but cannot get updated source directory attributes: dir=%x error=%v",
			req.FromDirHandle, getErr)
		// fromDirWccAfter will be nil
	} else {
		fromDirID := xdr.ExtractFileID(fromDirHandle)
		fromDirWccAfter = xdr.MetadataToNFS(&updatedFromDirFile.FileAttr, fromDirID)
	}

	// Get updated destination directory attributes
	var toDirWccAfter *types.NFSFileAttr
	if updatedToDirFile, getErr := metadataStore.GetFile(ctx.Context, toDirHandle); getErr != nil {
		logger.Warn("RENAME: successful but cannot get updated destination directory attributes: dir=%x error=%v",
			req.ToDirHandle, getErr)
		// toDirWccAfter will be nil
	} else {
		toDirID := xdr.ExtractFileID(toDirHandle)
		toDirWccAfter = xdr.MetadataToNFS(&updatedToDirFile.FileAttr, toDirID)
	}

	logger.Info("RENAME successful: from='%s' to='%s' client=%s",
		req.FromName, req.ToName, clientIP)

	// Extract IDs for debug logging
	fromDirID := xdr.ExtractFileID(fromDirHandle)
	toDirID := xdr.ExtractFileID(toDirHandle)
	logger.Debug("RENAME details: from_dir=%d to_dir=%d same_dir=%v",
		fromDirID, toDirID, bytes.Equal(req.FromDirHandle, req.ToDirHandle))

	return &RenameResponse{
		NFSResponseBase:  NFSResponseBase{Status: types.NFS3OK},
		FromDirWccBefore: fromDirWccBefore,
		FromDirWccAfter:  fromDirWccAfter,
		ToDirWccBefore:   toDirWccBefore,
		ToDirWccAfter:    toDirWccAfter,
	}, nil
}

// ============================================================================
// Request Validation
// ============================================================================

// renameValidationError represents a RENAME request validation error.
type renameValidationError struct {
	message   string
	nfsStatus uint32
}

func (e *renameValidationError) Error() string {
	return e.message
}

// validateRenameRequest validates RENAME request parameters.
//
// Checks performed:
//   - Source directory handle is not empty and within limits
//   - Destination directory handle is not empty and within limits
//   - Source and destination names are valid
//   - Names are not "." or ".."
//
// Returns:
//   - nil if valid
//   - *renameValidationError with NFS status if invalid
func validateRenameRequest(req *RenameRequest) *renameValidationError {
	// Validate source directory handle
	if len(req.FromDirHandle) == 0 {
		return &renameValidationError{
			message:   "empty source directory handle",
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}

	if len(req.FromDirHandle) > 64 {
		return &renameValidationError{
			message:   fmt.Sprintf("source directory handle too long: %d bytes (max 64)", len(req.FromDirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}

	// Validate destination directory handle
	if len(req.ToDirHandle) == 0 {
		return &renameValidationError{
			message:   "empty destination directory handle",
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}

	if len(req.ToDirHandle) > 64 {
		return &renameValidationError{
			message:   fmt.Sprintf("destination directory handle too long: %d bytes (max 64)", len(req.ToDirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}

	// Validate source name
	if req.FromName == "" {
		return &renameValidationError{
			message:   "empty source name",
			nfsStatus: types.NFS3ErrInval,
		}
	}

	if len(req.FromName) > 255 {
		return &renameValidationError{
			message:   fmt.Sprintf("source name too long: %d bytes (max 255)", len(req.FromName)),
			nfsStatus: types.NFS3ErrNameTooLong,
		}
	}

	// Check for reserved names
	if req.FromName == "." || req.FromName == ".." {
		return &renameValidationError{
			message:   fmt.Sprintf("cannot rename '%s'", req.FromName),
			nfsStatus: types.NFS3ErrInval,
		}
	}

	// Check for invalid characters in source name
	if strings.ContainsAny(req.FromName, "/\x00") {
		return &renameValidationError{
			message:   "source name contains invalid characters (null or path separator)",
			nfsStatus: types.NFS3ErrInval,
		}
	}

	// Validate destination name
	if req.ToName == "" {
		return &renameValidationError{
			message:   "empty destination name",
			nfsStatus: types.NFS3ErrInval,
		}
	}

	if len(req.ToName) > 255 {
		return &renameValidationError{
			message:   fmt.Sprintf("destination name too long: %d bytes (max 255)", len(req.ToName)),
			nfsStatus: types.NFS3ErrNameTooLong,
		}
	}

	// Check for reserved names
	if req.ToName == "." || req.ToName == ".." {
		return &renameValidationError{
			message:   fmt.Sprintf("cannot rename to '%s'", req.ToName),
			nfsStatus: types.NFS3ErrInval,
		}
	}

	// Check for invalid characters in destination name
	if strings.ContainsAny(req.ToName, "/\x00") {
		return &renameValidationError{
			message:   "destination name contains invalid characters (null or path separator)",
			nfsStatus: types.NFS3ErrInval,
		}
	}

	return nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeRenameRequest decodes a RENAME request from XDR-encoded bytes.
//
// The decoding follows RFC 1813 Section 3.3.14 specifications:
//  1. Source directory handle length (4 bytes, big-endian uint32)
//  2. Source directory handle data (variable length, up to 64 bytes)
//  3. Padding to 4-byte boundary (0-3 bytes)
//  4. Source name length (4 bytes, big-endian uint32)
//  5. Source name data (variable length, up to 255 bytes)
//  6. Padding to 4-byte boundary (0-3 bytes)
//  7. Destination directory handle length (4 bytes, big-endian uint32)
//  8. Destination directory handle data (variable length, up to 64 bytes)
//  9. Padding to 4-byte boundary (0-3 bytes)
//  10. Destination name length (4 bytes, big-endian uint32)
//  11. Destination name data (variable length, up to 255 bytes)
//  12. Padding to 4-byte boundary (0-3 bytes)
//
// XDR encoding uses big-endian byte order and aligns data to 4-byte boundaries.
//
// Parameters:
//   - data: XDR-encoded bytes containing the RENAME request
//
// Returns:
//   - *RenameRequest: The decoded request
//   - error: Any error encountered during decoding (malformed data, invalid length)
//
// Example:
//
//	data := []byte{...} // XDR-encoded RENAME request from network
//	req, err := DecodeRenameRequest(data)
//	if err != nil {
//	    // Handle decode error - send error reply to client
//	    return nil, err
//	}
//	// Use req in RENAME procedure
func DecodeRenameRequest(data []byte) (*RenameRequest, error) {
	// Validate minimum data length
	if len(data) < 16 {
		return nil, fmt.Errorf("data too short: need at least 16 bytes, got %d", len(data))
	}

	reader := bytes.NewReader(data)

	// ========================================================================
	// Decode source directory handle
	// ========================================================================

	fromDirHandle, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode source directory handle: %w", err)
	}

	// ========================================================================
	// Decode source name
	// ========================================================================

	fromName, err := xdr.DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("decode source name: %w", err)
	}

	// ========================================================================
	// Decode destination directory handle
	// ========================================================================

	toDirHandle, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode destination directory handle: %w", err)
	}

	// ========================================================================
	// Decode destination name
	// ========================================================================

	toName, err := xdr.DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("decode destination name: %w", err)
	}

	logger.Debug("Decoded RENAME request: from='%s' in dir_len=%d to='%s' in dir_len=%d",
		fromName, len(fromDirHandle), toName, len(toDirHandle))

	return &RenameRequest{
		FromDirHandle: fromDirHandle,
		FromName:      fromName,
		ToDirHandle:   toDirHandle,
		ToName:        toName,
	}, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the RenameResponse into XDR-encoded bytes suitable for
// transmission over the network.
//
// The encoding follows RFC 1813 Section 3.3.14 specifications:
//  1. Status code (4 bytes, big-endian uint32)
//  2. Source directory WCC data (pre-op and post-op attributes)
//  3. Destination directory WCC data (pre-op and post-op attributes)
//
// WCC data is included for both success and failure cases to help
// clients maintain cache consistency for both directories.
//
// XDR encoding requires all data to be in big-endian format and aligned
// to 4-byte boundaries.
//
// Returns:
//   - []byte: The XDR-encoded response ready to send to the client
//   - error: Any error encountered during encoding
//
// Example:
//
//	resp := &RenameResponse{
//	    NFSResponseBase: NFSResponseBase{Status: types.NFS3OK},
//	    FromDirWccBefore: fromWccBefore,
//	    FromDirWccAfter:  fromWccAfter,
//	    ToDirWccBefore:   toWccBefore,
//	    ToDirWccAfter:    toWccAfter,
//	}
//	data, err := resp.Encode()
//	if err != nil {
//	    // Handle encoding error
//	    return nil, err
//	}
//	// Send 'data' to client over network
func (resp *RenameResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer

	// ========================================================================
	// Write status code
	// ========================================================================

	if err := binary.Write(&buf, binary.BigEndian, resp.Status); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	// ========================================================================
	// Write WCC data for source directory (both success and failure)
	// ========================================================================

	if err := xdr.EncodeWccData(&buf, resp.FromDirWccBefore, resp.FromDirWccAfter); err != nil {
		return nil, fmt.Errorf("encode source directory wcc data: %w", err)
	}

	// ========================================================================
	// Write WCC data for destination directory (both success and failure)
	// ========================================================================

	if err := xdr.EncodeWccData(&buf, resp.ToDirWccBefore, resp.ToDirWccAfter); err != nil {
		return nil, fmt.Errorf("encode destination directory wcc data: %w", err)
	}

	logger.Debug("Encoded RENAME response: %d bytes status=%d", buf.Len(), resp.Status)
	return buf.Bytes(), nil
}
