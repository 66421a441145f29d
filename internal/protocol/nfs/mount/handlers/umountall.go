package handlers

import (
	"context"
	"net"

	"github.com/tyonekura/nfsserver/internal/logger"
	"github.com/tyonekura/nfsserver/pkg/metadata"
)

// UmountAllRequest represents an UMNTALL request from an NFS client.
// Unlike UMNT which unmounts a specific path, UMNTALL removes ALL mount
// entries for the calling client across all export paths.
// This procedure takes no parameters.
//
// RFC 1813 Appendix I specifies the UMNTALL procedure as:
//
//	UMNTALL() -> void
type UmountAllRequest struct {
	// Empty struct - UMNTALL takes no parameters
	// The client is identified by the network connection
}

// UmountAllResponse represents the response to an UMNTALL request.
// According to RFC 1813 Appendix I, the UMNTALL procedure returns void,
// so there is no response data - only the RPC success/failure indication.
//
// Note: Like UMNT, UMNTALL always succeeds per the protocol specification.
// The server acknowledges the request regardless of whether any mounts existed.
type UmountAllResponse struct {
	// Empty struct - UMNTALL returns void (no response data)
}

// UmountAllContext contains the context information needed to process an unmount-all request.
// Since UMNTALL removes all mounts for a specific client, only the client address is needed,
// along with cancellation handling.
type UmountAllContext struct {
	// Context carries cancellation signals and deadlines
	// The UmntAll handler checks this context to handle client disconnection
	// Note: We prioritize completing cleanup once started to maintain
	// mount tracking consistency
	Context context.Context

	// ClientAddr is the network address of the client making the request
	// Format: "IP:port" (e.g., "192.168.1.100:1234")
	// The IP portion is used to identify all mounts belonging to this client
	ClientAddr string
}

// UmntAll handles the UMOUNTALL (UMNTALL) procedure, which allows clients
// to remove all of their mount entries in a single operation.
//
// The unmount-all process:
//  1. Check for context cancellation (early exit if client disconnected)
//  2. Extract the client IP address from the network context
//  3. Query the repository for all mounts from this client (for logging)
//  4. Check for cancellation before the destructive operation
//  5. Remove all mount records for this client across all shares
//  6. Log the operation with count of removed mounts
//  7. Always return success (RFC 1813 specifies void return)
//
// Context cancellation:
//   - Check at the beginning to respect client disconnection
//   - Check before removing mounts to avoid starting destructive operation
//   - Once removal starts, let it complete to ensure consistency
//   - If cancelled during removal, we still return success per RFC
//
// Use cases for UMNTALL:
//   - Client is shutting down and wants to clean up all mounts
//   - Client encountered an error and wants to reset mount state
//   - Administrative cleanup of stale mount records
//   - Client reboot/restart scenarios
//
// Important notes:
//   - UMNTALL always succeeds per RFC 1813, even if no mounts exist
//   - The actual unmounting happens on the client side
//   - Server-side tracking is informational only
//   - No error status codes are defined for UMNTALL in the protocol
//   - This is more efficient than calling UMNT for each mount individually
//
// Parameters:
//   - ctx: Context with cancellation and client information
//   - repository: The metadata repository that tracks active shares
//   - req: Empty request struct (UMNTALL takes no parameters)
//
// Returns:
//   - *UmountAllResponse: Empty response (void)
//   - error: Returns error only if context was cancelled before cleanup;
//     otherwise always returns nil per RFC 1813
//
// RFC 1813 Appendix I: UMNTALL Procedure
func (h *DefaultMountHandler) UmntAll(
	ctx *UmountAllContext,
	repository metadata.MetadataStore,
	req *UmountAllRequest,
) (*UmountAllResponse, error) {
	// Check for cancellation before starting any work
	select {
	case <-ctx.Context.Done():
		logger.Debug("Unmount-all request cancelled before processing: client=%s error=%v",
			ctx.ClientAddr, ctx.Context.Err())
		return &UmountAllResponse{}, ctx.Context.Err()
	default:
	}

	// Extract client IP from address (remove port)
	clientIP, _, err := net.SplitHostPort(ctx.ClientAddr)
	if err != nil {
		// If parsing fails, use the whole address (might be IP only)
		clientIP = ctx.ClientAddr
	}

	logger.Info("Unmount-all request: client=%s", clientIP)

	// Get all active share sessions to find this client's mounts
	// This is for logging purposes - if it fails, we continue anyway
	allSessions, err := repository.GetActiveShares(ctx.Context)
	if err != nil {
		// Check if the error is due to context cancellation
		if ctx.Context.Err() != nil {
			logger.Debug("Unmount-all cancelled while getting share list: client=%s error=%v",
				clientIP, ctx.Context.Err())
			return &UmountAllResponse{}, ctx.Context.Err()
		}

		// Log the error but continue - we'll try to remove anyway
		logger.Warn("Failed to get active shares: client=%s error=%v", clientIP, err)
		allSessions = []metadata.ShareSession{} // Empty list
	}

	// Filter to find mounts belonging to this client
	clientSessions := make([]metadata.ShareSession, 0)
	for _, session := range allSessions {
		if session.ClientAddr == clientIP {
			clientSessions = append(clientSessions, session)
		}
	}

	mountCount := len(clientSessions)
	if mountCount == 0 {
		logger.Info("Unmount-all: client=%s had no active mounts", clientIP)
		return &UmountAllResponse{}, nil
	}

	// Check for cancellation before the destructive remove operations
	// This is important because once we start removing, we want to complete
	// the operation to avoid leaving partial/inconsistent mount records
	select {
	case <-ctx.Context.Done():
		logger.Debug("Unmount-all cancelled before removing mounts: client=%s count=%d error=%v",
			clientIP, mountCount, ctx.Context.Err())
		return &UmountAllResponse{}, ctx.Context.Err()
	default:
	}

	// Remove each mount for this client
	// TODO: This could be optimized with a batch RemoveAllShareMountsByClient() method
	// For now, we remove them individually
	removedCount := 0
	for _, session := range clientSessions {
		err := repository.RemoveShareMount(ctx.Context, session.ShareName, clientIP)
		if err != nil {
			// Check if cancelled during removal
			if ctx.Context.Err() != nil {
				logger.Warn("Unmount-all cancelled during mount removal: client=%s removed=%d of %d error=%v",
					clientIP, removedCount, mountCount, ctx.Context.Err())
				// Per RFC 1813, UMNTALL always succeeds
				break
			}

			// Log error but continue removing other mounts
			logger.Warn("Failed to remove mount record: client=%s share=%s error=%v",
				clientIP, session.ShareName, err)
		} else {
			removedCount++
			logger.Debug("Removed mount: client=%s share=%s", clientIP, session.ShareName)
		}
	}

	if removedCount == mountCount {
		logger.Info("Unmount-all successful: client=%s removed=%d mounts", clientIP, removedCount)
	} else if removedCount > 0 {
		logger.Warn("Unmount-all partially successful: client=%s removed=%d of %d mounts",
			clientIP, removedCount, mountCount)
	} else {
		logger.Warn("Unmount-all failed to remove any mounts: client=%s count=%d",
			clientIP, mountCount)
	}

	// UMNTALL always returns void/success per RFC 1813
	// Even if RemoveShareMount failed or was cancelled, we return success
	// because the client-side unmount has already occurred
	return &UmountAllResponse{}, nil
}

// DecodeUmountAllRequest decodes an UMOUNTALL request.
// Since UMNTALL takes no parameters, this function simply validates
// that the data is empty and returns an empty request struct.
//
// Parameters:
//   - data: Should be empty (UMNTALL has no parameters)
//
// Returns:
//   - *UmountAllRequest: Empty request struct
//   - error: Returns error only if data is unexpectedly non-empty
func DecodeUmountAllRequest(data []byte) (*UmountAllRequest, error) {
	// UMNTALL takes no parameters, so we just return an empty request
	// We don't error on non-empty data to be lenient with client implementations
	return &UmountAllRequest{}, nil
}

// Encode serializes the UmountAllResponse into XDR-encoded bytes.
// Since UMNTALL returns void, this always returns an empty byte slice.
//
// Returns:
//   - []byte: Empty slice (void response)
//   - error: Always nil (encoding void cannot fail)
func (resp *UmountAllResponse) Encode() ([]byte, error) {
	// UMNTALL returns void (no data)
	return []byte{}, nil
}
