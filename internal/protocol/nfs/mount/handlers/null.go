package handlers

import (
	"bytes"
	"context"

	"github.com/tyonekura/nfsserver/internal/logger"
)

// NullRequest represents a NULL request from an NFS client.
// The NULL procedure takes no arguments per RFC 1813.
//
// This structure exists for consistency with other procedures and to support
// potential future extensions (e.g., debugging parameters).
//
// RFC 1813 Section 3.3.0 specifies the NULL procedure as:
//
//	void NFSPROC3_NULL(void) = 0;
//
// The NULL procedure is defined in RFC 1813 Appendix I and serves as:
//   - A connectivity test - verifies the server is reachable
//   - An RPC validation test - confirms RPC protocol is working
//   - A keep-alive mechanism - maintains network connections
//   - A version check - confirms NFSv3 support
type NullRequest struct {
	// No fields - NULL takes no arguments
}

// NullResponse represents the response to a NULL request.
// The NULL procedure returns no data per RFC 1813.
//
// The response is encoded in XDR format (empty) before being sent to the client.
type NullResponse struct {
	// No fields - NULL returns no data
}

// NullContext contains the context information for a NULL request.
// This includes client identification for logging and monitoring purposes,
// as well as cancellation handling.
//
// While NULL doesn't perform operations requiring authentication, we maintain
// the context structure for:
//   - Consistent logging across all procedures
//   - Connection monitoring and metrics
//   - Security auditing (detecting port scans, etc.)
//   - Rate limiting and abuse detection
//   - Graceful handling of client disconnections
type NullContext struct {
	// Context carries cancellation signals and deadlines
	// The NULL handler checks this context to abort if the client disconnects
	// Note: Per RFC 1813, NULL should be extremely fast, so cancellation
	// checks are minimal to maintain low latency
	Context context.Context

	// ClientAddr is the network address of the client making the request.
	// Format: "IP:port" (e.g., "192.168.1.100:1234")
	ClientAddr string

	// AuthFlavor is the authentication method used by the client.
	// Common values:
	//   - 0: AUTH_NULL (no authentication)
	//   - 1: AUTH_UNIX (Unix UID/GID authentication)
	// For NULL procedure, authentication is typically not enforced.
	AuthFlavor uint32

	// UID is the authenticated user ID (from AUTH_UNIX).
	// May be nil for AUTH_NULL or when authentication is not provided.
	UID *uint32

	// GID is the authenticated group ID (from AUTH_UNIX).
	// May be nil for AUTH_NULL or when authentication is not provided.
	GID *uint32

	// GIDs is a list of supplementary group IDs (from AUTH_UNIX).
	// May be empty for AUTH_NULL or when authentication is not provided.
	GIDs []uint32
}

// MountNull handles the NULL procedure, which is a no-op used to test connectivity.
//
// The NULL procedure is the simplest NFS operation and serves multiple purposes:
//   - Connectivity testing: Verifies the server is reachable and responding
//   - RPC validation: Confirms the RPC protocol layer is working correctly
//   - Keep-alive: Maintains network connections and NAT mappings
//   - Version verification: Confirms NFSv3 protocol support
//
// Per RFC 1813, NULL must always succeed and return immediately, regardless of
// server state. This makes it ideal for health checks and monitoring.
//
// The operation flow:
//  1. Check for context cancellation (client disconnected before processing)
//  2. Log the NULL request for monitoring purposes
//  3. Optionally verify repository health (non-fatal if it fails)
//  4. Return success (empty response)
//
// Context cancellation:
//   - Single check at the beginning to respect client disconnection
//   - No additional checks needed - NULL is extremely fast
//   - If cancelled, returns error immediately (per standard Go patterns)
//   - Note: Per RFC 1813, NULL should succeed even if backend has issues
//
// Important characteristics:
//   - Must be extremely fast (typically < 1ms)
//   - Must always succeed per RFC 1813
//   - No authentication required
//   - No data validation needed
//   - Safe to call repeatedly (idempotent)
//   - Does not modify server state
//
// Parameters:
//   - ctx: Context with cancellation and client information
//   - repository: The metadata repository (used for optional health check)
//   - req: Empty request structure (NULL takes no parameters)
//
// Returns:
//   - *NullResponse: Empty response structure (always on success)
//   - error: Only returns error if context was cancelled before processing
//
// RFC 1813 Appendix I: NULL Procedure
//
// Example:
//
//	handler := &Handler{}
//	ctx := &NullContext{
//	    Context: context.Background(),
//	    ClientAddr: "192.168.1.100:1234",
//	}
//	req := &NullRequest{}
//	resp, err := handler.MountNull(ctx, repository, req)
//	if err != nil {
//	    if errors.Is(err, context.Canceled) {
//	        // Client disconnected before we could respond
//	    }
//	}
//	// resp is always non-nil on success (empty response)
func (h *Handler) MountNull(
	ctx *NullContext,
	req *NullRequest,
) (*NullResponse, error) {
	// Check for cancellation before starting
	// This is the only cancellation check for NULL since the operation is so fast
	// Per RFC 1813, NULL should be extremely lightweight, so we minimize overhead
	select {
	case <-ctx.Context.Done():
		logger.Debug("NULL: request cancelled before processing: client=%s error=%v",
			ctx.ClientAddr, ctx.Context.Err())
		return nil, ctx.Context.Err()
	default:
	}

	// Extract client IP for logging
	clientIP := ctx.ClientAddr
	if idx := len(clientIP) - 1; idx >= 0 {
		// Strip port if present (format: "IP:port")
		for i := idx; i >= 0; i-- {
			if clientIP[i] == ':' {
				clientIP = clientIP[:i]
				break
			}
		}
	}

	logger.Info("NULL: client=%s auth=%d", clientIP, ctx.AuthFlavor)

	// NULL procedure does nothing - just returns success
	// Per RFC 1813, this is used for connectivity testing
	logger.Debug("NULL: request completed successfully: client=%s", clientIP)

	// Return empty response - NULL always succeeds
	return &NullResponse{}, nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeNullRequest decodes a NULL request from XDR-encoded bytes.
//
// The NULL procedure takes no arguments, so the request body should be empty.
// However, we still provide this function for consistency with other procedures
// and to handle any unexpected data gracefully.
//
// Per RFC 1813, the NULL request has no parameters:
//
//	void NFSPROC3_NULL(void) = 0;
//
// Parameters:
//   - data: XDR-encoded bytes (should be empty for NULL)
//
// Returns:
//   - *NullRequest: Empty request structure
//   - error: Only if data is malformed (non-empty when it should be empty)
//
// Example:
//
//	data := []byte{} // Empty XDR data for NULL request
//	req, err := DecodeNullRequest(data)
//	if err != nil {
//	    // Handle decode error (should be rare for NULL)
//	    return nil, err
//	}
//	// req is an empty NullRequest structure
func DecodeNullRequest(data []byte) (*NullRequest, error) {
	// NULL takes no arguments - data should be empty
	// We accept empty or minimal data for compatibility
	if len(data) > 0 {
		logger.Debug("NULL: received non-empty request body (%d bytes), ignoring", len(data))
	}

	return &NullRequest{}, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the NullResponse into XDR-encoded bytes suitable for
// transmission over the network.
//
// The NULL procedure returns no data per RFC 1813, so the response is empty.
// However, we still follow XDR encoding conventions for consistency.
//
// Per RFC 1813, the NULL response has no return value:
//
//	void NFSPROC3_NULL(void) = 0;
//
// Returns:
//   - []byte: Empty byte array (XDR-encoded NULL response)
//   - error: Should never return error for NULL encoding
//
// Example:
//
//	resp := &NullResponse{}
//	data, err := resp.Encode()
//	if err != nil {
//	    // This should never happen
//	    return nil, err
//	}
//	// data is an empty byte array
//	// Send 'data' to client over network
func (resp *NullResponse) Encode() ([]byte, error) {
	// NULL returns no data - return empty buffer
	var buf bytes.Buffer

	logger.Debug("Encoded NULL response: 0 bytes")
	return buf.Bytes(), nil
}
