package handlers

import (
	"bytes"
	"context"

	"github.com/tyonekura/nfsserver/internal/logger"
	)

// ============================================================================
// Request and Response Structures
// ============================================================================

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
// This includes client identification for logging and monitoring purposes.
//
// While NULL doesn't perform operations requiring authentication, we maintain
// the context structure for:
//   - Consistent logging across all procedures
//   - Connection monitoring and metrics
//   - Security auditing (detecting port scans, etc.)
//   - Rate limiting and abuse detection
type NullContext struct {
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

// ============================================================================
// Protocol Handler
// ============================================================================

// Null implements the NFS NULL procedure - a no-operation used for connectivity testing.
//
// This implements the NFS NULL procedure as defined in RFC 1813 Appendix I.
//
// **Purpose:**
//
// The NULL procedure serves several important functions despite doing no work:
//   - **Connectivity Testing**: Clients can verify the server is reachable and responding
//   - **RPC Validation**: Confirms that RPC communication is functioning correctly
//   - **Keep-Alive**: Prevents idle timeout on network connections and firewalls
//   - **Server Health**: Can be used for health checks and monitoring
//   - **Version Detection**: Verifies NFSv3 support without side effects
//   - **Authentication Testing**: Tests RPC authentication without performing operations
//
// **Process:**
//
//  1. Check for context cancellation (client disconnect, timeout)
//  2. Log the NULL request with client information
//  3. Optionally delegate to store for health check validation
//  4. Return empty success response
//
// **Design Principles:**
//
//   - Protocol layer handles request/response structure
//   - store can implement health checks (storage availability, resource limits)
//   - Consistent logging pattern with other procedures
//   - Zero overhead - should be extremely fast
//   - Respects context cancellation for client disconnects
//
// **Use Cases:**
//
//   - **Mount Protocol**: Used during mount negotiation to verify server availability
//   - **Client Tools**: Commands like `showmount` may use NULL to test connectivity
//   - **Load Balancers**: Health check endpoints often use NULL procedure
//   - **Monitoring Systems**: Regular NULL calls verify server responsiveness
//   - **Debugging**: Network administrators use NULL to diagnose connectivity issues
//
// **Authentication:**
//
// NULL typically doesn't require authentication, but the context is provided for:
//   - Audit logging - track who is probing the server
//   - Rate limiting - prevent NULL flooding attacks
//   - Connection tracking - monitor client connection patterns
//   - Security analysis - detect port scanning or reconnaissance
//
// **Performance Considerations:**
//
// NULL should be the fastest NFS procedure:
//   - Minimal logging (INFO level only)
//   - No disk I/O or metadata access
//   - No locking or synchronization
//   - Immediate return with empty response
//   - Should complete in microseconds
//   - Context check adds negligible overhead (~nanoseconds)
//
// **Context Cancellation:**
//
// While NULL is extremely fast, we still respect context cancellation:
//   - Client disconnects before response is sent
//   - Timeout from load balancer health checks
//   - Server shutdown in progress
//   - Network connection failures
//
// If context is cancelled, we return immediately without completing the health check.
// This prevents wasted resources on already-abandoned requests.
//
// **Security Considerations:**
//
//   - NULL can be used for reconnaissance (detecting NFS servers)
//   - High NULL request rates may indicate scanning or DoS attempts
//   - Log client addresses for security monitoring
//   - Consider rate limiting if abuse is detected
//   - NULL responses reveal server version and capabilities
//
// **Error Handling:**
//
// NULL cannot fail under normal circumstances. Even if the store
// is unavailable, NULL should succeed. Failure modes:
//   - Context cancelled (client disconnect/timeout) - returns context.Canceled
//   - Catastrophic internal error (extremely rare) - returns error
//
// **store Interaction:**
//
// While NULL doesn't require store access, we can optionally:
//   - Call store.Healthcheck() to verify backend health
//   - Return success even if store check fails (NULL must always succeed)
//   - Log store health for monitoring purposes
//   - Pass context through for cancellation support
//
// This allows NULL to serve as a basic health check endpoint while maintaining
// RFC 1813 compliance (NULL always succeeds unless cancelled).
//
// **Parameters:**
//   - ctx: Context with client address, authentication, and cancellation support
//   - metadataStore: The metadata store (may be used for health checks)
//   - req: The NULL request (empty structure)
//
// **Returns:**
//   - *NullResponse: Empty response structure (always succeeds unless cancelled)
//   - error: Returns error for context cancellation or catastrophic internal failures
//
// **RFC 1813 Appendix I: NULL Procedure**
//
// From RFC 1813:
// "Procedure NULL does not do any work. It is made available to allow
//
//	server response testing and timing."
//
// Example:
//
//	handler := &DefaultNFSHandler{}
//	req := &NullRequest{}
//	ctx := &NullContext{
//	    Context:    context.Background(),
//	    ClientAddr: "192.168.1.100:1234",
//	    AuthFlavor: 0, // AUTH_NULL
//	}
//	resp, err := handler.Null(ctx, store, req)
//	if err == context.Canceled {
//	    // Client disconnected before response sent
//	    return nil, err
//	}
//	if err != nil {
//	    // This should never happen - NULL always succeeds
//	    log.Fatal("NULL procedure failed:", err)
//	}
//	// Server is responding - NULL always returns success
func (h *Handler) Null(
	ctx *NullContext,
	req *NullRequest,
) (*NullResponse, error) {
	// ========================================================================
	// Context Cancellation Check
	// ========================================================================
	// Check if the client has disconnected or the request has timed out.
	// While NULL is extremely fast, we should still respect cancellation to
	// avoid wasting resources on abandoned requests (e.g., during server shutdown,
	// load balancer health check timeouts, or client disconnects).
	select {
	case <-ctx.Context.Done():
		logger.Debug("NULL: request cancelled: client=%s error=%v",
			ctx.ClientAddr, ctx.Context.Err())
		return nil, ctx.Context.Err()
	default:
		// Context not cancelled, continue processing
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

	// ========================================================================
	// Optional: store health check
	// ========================================================================
	// NOTE: Health check removed as NULL doesn't have a file handle to decode
	// and shouldn't depend on any particular share. NULL must always succeed
	// per RFC 1813 regardless of backend state.

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
