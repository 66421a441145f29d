package nfs

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tyonekura/nfsserver/internal/logger"
	nfs "github.com/tyonekura/nfsserver/internal/protocol/nfs"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/rpc"
	"github.com/tyonekura/nfsserver/internal/protocol/nsm"
	storemetadata "github.com/tyonekura/nfsserver/pkg/store/metadata"
)

type NFSConnection struct {
	server    *NFSAdapter
	conn      net.Conn
	tlsActive bool
}

type fragmentHeader struct {
	IsLast bool
	Length uint32
}

// Fragment and record size limits enforced during record-marking reassembly.
const (
	maxFragmentSize = 1 << 20  // 1 MiB per fragment
	maxRecordSize   = 16 << 20 // 16 MiB accumulated across all fragments of one record
)

func NewNFSConnection(server *NFSAdapter, conn net.Conn) *NFSConnection {
	return &NFSConnection{
		server: server,
		conn:   conn,
	}
}

// serve handles all RPC requests for this connection.
// It implements panic recovery to prevent a single misbehaving connection
// from crashing the entire server.
//
// The connection is automatically closed when:
// - The context is cancelled (server shutdown)
// - An idle timeout occurs
// - A read or write timeout occurs
// - An unrecoverable error occurs
// - The client closes the connection
//
// Context cancellation is checked at the beginning of each request loop,
// ensuring graceful shutdown and proper cleanup of resources.
func (c *NFSConnection) Serve(ctx context.Context) {
	defer func() {
		// Panic recovery - prevents a single connection from crashing the server
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler from %s: %v",
				c.conn.RemoteAddr().String(), r)
		}
		_ = c.conn.Close()
	}()

	clientAddr := c.conn.RemoteAddr().String()
	logger.Debug("New connection from %s", clientAddr)

	// Set initial idle timeout
	if c.server.config.IdleTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.server.config.IdleTimeout)); err != nil {
			logger.Warn("Failed to set deadline for %s: %v", clientAddr, err)
		}
	}

	for {
		// Check for context cancellation before processing next request
		// This provides graceful shutdown capability
		select {
		case <-ctx.Done():
			logger.Debug("Connection from %s closed due to context cancellation", clientAddr)
			return
		case <-c.server.shutdown:
			logger.Debug("Connection from %s closed due to server shutdown", clientAddr)
			return
		default:
		}

		startTime := time.Now()
		err := c.handleRequest(ctx)
		duration := time.Since(startTime)

		if err != nil {
			if err == io.EOF {
				logger.Debug("Connection from %s closed by client", clientAddr)
			} else if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				logger.Debug("Connection from %s timed out: %v", clientAddr, err)
			} else if err == context.Canceled || err == context.DeadlineExceeded {
				logger.Debug("Connection from %s cancelled: %v", clientAddr, err)
			} else {
				logger.Debug("Error handling request from %s: %v", clientAddr, err)
			}
			return
		}

		// Record successful request (actual success/error determined in handler)
		// This records the request was processed, not necessarily successful
		_ = duration // Will be recorded in handleRPCCall

		// Reset idle timeout after successful request
		if c.server.config.IdleTimeout > 0 {
			if err := c.conn.SetDeadline(time.Now().Add(c.server.config.IdleTimeout)); err != nil {
				logger.Warn("Failed to reset deadline for %s: %v", clientAddr, err)
			}
		}
	}
}

// handleRequest processes a single RPC request.
//
// It reads the fragment header, validates the message size, reads the RPC message,
// parses it, and dispatches it to the appropriate handler.
//
// The context is passed through to handlers to enable cancellation of long-running
// operations.
//
// Returns an error if:
// - Context is cancelled
// - Network error occurs
// - Message is malformed or too large
// - Handler returns an error
func (c *NFSConnection) handleRequest(ctx context.Context) error {
	// Check context before starting request processing
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Apply read timeout if configured
	if c.server.config.ReadTimeout > 0 {
		deadline := time.Now().Add(c.server.config.ReadTimeout)
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	// Check context before reading potentially large message
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Read the full RPC record, reassembling it from fragments if the
	// client split it across more than one.
	message, err := c.readRecord(ctx)
	if err != nil {
		if err != io.EOF {
			logger.Debug("Error reading RPC record from %s: %v", c.conn.RemoteAddr().String(), err)
		}
		return err
	}
	// NOTE: Buffer is returned AFTER handler completes to allow zero-copy
	// operations where procedureData is a slice into the original buffer
	defer nfs.PutBuffer(message)

	// Parse RPC call
	call, err := rpc.ReadCall(message)
	if err != nil {
		logger.Debug("Error parsing RPC call: %v", err)
		return nil
	}

	logger.Debug("RPC Call: XID=0x%x Program=%d Version=%d Procedure=%d",
		call.XID, call.Program, call.Version, call.Procedure)

	// Extract procedure data (returns slice into message buffer - zero-copy)
	procedureData, err := rpc.ReadData(message, call)
	if err != nil {
		return fmt.Errorf("extract procedure data: %w", err)
	}

	// Check context before dispatching to handler
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Handle the call with context
	// IMPORTANT: procedureData is a slice into the pooled message buffer
	// The buffer will be returned to the pool when this function exits
	return c.handleRPCCall(ctx, call, procedureData)
}

// readFragmentHeader reads the 4-byte RPC fragment header.
//
// The fragment header contains:
// - Bit 31: Last fragment flag (1 = last, 0 = more fragments)
// - Bits 0-30: Fragment length in bytes
//
// Returns the parsed header or an error if reading fails.
func (c *NFSConnection) readFragmentHeader() (*fragmentHeader, error) {
	var buf [4]byte
	_, err := io.ReadFull(c.conn, buf[:])
	if err != nil {
		return nil, err
	}

	header := binary.BigEndian.Uint32(buf[:])
	return &fragmentHeader{
		IsLast: (header & 0x80000000) != 0,
		Length: header & 0x7FFFFFFF,
	}, nil
}

// readRecord reads one full RPC record, reassembling it from one or more
// fragments per RFC 5531 record marking: fragments accumulate until one
// arrives with the last-fragment bit set. Each fragment is capped at
// maxFragmentSize and the reassembled record at maxRecordSize, bounding
// memory use from a misbehaving or oversized client request.
func (c *NFSConnection) readRecord(ctx context.Context) ([]byte, error) {
	var record []byte
	fragments := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		header, err := c.readFragmentHeader()
		if err != nil {
			if err == io.EOF && fragments > 0 {
				// Connection died mid-record: a partial record is not EOF.
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		logger.Debug("Read fragment header from %s: last=%v length=%d",
			c.conn.RemoteAddr().String(), header.IsLast, header.Length)

		if header.Length > maxFragmentSize {
			logger.Warn("Fragment size %d exceeds maximum %d from %s",
				header.Length, maxFragmentSize, c.conn.RemoteAddr().String())
			return nil, fmt.Errorf("fragment too large: %d bytes", header.Length)
		}
		if uint64(len(record))+uint64(header.Length) > maxRecordSize {
			logger.Warn("Reassembled record exceeds maximum %d bytes from %s",
				maxRecordSize, c.conn.RemoteAddr().String())
			return nil, fmt.Errorf("record too large: exceeds %d bytes", maxRecordSize)
		}

		fragment, err := c.readRPCMessage(header.Length)
		if err != nil {
			return nil, fmt.Errorf("read fragment: %w", err)
		}
		fragments++

		if fragments == 1 && header.IsLast {
			// Single-fragment record: the common case, no reassembly copy needed.
			return fragment, nil
		}

		record = append(record, fragment...)
		nfs.PutBuffer(fragment)

		if header.IsLast {
			return record, nil
		}
	}
}

// readRPCMessage reads an RPC message of the specified length.
//
// It uses a buffer pool to reduce allocations for frequently sized messages.
// The caller is responsible for returning the buffer to the pool via PutBuffer.
//
// Returns the message buffer or an error if reading fails.
func (c *NFSConnection) readRPCMessage(length uint32) ([]byte, error) {
	// Get buffer from pool
	message := nfs.GetBuffer(length)

	// Read directly into pooled buffer
	_, err := io.ReadFull(c.conn, message)
	if err != nil {
		// Return buffer to pool on error
		nfs.PutBuffer(message)
		return nil, fmt.Errorf("read message: %w", err)
	}

	return message, nil
}

// handleRPCCall dispatches an RPC call to the appropriate handler.
//
// It routes calls to either NFS or MOUNT handlers based on the program number,
// records metrics, and sends the reply back to the client.
//
// The context is passed through to handlers to enable cancellation of
// long-running operations like large file reads/writes or directory scans.
//
// Returns an error if:
// - Context is cancelled during processing
// - Handler returns an error
// - Reply cannot be sent
func (c *NFSConnection) handleRPCCall(ctx context.Context, call *rpc.RPCCallMessage, procedureData []byte) error {
	var replyData []byte
	var err error

	clientAddr := c.conn.RemoteAddr().String()

	logger.Debug("RPC Call Details: Program=%d Version=%d Procedure=%d",
		call.Program, call.Version, call.Procedure)

	// Check context before dispatching to handler
	select {
	case <-ctx.Done():
		logger.Debug("RPC call cancelled before handler dispatch: XID=0x%x client=%s error=%v",
			call.XID, clientAddr, ctx.Err())
		return ctx.Err()
	default:
	}

	if upgraded, err := c.tryTLSUpgrade(call); upgraded {
		return err
	}

	switch call.Program {
	case rpc.ProgramNFS:
		if call.Version == 4 {
			replyData, err = c.handleNFSv4Procedure(ctx, call, procedureData, clientAddr)
		} else {
			replyData, err = c.handleNFSProcedure(ctx, call, procedureData, clientAddr)
		}
	case rpc.ProgramMount:
		replyData, err = c.handleMountProcedure(ctx, call, procedureData, clientAddr)
	case rpc.ProgramNLM:
		replyData, err = c.handleNLMProcedure(call, procedureData)
	case rpc.ProgramNSM:
		replyData, err = c.handleNSMProcedure(call, procedureData)
	default:
		logger.Debug("Unknown program: %d", call.Program)
		return nil
	}

	if err != nil {
		// Check if error was due to context cancellation
		if err == context.Canceled || err == context.DeadlineExceeded {
			logger.Debug("Handler cancelled: program=%d procedure=%d xid=0x%x client=%s error=%v",
				call.Program, call.Procedure, call.XID, clientAddr, err)
			return err
		}

		logger.Debug("Handler error: %v", err)
		return fmt.Errorf("handle program %d: %w", call.Program, err)
	}

	return c.sendReply(call.XID, replyData)
}

// tryTLSUpgrade handles the RFC 9289 Section 4.1 RPC-with-TLS handshake: a
// client requests the upgrade by sending a NULL procedure call (any program)
// with the AUTH_TLS credential flavor. The server answers with a STARTTLS
// verifier and then performs the TLS handshake on the same connection before
// any further RPC traffic is exchanged. This check runs ahead of program
// dispatch, matching the original's placement in its message-processing loop,
// since AUTH_TLS is a connection-level negotiation, not a program-specific one.
func (c *NFSConnection) tryTLSUpgrade(call *rpc.RPCCallMessage) (bool, error) {
	if call.Procedure != 0 || call.GetAuthFlavor() != rpc.AuthTLS {
		return false, nil
	}
	if c.server.tlsConfig == nil || c.tlsActive {
		return false, nil
	}

	reply, err := rpc.MakeSTARTTLSReply(call.XID)
	if err != nil {
		return true, fmt.Errorf("make STARTTLS reply: %w", err)
	}
	if _, err := c.conn.Write(reply); err != nil {
		return true, fmt.Errorf("write STARTTLS reply: %w", err)
	}

	tlsConn := tls.Server(c.conn, c.server.tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		return true, fmt.Errorf("TLS handshake: %w", err)
	}

	c.conn = tlsConn
	c.tlsActive = true
	logger.Debug("RPC-with-TLS upgrade complete for client=%s", tlsConn.RemoteAddr())
	return true, nil
}

// handleNFSProcedure dispatches an NFS procedure call to the appropriate handler.
//
// It looks up the procedure in the dispatch table, extracts authentication
// context from the RPC call, and invokes the handler with the context.
//
// The context enables handlers to:
// - Respect cancellation during long operations (READ, WRITE, READDIR)
// - Implement request timeouts
// - Support graceful server shutdown
//
// Returns the reply data or an error if the handler fails.
func (c *NFSConnection) handleNFSProcedure(ctx context.Context, call *rpc.RPCCallMessage, data []byte, clientAddr string) ([]byte, error) {
	// Look up procedure in dispatch table
	procInfo, ok := nfs.NfsDispatchTable[call.Procedure]
	if !ok {
		logger.Debug("Unknown NFS procedure: %d", call.Procedure)
		return []byte{}, nil
	}

	// Extract authentication context
	authCtx := nfs.ExtractAuthContext(ctx, call, clientAddr, procInfo.Name)

	// Log procedure with auth info
	if authCtx.UID != nil {
		logger.Debug("NFS %s: uid=%d gid=%d ngids=%d",
			procInfo.Name, *authCtx.UID, *authCtx.GID, len(authCtx.GIDs))
	} else {
		logger.Debug("NFS %s: auth_flavor=%d (no Unix credentials)",
			procInfo.Name, authCtx.AuthFlavor)
	}

	// Check context before dispatching to handler
	// This prevents starting work on cancelled requests
	select {
	case <-ctx.Done():
		logger.Debug("NFS %s cancelled before handler: xid=0x%x client=%s error=%v",
			procInfo.Name, call.XID, clientAddr, ctx.Err())
		return nil, ctx.Err()
	default:
	}

	// Record request start in metrics
	c.server.metrics.RecordRequestStart(procInfo.Name)
	defer c.server.metrics.RecordRequestEnd(procInfo.Name)

	// Dispatch to handler with context and record metrics
	startTime := time.Now()
	replyData, err := procInfo.Handler(
		authCtx,
		c.server.nfsHandler,
		c.server.metadataStore,
		c.server.content,
		data,
	)
	duration := time.Since(startTime)

	// Record request completion in metrics
	c.server.metrics.RecordRequest(procInfo.Name, duration, err)

	return replyData, err
}

// nfsv4ProcNull and nfsv4ProcCompound are the only two procedures NFS
// version 4 defines on program 100003; every actual operation travels
// inside a COMPOUND's operation array instead of as its own procedure.
const (
	nfsv4ProcNull     = 0
	nfsv4ProcCompound = 1
)

// toStoreAuthContext adapts the RPC-layer AuthContext (Unix credentials
// parsed straight off the wire) to the store-layer AuthContext the registry
// and NFSv4 handlers expect, carrying over UID/GID/GIDs as an Identity.
func toStoreAuthContext(ctx context.Context, authCtx *nfs.AuthContext) *storemetadata.AuthContext {
	sc := &storemetadata.AuthContext{
		Context:    ctx,
		AuthMethod: "null",
		ClientAddr: authCtx.ClientAddr,
	}
	if authCtx.UID != nil {
		sc.AuthMethod = "unix"
		sc.Identity = &storemetadata.Identity{
			UID:  authCtx.UID,
			GID:  authCtx.GID,
			GIDs: authCtx.GIDs,
		}
	}
	return sc
}

// handleNFSv4Procedure dispatches NFS version 4 traffic, which is a single
// COMPOUND procedure multiplexing every NFSv4 operation rather than the
// one-procedure-per-operation layout NFSv3 uses.
func (c *NFSConnection) handleNFSv4Procedure(ctx context.Context, call *rpc.RPCCallMessage, data []byte, clientAddr string) ([]byte, error) {
	if c.server.v4Handler == nil {
		logger.Debug("NFSv4 request received but no registry configured")
		return []byte{}, nil
	}

	switch call.Procedure {
	case nfsv4ProcNull:
		return []byte{}, nil
	case nfsv4ProcCompound:
		authCtx := nfs.ExtractAuthContext(ctx, call, clientAddr, "COMPOUND")
		storeAuth := toStoreAuthContext(ctx, authCtx)

		c.server.metrics.RecordRequestStart("V4_COMPOUND")
		defer c.server.metrics.RecordRequestEnd("V4_COMPOUND")

		start := time.Now()
		reply, err := c.server.v4Handler.ServeCompound(ctx, storeAuth, clientAddr, data)
		c.server.metrics.RecordRequest("V4_COMPOUND", time.Since(start), err)
		return reply, err
	default:
		logger.Debug("Unknown NFSv4 procedure: %d", call.Procedure)
		return []byte{}, nil
	}
}

// handleNLMProcedure dispatches Network Lock Manager calls (program 100021),
// NFSv3's companion byte-range locking protocol.
func (c *NFSConnection) handleNLMProcedure(call *rpc.RPCCallMessage, data []byte) ([]byte, error) {
	if c.server.nlmServer == nil {
		return []byte{}, nil
	}
	c.server.metrics.RecordRequestStart("NLM")
	defer c.server.metrics.RecordRequestEnd("NLM")

	start := time.Now()
	reply, handled, err := c.server.nlmServer.Dispatch(call.Procedure, data)
	c.server.metrics.RecordRequest("NLM", time.Since(start), err)
	if !handled {
		logger.Debug("Unsupported NLM procedure: %d", call.Procedure)
		return []byte{}, nil
	}
	return reply, err
}

// handleNSMProcedure dispatches Network Status Monitor calls (program
// 100024). This server only implements the server side statd would invoke
// when a monitored client reboots (SM_NOTIFY); the client side (SM_MON,
// SM_UNMON) is driven outbound by nsm.Client, not received here.
func (c *NFSConnection) handleNSMProcedure(call *rpc.RPCCallMessage, data []byte) ([]byte, error) {
	if c.server.nsmClient == nil {
		return []byte{}, nil
	}
	if call.Procedure != nsm.ProcNotify {
		logger.Debug("Unsupported NSM procedure: %d", call.Procedure)
		return []byte{}, nil
	}
	reply, err := c.server.nsmClient.ServeNotify(data)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// handleMountProcedure dispatches a MOUNT procedure call to the appropriate handler.
//
// It looks up the procedure in the dispatch table, extracts authentication
// context from the RPC call, and invokes the handler with the context.
//
// The context enables handlers to respect cancellation and timeouts.
//
// Returns the reply data or an error if the handler fails.
func (c *NFSConnection) handleMountProcedure(ctx context.Context, call *rpc.RPCCallMessage, data []byte, clientAddr string) ([]byte, error) {
	// Look up procedure in dispatch table
	procInfo, ok := nfs.MountDispatchTable[call.Procedure]
	if !ok {
		logger.Debug("Unknown Mount procedure: %d", call.Procedure)
		return []byte{}, nil
	}

	// Extract authentication context
	authCtx := nfs.ExtractAuthContext(ctx, call, clientAddr, procInfo.Name)

	// Log procedure with auth info
	if authCtx.UID != nil {
		logger.Debug("MOUNT %s: uid=%d gid=%d ngids=%d",
			procInfo.Name, *authCtx.UID, *authCtx.GID, len(authCtx.GIDs))
	} else {
		logger.Debug("MOUNT %s: auth_flavor=%d",
			procInfo.Name, authCtx.AuthFlavor)
	}

	// Check context before dispatching to handler
	select {
	case <-ctx.Done():
		logger.Debug("MOUNT %s cancelled before handler: xid=0x%x client=%s error=%v",
			procInfo.Name, call.XID, clientAddr, ctx.Err())
		return nil, ctx.Err()
	default:
	}

	// Record request start in metrics (use MOUNT_ prefix to distinguish from NFS)
	procedureName := "MOUNT_" + procInfo.Name
	c.server.metrics.RecordRequestStart(procedureName)
	defer c.server.metrics.RecordRequestEnd(procedureName)

	// Dispatch to handler with context and record metrics
	startTime := time.Now()
	replyData, err := procInfo.Handler(
		authCtx,
		c.server.mountHandler,
		c.server.metadataStore,
		data,
	)
	duration := time.Since(startTime)

	// Record request completion in metrics
	c.server.metrics.RecordRequest(procedureName, duration, err)

	return replyData, err
}

// sendReply sends an RPC reply to the client.
//
// It applies write timeout if configured, constructs the RPC success reply,
// and writes it to the connection.
//
// Returns an error if:
// - Write timeout cannot be set
// - Reply construction fails
// - Network write fails
func (c *NFSConnection) sendReply(xid uint32, data []byte) error {
	if c.server.config.WriteTimeout > 0 {
		deadline := time.Now().Add(c.server.config.WriteTimeout)
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	reply, err := rpc.MakeSuccessReply(xid, data)
	if err != nil {
		return fmt.Errorf("make reply: %w", err)
	}

	_, err = c.conn.Write(reply)
	if err != nil {
		return fmt.Errorf("write reply: %w", err)
	}

	logger.Debug("Sent reply for XID=0x%x (%d bytes)", xid, len(reply))
	return nil
}
