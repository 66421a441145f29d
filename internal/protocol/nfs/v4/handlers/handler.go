// Package handlers implements the NFSv4.0 COMPOUND procedure (RFC 7530
// Section 15.2): a single RPC call bundling an ordered list of operations,
// each dispatched to its own handler and executed against the shared
// CompoundContext until one fails or the list is exhausted.
package handlers

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/tyonekura/nfsserver/internal/logger"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/callback"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/state"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/types"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/registry"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// OpHandler decodes one operation's arguments from r, executes it against
// c, and returns its contribution to the COMPOUND reply. Implementations
// must consume exactly the bytes their argument type occupies on the
// wire even when returning an error status, so that a later op in the
// same COMPOUND (there won't be one, since an error stops the loop, but
// argument over/under-read would also corrupt any trailing fragment data)
// never happens — in practice this means "decode first, validate after".
type OpHandler func(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult

// Handler is the NFSv4 COMPOUND dispatcher. One Handler is shared across
// every connection; all mutable per-client/per-lock state lives in State.
type Handler struct {
	Registry *registry.Registry
	State    *state.StateManager
	Callback *callback.Client

	LeaseSeconds uint32

	blockedOpsMu sync.RWMutex
	blockedOps   map[uint32]bool

	// cookiesMu/cookies/nextCookie bridge READDIR's uint64 wire cookie to
	// the metadata store's opaque string pagination token: the store's
	// token format is implementation-defined (RFC 7530 Section 16.24.3
	// requires only that cookies be stable identifiers, not that they be
	// numeric), so each distinct token seen is assigned a small integer
	// the client can round-trip.
	cookiesMu  sync.Mutex
	cookies    map[uint64]string
	nextCookie uint64

	opDispatchTable map[uint32]OpHandler
}

// cookieForToken returns the wire cookie for token, minting a new one if
// this token hasn't been seen before.
func (h *Handler) cookieForToken(token string) uint64 {
	if token == "" {
		return 0
	}
	h.cookiesMu.Lock()
	defer h.cookiesMu.Unlock()
	for c, t := range h.cookies {
		if t == token {
			return c
		}
	}
	h.nextCookie++
	c := h.nextCookie
	h.cookies[c] = token
	return c
}

// tokenForCookie resolves a wire cookie back to its pagination token.
// Cookie 0 always means "start of directory".
func (h *Handler) tokenForCookie(cookie uint64) (string, bool) {
	if cookie == 0 {
		return "", true
	}
	h.cookiesMu.Lock()
	defer h.cookiesMu.Unlock()
	t, ok := h.cookies[cookie]
	return t, ok
}

// NewHandler builds a Handler with the full opcode dispatch table wired:
// filehandle-stack ops, attribute ops, directory ops, I/O ops, the
// client/open/lock/delegation state-machine ops, plus honest
// NFS4ERR_NOTSUPP stubs for the operations this server recognizes but
// does not implement (OPENATTR, SECINFO).
func NewHandler(reg *registry.Registry, sm *state.StateManager) *Handler {
	h := &Handler{
		Registry:        reg,
		State:           sm,
		Callback:        callback.NewClient(),
		LeaseSeconds:    state.DefaultLeaseSeconds,
		blockedOps:      make(map[uint32]bool),
		cookies:         make(map[uint64]string),
		opDispatchTable: make(map[uint32]OpHandler),
	}

	h.opDispatchTable[types.OP_PUTFH] = opPutFH
	h.opDispatchTable[types.OP_PUTROOTFH] = opPutRootFH
	h.opDispatchTable[types.OP_PUTPUBFH] = opPutPubFH
	h.opDispatchTable[types.OP_GETFH] = opGetFH
	h.opDispatchTable[types.OP_SAVEFH] = opSaveFH
	h.opDispatchTable[types.OP_RESTOREFH] = opRestoreFH

	h.opDispatchTable[types.OP_GETATTR] = opGetAttr
	h.opDispatchTable[types.OP_SETATTR] = opSetAttr
	h.opDispatchTable[types.OP_VERIFY] = opVerify
	h.opDispatchTable[types.OP_NVERIFY] = opNVerify
	h.opDispatchTable[types.OP_ACCESS] = opAccess

	h.opDispatchTable[types.OP_LOOKUP] = opLookup
	h.opDispatchTable[types.OP_LOOKUPP] = opLookupp
	h.opDispatchTable[types.OP_READDIR] = opReaddir
	h.opDispatchTable[types.OP_READLINK] = opReadlink
	h.opDispatchTable[types.OP_CREATE] = opCreate
	h.opDispatchTable[types.OP_REMOVE] = opRemove
	h.opDispatchTable[types.OP_RENAME] = opRename
	h.opDispatchTable[types.OP_LINK] = opLink

	h.opDispatchTable[types.OP_READ] = opRead
	h.opDispatchTable[types.OP_WRITE] = opWrite
	h.opDispatchTable[types.OP_COMMIT] = opCommit

	h.opDispatchTable[types.OP_SETCLIENTID] = opSetClientID
	h.opDispatchTable[types.OP_SETCLIENTID_CONFIRM] = opSetClientIDConfirm
	h.opDispatchTable[types.OP_RENEW] = opRenew
	h.opDispatchTable[types.OP_OPEN] = opOpen
	h.opDispatchTable[types.OP_OPEN_CONFIRM] = opOpenConfirm
	h.opDispatchTable[types.OP_OPEN_DOWNGRADE] = opOpenDowngrade
	h.opDispatchTable[types.OP_CLOSE] = opClose
	h.opDispatchTable[types.OP_LOCK] = opLock
	h.opDispatchTable[types.OP_LOCKT] = opLockT
	h.opDispatchTable[types.OP_LOCKU] = opLockU
	h.opDispatchTable[types.OP_RELEASE_LOCKOWNER] = opReleaseLockOwner

	h.opDispatchTable[types.OP_DELEGPURGE] = opDelegPurge
	h.opDispatchTable[types.OP_DELEGRETURN] = opDelegReturn
	h.opDispatchTable[types.OP_OPENATTR] = stubOpenAttr
	h.opDispatchTable[types.OP_SECINFO] = stubSecinfo

	h.opDispatchTable[types.OP_ILLEGAL] = handleIllegal

	return h
}

// SetBlockedOps restricts the dispatch table to reject the named
// operations with NFS4ERR_NOTSUPP regardless of whether a real handler
// exists for them, e.g. to let an operator disable LOCK/LOCKT/LOCKU on a
// deployment that fronts a read-only mirror.
func (h *Handler) SetBlockedOps(names []string) {
	h.blockedOpsMu.Lock()
	defer h.blockedOpsMu.Unlock()
	h.blockedOps = make(map[uint32]bool, len(names))
	for _, name := range names {
		if op, ok := types.OpNameToNum(name); ok {
			h.blockedOps[op] = true
		}
	}
}

// IsOperationBlocked reports whether op is on the admin-configured block list.
func (h *Handler) IsOperationBlocked(op uint32) bool {
	h.blockedOpsMu.RLock()
	defer h.blockedOpsMu.RUnlock()
	return h.blockedOps[op]
}

func handleIllegal(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	return types.CompoundResult{OpCode: types.OP_ILLEGAL, Status: types.NFS4ERR_OP_ILLEGAL, Data: encodeStatusOnly(types.NFS4ERR_OP_ILLEGAL)}
}

// notSuppHandler returns an OpHandler for an operation this server
// recognizes but never implements. It reads nothing from the wire, which
// is safe only because these ops are never reached mid-COMPOUND after
// arguments for ops following them would already be misaligned — RFC 7530
// has no such op appear anywhere but where clients are prepared for
// NFS4ERR_NOTSUPP to end the compound immediately.
func notSuppHandler(op uint32) OpHandler {
	return func(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
		return types.CompoundResult{OpCode: op, Status: types.NFS4ERR_NOTSUPP, Data: encodeStatusOnly(types.NFS4ERR_NOTSUPP)}
	}
}

// encodeStatusOnly XDR-encodes just a 4-byte status, the wire shape of
// every *_NOTSUPP/_ILLEGAL result whose argument has nothing else to
// report (and whose request, in the notSuppHandler case, is never even
// decoded, so nothing else could be reported regardless).
func encodeStatusOnly(status uint32) []byte {
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, status)
	return buf.Bytes()
}

// ServeCompound decodes and executes one COMPOUND4args body, returning the
// encoded COMPOUND4res reply. RFC 7530 Section 15.2: tag, minorversion,
// then the argop4 array; execution stops at the first operation that does
// not return NFS4_OK, and the overall reply status is that op's status
// (or NFS4_OK if every operation succeeded).
func (h *Handler) ServeCompound(ctx context.Context, authCtx *metadata.AuthContext, clientAddr string, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)

	tag, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, fmt.Errorf("decode compound tag: %w", err)
	}
	minorVersion, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode compound minorversion: %w", err)
	}
	numOps, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode compound argarray length: %w", err)
	}

	cctx := &types.CompoundContext{
		Context:      ctx,
		Registry:     h.Registry,
		AuthCtx:      authCtx,
		ClientAddr:   clientAddr,
		MinorVersion: minorVersion,
	}

	overallStatus := uint32(types.NFS4_OK)
	if minorVersion != 0 {
		overallStatus = types.NFS4ERR_MINOR_VERS_MISMATCH
	}

	var results []types.CompoundResult
	for i := uint32(0); minorVersion == 0 && i < numOps; i++ {
		op, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("decode op %d opcode: %w", i, err)
		}

		handler, ok := h.opDispatchTable[op]
		if !ok {
			logger.Warn("NFSv4 COMPOUND: unrecognized opcode %d from %s", op, clientAddr)
			results = append(results, types.CompoundResult{OpCode: op, Status: types.NFS4ERR_OP_ILLEGAL, Data: encodeStatusOnly(types.NFS4ERR_OP_ILLEGAL)})
			overallStatus = types.NFS4ERR_OP_ILLEGAL
			break
		}
		if h.IsOperationBlocked(op) {
			results = append(results, types.CompoundResult{OpCode: op, Status: types.NFS4ERR_NOTSUPP, Data: encodeStatusOnly(types.NFS4ERR_NOTSUPP)})
			overallStatus = types.NFS4ERR_NOTSUPP
			break
		}

		result := handler(h, cctx, r)
		results = append(results, result)
		if result.Status != types.NFS4_OK {
			overallStatus = result.Status
			break
		}
	}

	var reply bytes.Buffer
	if err := xdr.WriteUint32(&reply, overallStatus); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDROpaque(&reply, tag); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&reply, uint32(len(results))); err != nil {
		return nil, err
	}
	for _, res := range results {
		if err := xdr.WriteUint32(&reply, res.OpCode); err != nil {
			return nil, err
		}
		if _, err := reply.Write(res.Data); err != nil {
			return nil, err
		}
	}
	return reply.Bytes(), nil
}
