package handlers

import (
	"bytes"

	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/types"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// opPutFH implements PUTFH (RFC 7530 Section 14.2.24): replaces the
// current filehandle with the one supplied by the client.
func opPutFH(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	fh, err := xdr.DecodeOpaque(r)
	if err != nil {
		return errResult(types.OP_PUTFH, types.NFS4ERR_BADXDR)
	}
	if _, _, derr := metadata.DecodeShareHandle(metadata.FileHandle(fh)); derr != nil {
		return statusResult(types.OP_PUTFH, types.NFS4ERR_BADHANDLE)
	}
	c.CurrentFH = metadata.FileHandle(fh)
	c.HaveCurrentFH = true
	return statusResult(types.OP_PUTFH, types.NFS4_OK)
}

// opPutRootFH implements PUTROOTFH: sets the current filehandle to the
// pseudo-root, represented here as the handle of the first configured
// share's root directory since this server exposes one filesystem
// namespace per share rather than a synthesized multi-share pseudo-fs.
func opPutRootFH(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	shares := h.Registry.ListShares()
	if len(shares) == 0 {
		return statusResult(types.OP_PUTROOTFH, types.NFS4ERR_SERVERFAULT)
	}
	root, err := h.Registry.GetRootHandle(shares[0])
	if err != nil {
		return statusResult(types.OP_PUTROOTFH, types.NFS4ERR_SERVERFAULT)
	}
	c.CurrentFH = root
	c.HaveCurrentFH = true
	return statusResult(types.OP_PUTROOTFH, types.NFS4_OK)
}

// opPutPubFH implements PUTPUBFH identically to PUTROOTFH: this server has
// no distinct "public" filehandle concept (RFC 7530 Section 14.2.23
// permits treating them the same when WebNFS's public-handle addressing
// is not otherwise supported).
func opPutPubFH(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	res := opPutRootFH(h, c, r)
	res.OpCode = types.OP_PUTPUBFH
	return res
}

// opGetFH implements GETFH: returns the current filehandle.
func opGetFH(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_GETFH, status)
	}
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = xdr.WriteXDROpaque(&buf, c.CurrentFH)
	return types.CompoundResult{OpCode: types.OP_GETFH, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opSaveFH implements SAVEFH: copies the current filehandle to the saved
// slot, used by RENAME/LINK to hold a source directory while LOOKUP walks
// to the target directory.
func opSaveFH(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_SAVEFH, status)
	}
	c.SavedFH = c.CurrentFH
	c.HaveSavedFH = true
	return statusResult(types.OP_SAVEFH, types.NFS4_OK)
}

// opRestoreFH implements RESTOREFH: copies the saved filehandle back to
// current.
func opRestoreFH(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if !c.HaveSavedFH {
		return statusResult(types.OP_RESTOREFH, types.NFS4ERR_RESTOREFH)
	}
	c.CurrentFH = c.SavedFH
	c.HaveCurrentFH = true
	return statusResult(types.OP_RESTOREFH, types.NFS4_OK)
}

// statusResult builds a CompoundResult whose entire body is the 4-byte
// status, the wire shape of every op's *res4 when status != NFS4_OK (RFC
// 7530's discriminated unions carry no further arm in the error case) and
// of a handful of ops (PUTFH, SAVEFH, ...) that carry nothing else even
// on success.
func statusResult(op uint32, status uint32) types.CompoundResult {
	return types.CompoundResult{OpCode: op, Status: status, Data: encodeStatusOnly(status)}
}

// errResult is statusResult with a name that reads better at non-OK call
// sites decoding failures before any op-specific status applies.
func errResult(op uint32, status uint32) types.CompoundResult {
	return statusResult(op, status)
}
