package handlers

import (
	"bytes"

	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/types"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
)

// stubOpenAttr decodes OPENATTR's createdir flag and refuses: this server
// has no named-attribute directory to open or create.
func stubOpenAttr(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if _, err := xdr.DecodeBool(r); err != nil {
		return errResult(types.OP_OPENATTR, types.NFS4ERR_BADXDR)
	}
	return statusResult(types.OP_OPENATTR, types.NFS4ERR_NOTSUPP)
}

// stubSecinfo decodes SECINFO's component4 name and refuses: this server
// advertises its security flavor at mount time rather than per-lookup.
func stubSecinfo(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if _, err := xdr.DecodeString(r); err != nil {
		return errResult(types.OP_SECINFO, types.NFS4ERR_BADXDR)
	}
	return statusResult(types.OP_SECINFO, types.NFS4ERR_NOTSUPP)
}
