package handlers

import (
	"bytes"
	"io"

	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/types"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/store/content"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// contentForCurrent resolves the WritableContentStore backing the current
// filehandle's share. WRITE/COMMIT need write access; READ only needs the
// read-only ContentStore interface, so it calls storeForCurrent's content
// counterpart directly rather than through this helper.
func contentForCurrent(h *Handler, c *types.CompoundContext) (content.ContentStore, error) {
	shareName, _, err := c.ShareAndPath()
	if err != nil {
		return nil, err
	}
	return h.Registry.GetContentStoreForShare(shareName)
}

// opRead implements READ: returns up to count bytes of the current
// filehandle's content starting at offset. The stateid is accepted but not
// enforced against open-mode restrictions beyond existing, since this
// server does not implement mandatory share reservations on the data path.
func opRead(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if _, err := types.DecodeStateid4(r); err != nil {
		return errResult(types.OP_READ, types.NFS4ERR_BADXDR)
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_READ, types.NFS4ERR_BADXDR)
	}
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_READ, types.NFS4ERR_BADXDR)
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_READ, status)
	}
	mstore, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_READ, types.NFS4ERR_BADHANDLE)
	}
	readMeta, err := mstore.PrepareRead(c.AuthCtx, c.CurrentFH)
	if err != nil {
		return statusResult(types.OP_READ, mapStoreErr(err))
	}
	cstore, err := contentForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_READ, types.NFS4ERR_IO)
	}

	eof := offset+uint64(count) >= readMeta.Attr.Size
	data, rerr := readRange(c, cstore, readMeta.Attr.ContentID, offset, count)
	if rerr != nil {
		return statusResult(types.OP_READ, types.NFS4ERR_IO)
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = xdr.WriteBool(&buf, eof)
	_ = xdr.WriteXDROpaque(&buf, data)
	return types.CompoundResult{OpCode: types.OP_READ, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// readRange reads up to count bytes starting at offset from a content
// store. Since SeekableContentStore is not universally implemented,
// leading bytes up to offset are discarded with io.CopyN rather than
// assumed skippable via Seek.
func readRange(c *types.CompoundContext, cstore content.ContentStore, id metadata.ContentID, offset uint64, count uint32) ([]byte, error) {
	rc, err := cstore.ReadContent(c.Context, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if offset > 0 {
		if _, err := io.CopyN(io.Discard, rc, int64(offset)); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, err
		}
	}
	buf := make([]byte, count)
	n, err := io.ReadFull(rc, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// opWrite implements WRITE: writes data at offset into the current
// filehandle's content, coordinating the metadata/content two-phase
// commit protocol (PrepareWrite, content write, CommitWrite).
func opWrite(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if _, err := types.DecodeStateid4(r); err != nil {
		return errResult(types.OP_WRITE, types.NFS4ERR_BADXDR)
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_WRITE, types.NFS4ERR_BADXDR)
	}
	stable, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_WRITE, types.NFS4ERR_BADXDR)
	}
	data, err := xdr.DecodeOpaque(r)
	if err != nil {
		return errResult(types.OP_WRITE, types.NFS4ERR_BADXDR)
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_WRITE, status)
	}
	mstore, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_WRITE, types.NFS4ERR_BADHANDLE)
	}
	newSize := offset + uint64(len(data))
	intent, err := mstore.PrepareWrite(c.AuthCtx, c.CurrentFH, newSize)
	if err != nil {
		return statusResult(types.OP_WRITE, mapStoreErr(err))
	}

	cstore, err := contentForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_WRITE, types.NFS4ERR_IO)
	}
	writable, ok := cstore.(content.WritableContentStore)
	if !ok {
		return statusResult(types.OP_WRITE, types.NFS4ERR_ROFS)
	}
	if err := writable.WriteAt(c.Context, intent.ContentID, data, int64(offset)); err != nil {
		return statusResult(types.OP_WRITE, types.NFS4ERR_IO)
	}
	if _, err := mstore.CommitWrite(c.AuthCtx, intent); err != nil {
		return statusResult(types.OP_WRITE, mapStoreErr(err))
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = xdr.WriteUint32(&buf, uint32(len(data)))
	_ = xdr.WriteUint32(&buf, stable) // this server always writes synchronously, so echo the requested stability
	buf.Write(writeVerifier[:])
	return types.CompoundResult{OpCode: types.OP_WRITE, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// writeVerifier is a fixed per-process write verifier: since this server
// never loses unstably-written data between WRITE and COMMIT (WriteAt is
// synchronous), the verifier only needs to be stable for this server's
// lifetime so a client can detect a server restart.
var writeVerifier = func() [8]byte {
	var v [8]byte
	return v
}()

// opCommit implements COMMIT. Since WRITE is always applied synchronously
// by this server, COMMIT has nothing to flush and simply echoes the write
// verifier.
func opCommit(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if _, err := xdr.DecodeUint64(r); err != nil { // offset
		return errResult(types.OP_COMMIT, types.NFS4ERR_BADXDR)
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // count
		return errResult(types.OP_COMMIT, types.NFS4ERR_BADXDR)
	}
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_COMMIT, status)
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	buf.Write(writeVerifier[:])
	return types.CompoundResult{OpCode: types.OP_COMMIT, Status: types.NFS4_OK, Data: buf.Bytes()}
}
