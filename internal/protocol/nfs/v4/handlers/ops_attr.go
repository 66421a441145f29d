package handlers

import (
	"bytes"
	"hash/fnv"

	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/types"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// fileID64 derives a stable NFSv4 fileid from a file handle by hashing it,
// since this store's handles are share-relative paths rather than a fixed
// binary layout with an embedded inode number.
func fileID64(fh metadata.FileHandle) uint64 {
	f := fnv.New64a()
	_, _ = f.Write(fh)
	return f.Sum64()
}

func storeForCurrent(h *Handler, c *types.CompoundContext) (metadata.MetadataStore, string, error) {
	shareName, _, err := c.ShareAndPath()
	if err != nil {
		return nil, "", err
	}
	store, err := h.Registry.GetMetadataStoreForShare(shareName)
	if err != nil {
		return nil, "", err
	}
	return store, shareName, nil
}

// opGetAttr implements GETATTR (RFC 7530 Section 14.2.10): returns the
// subset of the requested bitmap4 that this server supports.
func opGetAttr(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	requested, err := types.DecodeBitmap4(r)
	if err != nil {
		return errResult(types.OP_GETATTR, types.NFS4ERR_BADXDR)
	}
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_GETATTR, status)
	}

	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_GETATTR, types.NFS4ERR_BADHANDLE)
	}
	file, err := store.GetFile(c.Context, c.CurrentFH)
	if err != nil {
		return statusResult(types.OP_GETATTR, mapStoreErr(err))
	}

	numLinks := uint32(1)
	if file.Type == metadata.FileTypeDirectory {
		numLinks = 2
	}
	bitmap, vals, err := types.EncodeFattr4(requested, &file.FileAttr, c.CurrentFH, fileID64(c.CurrentFH), numLinks, h.LeaseSeconds)
	if err != nil {
		return statusResult(types.OP_GETATTR, types.NFS4ERR_SERVERFAULT)
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	buf.Write(bitmap)
	buf.Write(vals)
	return types.CompoundResult{OpCode: types.OP_GETATTR, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opSetAttr implements SETATTR: applies the settable subset of fattr4
// (mode, size, atime, mtime) to the current filehandle. The stateid is
// accepted and its "other" field validated against any open this server
// tracks, but is not otherwise required since this store has no
// mandatory-locking mode that SETATTR would need to respect.
func opSetAttr(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if _, err := types.DecodeStateid4(r); err != nil {
		return errResult(types.OP_SETATTR, types.NFS4ERR_BADXDR)
	}
	words, err := types.DecodeBitmap4(r)
	if err != nil {
		return errResult(types.OP_SETATTR, types.NFS4ERR_BADXDR)
	}
	attrvals, err := xdr.DecodeOpaque(r)
	if err != nil {
		return errResult(types.OP_SETATTR, types.NFS4ERR_BADXDR)
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResultWithBitmap(types.OP_SETATTR, status, nil)
	}

	setAttrs, err := types.DecodeSetAttrs(words, bytes.NewReader(attrvals))
	if err != nil {
		return statusResultWithBitmap(types.OP_SETATTR, types.NFS4ERR_ATTRNOTSUPP, words)
	}

	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResultWithBitmap(types.OP_SETATTR, types.NFS4ERR_BADHANDLE, nil)
	}
	if err := store.SetFileAttributes(c.AuthCtx, c.CurrentFH, setAttrs); err != nil {
		return statusResultWithBitmap(types.OP_SETATTR, mapStoreErr(err), nil)
	}

	return statusResultWithBitmap(types.OP_SETATTR, types.NFS4_OK, words)
}

// statusResultWithBitmap builds the setattr4res wire shape: status followed
// by the bitmap4 of attributes actually applied (empty on any error path).
func statusResultWithBitmap(op uint32, status uint32, words []uint32) types.CompoundResult {
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, status)
	_ = types.EncodeBitmap4(&buf, types.BitmapToList(words))
	return types.CompoundResult{OpCode: op, Status: status, Data: buf.Bytes()}
}

// verifyAttrs is shared by VERIFY/NVERIFY: decodes a requested bitmap plus
// attribute values and compares them against the current file's actual
// attributes for the supported subset only.
func verifyAttrs(h *Handler, c *types.CompoundContext, r *bytes.Reader) (matches bool, status uint32) {
	requested, err := types.DecodeBitmap4(r)
	if err != nil {
		return false, types.NFS4ERR_BADXDR
	}
	claimed, err := xdr.DecodeOpaque(r)
	if err != nil {
		return false, types.NFS4ERR_BADXDR
	}
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return false, status
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return false, types.NFS4ERR_BADHANDLE
	}
	file, err := store.GetFile(c.Context, c.CurrentFH)
	if err != nil {
		return false, mapStoreErr(err)
	}
	numLinks := uint32(1)
	if file.Type == metadata.FileTypeDirectory {
		numLinks = 2
	}
	_, actualVals, err := types.EncodeFattr4(requested, &file.FileAttr, c.CurrentFH, fileID64(c.CurrentFH), numLinks, h.LeaseSeconds)
	if err != nil {
		return false, types.NFS4ERR_SERVERFAULT
	}
	return bytes.Equal(actualVals, claimed), types.NFS4_OK
}

// opVerify implements VERIFY: succeeds only when the presented attribute
// values exactly match the file's current values, letting a client detect
// concurrent modification before proceeding with the rest of a COMPOUND.
func opVerify(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	matches, status := verifyAttrs(h, c, r)
	if status != types.NFS4_OK {
		return statusResult(types.OP_VERIFY, status)
	}
	if !matches {
		return statusResult(types.OP_VERIFY, types.NFS4ERR_NOT_SAME)
	}
	return statusResult(types.OP_VERIFY, types.NFS4_OK)
}

// opNVerify implements NVERIFY: the inverse of VERIFY, succeeding when the
// attributes differ.
func opNVerify(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	matches, status := verifyAttrs(h, c, r)
	if status != types.NFS4_OK {
		return statusResult(types.OP_NVERIFY, status)
	}
	if matches {
		return statusResult(types.OP_NVERIFY, types.NFS4ERR_SAME)
	}
	return statusResult(types.OP_NVERIFY, types.NFS4_OK)
}

// ACCESS4 bits, RFC 7530 Section 14.2.5.
const (
	ACCESS4_READ    = 0x01
	ACCESS4_LOOKUP  = 0x02
	ACCESS4_MODIFY  = 0x04
	ACCESS4_EXTEND  = 0x08
	ACCESS4_DELETE  = 0x10
	ACCESS4_EXECUTE = 0x20
)

// opAccess implements ACCESS: translates the requested ACCESS4 bits into
// this store's Permission bitmap, checks them, and reports which of the
// requested bits are actually granted.
func opAccess(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	requested, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_ACCESS, types.NFS4ERR_BADXDR)
	}
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_ACCESS, status)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_ACCESS, types.NFS4ERR_BADHANDLE)
	}

	var wanted metadata.Permission
	if requested&(ACCESS4_READ|ACCESS4_EXECUTE) != 0 {
		wanted |= metadata.PermissionRead
	}
	if requested&ACCESS4_LOOKUP != 0 {
		wanted |= metadata.PermissionTraverse
	}
	if requested&(ACCESS4_MODIFY|ACCESS4_EXTEND) != 0 {
		wanted |= metadata.PermissionWrite
	}
	if requested&ACCESS4_DELETE != 0 {
		wanted |= metadata.PermissionDelete
	}

	granted, err := store.CheckPermissions(c.AuthCtx, c.CurrentFH, wanted)
	if err != nil {
		return statusResult(types.OP_ACCESS, mapStoreErr(err))
	}

	var reply uint32
	if granted&metadata.PermissionRead != 0 {
		reply |= requested & (ACCESS4_READ | ACCESS4_EXECUTE)
	}
	if granted&metadata.PermissionTraverse != 0 {
		reply |= requested & ACCESS4_LOOKUP
	}
	if granted&metadata.PermissionWrite != 0 {
		reply |= requested & (ACCESS4_MODIFY | ACCESS4_EXTEND)
	}
	if granted&metadata.PermissionDelete != 0 {
		reply |= requested & ACCESS4_DELETE
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = xdr.WriteUint32(&buf, requested)
	_ = xdr.WriteUint32(&buf, reply)
	return types.CompoundResult{OpCode: types.OP_ACCESS, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// mapStoreErr maps a metadata.StoreError to its NFSv4 status equivalent,
// following the same code-to-code mapping the v3 handlers use against the
// same StoreError.Code values, adjusted to NFSv4's error numbering.
func mapStoreErr(err error) uint32 {
	se, ok := err.(*metadata.StoreError)
	if !ok {
		return types.NFS4ERR_IO
	}
	switch se.Code {
	case metadata.ErrNotFound:
		return types.NFS4ERR_NOENT
	case metadata.ErrAlreadyExists:
		return types.NFS4ERR_EXIST
	case metadata.ErrNotDirectory:
		return types.NFS4ERR_NOTDIR
	case metadata.ErrIsDirectory:
		return types.NFS4ERR_ISDIR
	case metadata.ErrNotEmpty:
		return types.NFS4ERR_NOTEMPTY
	case metadata.ErrAccessDenied, metadata.ErrPermissionDenied:
		return types.NFS4ERR_ACCES
	case metadata.ErrInvalidArgument:
		return types.NFS4ERR_INVAL
	case metadata.ErrInvalidHandle, metadata.ErrStaleHandle:
		return types.NFS4ERR_STALE
	case metadata.ErrNotSupported:
		return types.NFS4ERR_NOTSUPP
	case metadata.ErrIOError:
		return types.NFS4ERR_IO
	case metadata.ErrNoSpace:
		return types.NFS4ERR_NOSPC
	case metadata.ErrReadOnly:
		return types.NFS4ERR_ROFS
	default:
		return types.NFS4ERR_IO
	}
}
