package handlers

import (
	"bytes"

	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/types"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/store/content"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// opLookup implements LOOKUP: resolves a single component4 name within the
// current filehandle (which must be a directory) and replaces it with the
// result.
func opLookup(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	name, err := xdr.DecodeString(r)
	if err != nil {
		return errResult(types.OP_LOOKUP, types.NFS4ERR_BADXDR)
	}
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_LOOKUP, status)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_LOOKUP, types.NFS4ERR_BADHANDLE)
	}
	file, err := store.Lookup(c.AuthCtx, c.CurrentFH, name)
	if err != nil {
		return statusResult(types.OP_LOOKUP, mapStoreErr(err))
	}
	c.CurrentFH = metadata.EncodeShareHandle(file.ShareName, file.Path)
	c.HaveCurrentFH = true
	return statusResult(types.OP_LOOKUP, types.NFS4_OK)
}

// opLookupp implements LOOKUPP: resolves the parent of the current
// filehandle, the NFSv4 analog of NFSv3's LOOKUP with "..".
func opLookupp(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_LOOKUPP, status)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_LOOKUPP, types.NFS4ERR_BADHANDLE)
	}
	file, err := store.Lookup(c.AuthCtx, c.CurrentFH, "..")
	if err != nil {
		return statusResult(types.OP_LOOKUPP, mapStoreErr(err))
	}
	c.CurrentFH = metadata.EncodeShareHandle(file.ShareName, file.Path)
	c.HaveCurrentFH = true
	return statusResult(types.OP_LOOKUPP, types.NFS4_OK)
}

// opReadlink implements READLINK: returns the target path stored in the
// current filehandle's symlink.
func opReadlink(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_READLINK, status)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_READLINK, types.NFS4ERR_BADHANDLE)
	}
	target, _, err := store.ReadSymlink(c.AuthCtx, c.CurrentFH)
	if err != nil {
		return statusResult(types.OP_READLINK, mapStoreErr(err))
	}
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = xdr.WriteString(&buf, target)
	return types.CompoundResult{OpCode: types.OP_READLINK, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// createtype4 discriminants beyond the ftype4 constants already declared in
// types: CREATE accepts only these object types (regular files go through
// OPEN instead).
const (
	createDirTag  = types.NF4DIR
	createLnkTag  = types.NF4LNK
	createBlkTag  = types.NF4BLK
	createChrTag  = types.NF4CHR
	createSockTag = types.NF4SOCK
	createFifoTag = types.NF4FIFO
)

// opCreate implements CREATE: makes a directory, symlink, device node,
// socket, or FIFO as a new entry of the current filehandle (a directory),
// then replaces the current filehandle with the new object.
func opCreate(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	objType, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_CREATE, types.NFS4ERR_BADXDR)
	}

	var linktext string
	var specMajor, specMinor uint32
	switch objType {
	case createLnkTag:
		linktext, err = xdr.DecodeString(r)
	case createBlkTag, createChrTag:
		specMajor, err = xdr.DecodeUint32(r)
		if err == nil {
			specMinor, err = xdr.DecodeUint32(r)
		}
	}
	if err != nil {
		return errResult(types.OP_CREATE, types.NFS4ERR_BADXDR)
	}

	name, err := xdr.DecodeString(r)
	if err != nil {
		return errResult(types.OP_CREATE, types.NFS4ERR_BADXDR)
	}
	words, err := types.DecodeBitmap4(r)
	if err != nil {
		return errResult(types.OP_CREATE, types.NFS4ERR_BADXDR)
	}
	attrvals, err := xdr.DecodeOpaque(r)
	if err != nil {
		return errResult(types.OP_CREATE, types.NFS4ERR_BADXDR)
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_CREATE, status)
	}
	setAttrs, err := types.DecodeSetAttrs(words, bytes.NewReader(attrvals))
	if err != nil {
		return statusResult(types.OP_CREATE, types.NFS4ERR_ATTRNOTSUPP)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_CREATE, types.NFS4ERR_BADHANDLE)
	}

	attr := &metadata.FileAttr{}
	if setAttrs.Mode != nil {
		attr.Mode = *setAttrs.Mode
	}

	var file *metadata.File
	switch objType {
	case createDirTag:
		attr.Type = metadata.FileTypeDirectory
		file, err = store.Create(c.AuthCtx, c.CurrentFH, name, attr)
	case createLnkTag:
		file, err = store.CreateSymlink(c.AuthCtx, c.CurrentFH, name, linktext, attr)
	case createBlkTag:
		file, err = store.CreateSpecialFile(c.AuthCtx, c.CurrentFH, name, metadata.FileTypeBlockDevice, attr, specMajor, specMinor)
	case createChrTag:
		file, err = store.CreateSpecialFile(c.AuthCtx, c.CurrentFH, name, metadata.FileTypeCharDevice, attr, specMajor, specMinor)
	case createSockTag:
		file, err = store.CreateSpecialFile(c.AuthCtx, c.CurrentFH, name, metadata.FileTypeSocket, attr, 0, 0)
	case createFifoTag:
		file, err = store.CreateSpecialFile(c.AuthCtx, c.CurrentFH, name, metadata.FileTypeFIFO, attr, 0, 0)
	default:
		return statusResult(types.OP_CREATE, types.NFS4ERR_BADTYPE)
	}
	if err != nil {
		return statusResult(types.OP_CREATE, mapStoreErr(err))
	}

	c.CurrentFH = metadata.EncodeShareHandle(file.ShareName, file.Path)
	c.HaveCurrentFH = true

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = encodeChangeInfo(&buf, false)
	_ = types.EncodeBitmap4(&buf, nil)
	return types.CompoundResult{OpCode: types.OP_CREATE, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// encodeChangeInfo writes a change_info4: atomic flag plus before/after
// change values. This server has no cheap way to snapshot a directory's
// change counter around the operation, so atomic is always reported false
// and before/after are both zero — a conservative answer clients handle by
// re-reading rather than trusting the hint.
func encodeChangeInfo(buf *bytes.Buffer, atomic bool) error {
	if err := xdr.WriteBool(buf, atomic); err != nil {
		return err
	}
	if err := xdr.WriteUint64(buf, 0); err != nil {
		return err
	}
	return xdr.WriteUint64(buf, 0)
}

// opRemove implements REMOVE: deletes a directory entry of the current
// filehandle, dispatching to RemoveDirectory or RemoveFile depending on
// the target's type, and best-effort releasing its content.
func opRemove(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	name, err := xdr.DecodeString(r)
	if err != nil {
		return errResult(types.OP_REMOVE, types.NFS4ERR_BADXDR)
	}
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_REMOVE, status)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_REMOVE, types.NFS4ERR_BADHANDLE)
	}

	target, err := store.Lookup(c.AuthCtx, c.CurrentFH, name)
	if err != nil {
		return statusResult(types.OP_REMOVE, mapStoreErr(err))
	}

	if target.Type == metadata.FileTypeDirectory {
		if err := store.RemoveDirectory(c.AuthCtx, c.CurrentFH, name); err != nil {
			return statusResult(types.OP_REMOVE, mapStoreErr(err))
		}
	} else {
		attr, err := store.RemoveFile(c.AuthCtx, c.CurrentFH, name)
		if err != nil {
			return statusResult(types.OP_REMOVE, mapStoreErr(err))
		}
		if attr.ContentID != "" {
			if cstore, cerr := h.Registry.GetContentStoreForShare(target.ShareName); cerr == nil {
				if writable, ok := cstore.(content.WritableContentStore); ok {
					_ = writable.Delete(c.Context, attr.ContentID)
				}
			}
		}
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = encodeChangeInfo(&buf, false)
	return types.CompoundResult{OpCode: types.OP_REMOVE, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opRename implements RENAME: moves an entry named oldname in the saved
// filehandle (the source directory, set by a preceding SAVEFH) to newname
// in the current filehandle (the target directory).
func opRename(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	oldname, err := xdr.DecodeString(r)
	if err != nil {
		return errResult(types.OP_RENAME, types.NFS4ERR_BADXDR)
	}
	newname, err := xdr.DecodeString(r)
	if err != nil {
		return errResult(types.OP_RENAME, types.NFS4ERR_BADXDR)
	}
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_RENAME, status)
	}
	if !c.HaveSavedFH {
		return statusResult(types.OP_RENAME, types.NFS4ERR_NOFILEHANDLE)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_RENAME, types.NFS4ERR_BADHANDLE)
	}
	if err := store.Move(c.AuthCtx, c.SavedFH, oldname, c.CurrentFH, newname); err != nil {
		return statusResult(types.OP_RENAME, mapStoreErr(err))
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = encodeChangeInfo(&buf, false) // source cinfo
	_ = encodeChangeInfo(&buf, false) // target cinfo
	return types.CompoundResult{OpCode: types.OP_RENAME, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opLink implements LINK: creates newname in the current filehandle
// (the target directory) as a hard link to the saved filehandle (the
// existing file, set by a preceding SAVEFH).
func opLink(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	newname, err := xdr.DecodeString(r)
	if err != nil {
		return errResult(types.OP_LINK, types.NFS4ERR_BADXDR)
	}
	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_LINK, status)
	}
	if !c.HaveSavedFH {
		return statusResult(types.OP_LINK, types.NFS4ERR_NOFILEHANDLE)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_LINK, types.NFS4ERR_BADHANDLE)
	}
	if err := store.CreateHardLink(c.AuthCtx, c.CurrentFH, newname, c.SavedFH); err != nil {
		return statusResult(types.OP_LINK, mapStoreErr(err))
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = encodeChangeInfo(&buf, false)
	return types.CompoundResult{OpCode: types.OP_LINK, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opReaddir implements READDIR: pages through the current filehandle's
// directory entries, encoding each as an entry4 with the requested subset
// of its attributes.
func opReaddir(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	cookie, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_READDIR, types.NFS4ERR_BADXDR)
	}
	if _, err = xdr.DecodeFixedOpaque(r, 8); err != nil { // cookieverf, ignored
		return errResult(types.OP_READDIR, types.NFS4ERR_BADXDR)
	}
	if _, err = xdr.DecodeUint32(r); err != nil { // dircount, advisory
		return errResult(types.OP_READDIR, types.NFS4ERR_BADXDR)
	}
	maxcount, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_READDIR, types.NFS4ERR_BADXDR)
	}
	requested, err := types.DecodeBitmap4(r)
	if err != nil {
		return errResult(types.OP_READDIR, types.NFS4ERR_BADXDR)
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_READDIR, status)
	}
	token, ok := h.tokenForCookie(cookie)
	if !ok {
		return statusResult(types.OP_READDIR, types.NFS4ERR_BAD_COOKIE)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_READDIR, types.NFS4ERR_BADHANDLE)
	}
	page, err := store.ReadDirectory(c.AuthCtx, c.CurrentFH, token, maxcount)
	if err != nil {
		return statusResult(types.OP_READDIR, mapStoreErr(err))
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	buf.Write(make([]byte, 8)) // cookieverf, constant zero: this store never reuses cookies across restarts in a way that would need one

	// ReadDirectory's pagination token is page-granular, not per-entry, so
	// every entry in this page shares the same resume cookie: the token for
	// the next page. A client that stops mid-page and resumes will re-walk
	// the remainder of the current page rather than skip it exactly.
	resumeCookie := h.cookieForToken(page.NextToken)

	var entries bytes.Buffer
	for _, entry := range page.Entries {
		attr := entry.Attr
		if attr == nil {
			file, gerr := store.GetFile(c.Context, entry.Handle)
			if gerr != nil {
				continue
			}
			attr = &file.FileAttr
		}
		numLinks := uint32(1)
		if attr.Type == metadata.FileTypeDirectory {
			numLinks = 2
		}
		bitmap, vals, eerr := types.EncodeFattr4(requested, attr, entry.Handle, fileID64(entry.Handle), numLinks, h.LeaseSeconds)
		if eerr != nil {
			continue
		}
		_ = xdr.WriteBool(&entries, true) // another entry follows
		_ = xdr.WriteUint64(&entries, resumeCookie)
		_ = xdr.WriteString(&entries, entry.Name)
		entries.Write(bitmap)
		entries.Write(vals)
	}
	buf.Write(entries.Bytes())
	_ = xdr.WriteBool(&buf, false)          // no further entry after the loop
	_ = xdr.WriteBool(&buf, !page.HasMore) // eof

	return types.CompoundResult{OpCode: types.OP_READDIR, Status: types.NFS4_OK, Data: buf.Bytes()}
}
