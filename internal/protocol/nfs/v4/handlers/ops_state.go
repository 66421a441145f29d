package handlers

import (
	"bytes"
	"errors"
	"hash/fnv"

	"github.com/tyonekura/nfsserver/internal/logger"
	"github.com/tyonekura/nfsserver/internal/protocol/locktable"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/state"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/types"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// opSetClientID implements SETCLIENTID (RFC 7530 Section 16.33): decodes
// the client's nfs_client_id4 and callback address, and mints or confirms
// a clientid.
func opSetClientID(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	verifierBytes, err := xdr.DecodeFixedOpaque(r, 8)
	if err != nil {
		return errResult(types.OP_SETCLIENTID, types.NFS4ERR_BADXDR)
	}
	id, err := xdr.DecodeOpaque(r)
	if err != nil {
		return errResult(types.OP_SETCLIENTID, types.NFS4ERR_BADXDR)
	}
	cbProgram, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_SETCLIENTID, types.NFS4ERR_BADXDR)
	}
	cbNetID, err := xdr.DecodeString(r)
	if err != nil {
		return errResult(types.OP_SETCLIENTID, types.NFS4ERR_BADXDR)
	}
	cbAddr, err := xdr.DecodeString(r)
	if err != nil {
		return errResult(types.OP_SETCLIENTID, types.NFS4ERR_BADXDR)
	}
	callbackIdent, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_SETCLIENTID, types.NFS4ERR_BADXDR)
	}

	var verifier [8]byte
	copy(verifier[:], verifierBytes)
	cb := state.CallbackInfo{Program: cbProgram, NetID: cbNetID, Addr: cbAddr}

	principal := ""
	if c.AuthCtx != nil && c.AuthCtx.Identity != nil {
		principal = c.AuthCtx.Identity.Username
	}
	result, err := h.State.SetClientID(verifier, id, cb, callbackIdent, principal)
	if err != nil {
		return statusResult(types.OP_SETCLIENTID, types.NFS4ERR_CLID_INUSE)
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = xdr.WriteUint64(&buf, result.ClientID)
	buf.Write(result.ConfirmVerifier[:])
	return types.CompoundResult{OpCode: types.OP_SETCLIENTID, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opSetClientIDConfirm implements SETCLIENTID_CONFIRM.
func opSetClientIDConfirm(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	clientID, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_SETCLIENTID_CONFIRM, types.NFS4ERR_BADXDR)
	}
	verifierBytes, err := xdr.DecodeFixedOpaque(r, 8)
	if err != nil {
		return errResult(types.OP_SETCLIENTID_CONFIRM, types.NFS4ERR_BADXDR)
	}
	var verifier [8]byte
	copy(verifier[:], verifierBytes)

	if err := h.State.ConfirmClientID(clientID, verifier); err != nil {
		return statusResult(types.OP_SETCLIENTID_CONFIRM, mapStateErr(err))
	}

	if cb, ok := h.State.GetClientCallback(clientID); ok && cb.NetID != "" {
		go func() {
			if err := h.Callback.Null(cb); err != nil {
				logger.Debug("NFSv4 callback CB_NULL to client %d unreachable: %v", clientID, err)
			}
		}()
	}
	return statusResult(types.OP_SETCLIENTID_CONFIRM, types.NFS4_OK)
}

// opRenew implements RENEW.
func opRenew(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	clientID, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_RENEW, types.NFS4ERR_BADXDR)
	}
	if err := h.State.Renew(clientID); err != nil {
		return statusResult(types.OP_RENEW, mapStateErr(err))
	}
	return statusResult(types.OP_RENEW, types.NFS4_OK)
}

// createmode4 discriminants, RFC 7530 Section 14.2.16.
const (
	createUnchecked = 0
	createGuarded   = 1
	createExclusive = 2
)

// opOpen implements OPEN for CLAIM_NULL only: other open_claim4 variants
// (reclaim, delegation-based) are decoded just enough to stay wire-aligned
// and then rejected, since this server grants no delegations to reclaim.
func opOpen(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	seqid, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
	}
	access, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
	}
	deny, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
	}
	clientID, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
	}
	owner, err := xdr.DecodeOpaque(r)
	if err != nil {
		return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
	}

	openHow, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
	}
	var createMode uint32
	var createWords []uint32
	var createAttrVals []byte
	var exclusiveVerifier []byte
	creating := openHow == 1
	if creating {
		createMode, err = xdr.DecodeUint32(r)
		if err != nil {
			return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
		}
		switch createMode {
		case createExclusive:
			exclusiveVerifier, err = xdr.DecodeFixedOpaque(r, 8)
		default: // UNCHECKED4, GUARDED4
			createWords, err = types.DecodeBitmap4(r)
			if err == nil {
				createAttrVals, err = xdr.DecodeOpaque(r)
			}
		}
		if err != nil {
			return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
		}
	}

	claim, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
	}
	var name string
	if claim == 0 { // CLAIM_NULL
		name, err = xdr.DecodeString(r)
	} else {
		_, err = xdr.DecodeOpaque(r) // best-effort alignment for claim types this server refuses
	}
	if err != nil {
		return errResult(types.OP_OPEN, types.NFS4ERR_BADXDR)
	}
	if claim != 0 {
		return statusResult(types.OP_OPEN, types.NFS4ERR_NOTSUPP)
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_OPEN, status)
	}
	store, _, err := storeForCurrent(h, c)
	if err != nil {
		return statusResult(types.OP_OPEN, types.NFS4ERR_BADHANDLE)
	}

	file, lookupErr := store.Lookup(c.AuthCtx, c.CurrentFH, name)
	var attrset []uint32
	switch {
	case lookupErr == nil && creating && createMode == createGuarded:
		return statusResult(types.OP_OPEN, types.NFS4ERR_EXIST)
	case lookupErr == nil:
		// existing file; exclusive-create replay tolerates re-opening the
		// file it already created.
	case creating:
		attr := &metadata.FileAttr{Type: metadata.FileTypeRegular, Mode: 0644}
		if createMode != createExclusive {
			setAttrs, serr := types.DecodeSetAttrs(createWords, bytes.NewReader(createAttrVals))
			if serr != nil {
				return statusResult(types.OP_OPEN, types.NFS4ERR_ATTRNOTSUPP)
			}
			if setAttrs.Mode != nil {
				attr.Mode = *setAttrs.Mode
			}
			attrset = types.BitmapToList(createWords)
		} else {
			_ = exclusiveVerifier // persisted verifier semantics not tracked; treated as UNCHECKED4
		}
		file, err = store.Create(c.AuthCtx, c.CurrentFH, name, attr)
		if err != nil {
			return statusResult(types.OP_OPEN, mapStoreErr(err))
		}
	default:
		return statusResult(types.OP_OPEN, mapStoreErr(lookupErr))
	}

	fh := metadata.EncodeShareHandle(file.ShareName, file.Path)

	// A write delegation outstanding to a different client conflicts with
	// any OPEN, and a read delegation conflicts with one requesting write
	// access; either case must be recalled before this OPEN can proceed,
	// since only one client may hold a conflicting delegation on a file at
	// a time (RFC 7530 Section 9.4). A read delegation held by another
	// client does not conflict with a read-only OPEN and needs no recall.
	if d, conflict := h.State.ConflictingDelegation(string(fh), clientID); conflict {
		if d.Write || access&state.OPEN4_SHARE_ACCESS_WRITE != 0 {
			h.recallDelegation(d)
			return statusResult(types.OP_OPEN, types.NFS4ERR_DELAY)
		}
	}

	stateid, needsConfirm, _, deleg, rerr := h.State.RegisterOpen(state.OpenParams{
		ClientID:   clientID,
		Owner:      owner,
		Seqid:      seqid,
		Args:       owner,
		FileHandle: string(fh),
		Access:     access,
		Deny:       deny,
	})
	if rerr != nil {
		return statusResult(types.OP_OPEN, mapStateErr(rerr))
	}

	c.CurrentFH = fh
	c.HaveCurrentFH = true

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = types.EncodeStateid4(&buf, stateid)
	_ = encodeChangeInfo(&buf, false)
	rflags := uint32(0x4) // OPEN4_RESULT_LOCKTYPE_POSIX
	if needsConfirm {
		rflags |= 0x2 // OPEN4_RESULT_CONFIRM
	}
	_ = xdr.WriteUint32(&buf, rflags)
	_ = types.EncodeBitmap4(&buf, attrset)
	encodeOpenDelegation(&buf, deleg)
	return types.CompoundResult{OpCode: types.OP_OPEN, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// encodeOpenDelegation writes the open_delegation4 union: OPEN_DELEGATE_NONE
// when deleg is nil, otherwise a delegation stateid plus the recall flag
// (always false — nothing is delegated to this client mid-grant) and the
// ace4 permissions this server doesn't track (encoded as a permissive
// all-bits ACE, matching how GETATTR reports ACL support elsewhere).
func encodeOpenDelegation(buf *bytes.Buffer, deleg *state.Delegation) {
	if deleg == nil {
		_ = xdr.WriteUint32(buf, types.OPEN_DELEGATE_NONE)
		return
	}
	if deleg.Write {
		_ = xdr.WriteUint32(buf, types.OPEN_DELEGATE_WRITE)
	} else {
		_ = xdr.WriteUint32(buf, types.OPEN_DELEGATE_READ)
	}
	_ = types.EncodeStateid4(buf, types.Stateid4{Seqid: 1, Other: deleg.Other})
	_ = xdr.WriteBool(buf, false) // recall
	if deleg.Write {
		_ = xdr.WriteUint32(buf, 1) // nfs_space_limit4.limitby: NFS_LIMIT_SIZE
		_ = xdr.WriteUint64(buf, 0) // filesize: no limit tracked, report unbounded
	}
	_ = xdr.WriteUint32(buf, 0) // ace4.type: ACE4_ACCESS_ALLOWED_ACE_TYPE
	_ = xdr.WriteUint32(buf, 0) // ace4.flag
	_ = xdr.WriteUint32(buf, 0x1F01FF) // ace4.access_mask: full rights
	_ = xdr.WriteString(buf, "OWNER@")
}

// recallDelegation notifies the client holding d over its callback channel
// and drops the delegation immediately: this server does not block on the
// client's DELEGRETURN, so the recall is best-effort rather than a
// synchronous handshake. The caller reports NFS4ERR_DELAY to the OPEN that
// triggered it; by the time the client retries, the delegation is gone and
// the retry proceeds normally.
func (h *Handler) recallDelegation(d *state.Delegation) {
	if cb, ok := h.State.GetClientCallback(d.ClientID); ok && cb.NetID != "" {
		go func() {
			if err := h.Callback.Recall(cb, 0, d.Other, 1, []byte(d.FileHandle), false); err != nil {
				logger.Debug("NFSv4 CB_RECALL to client %d for delegation on %x failed: %v", d.ClientID, d.Other, err)
			}
		}()
	}
	h.State.RevokeDelegation(d.FileHandle)
}

// opOpenConfirm implements OPEN_CONFIRM.
func opOpenConfirm(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	st, err := types.DecodeStateid4(r)
	if err != nil {
		return errResult(types.OP_OPEN_CONFIRM, types.NFS4ERR_BADXDR)
	}
	seqid, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN_CONFIRM, types.NFS4ERR_BADXDR)
	}

	var argbuf bytes.Buffer
	_ = types.EncodeStateid4(&argbuf, st)
	_ = xdr.WriteUint32(&argbuf, seqid)

	newSt, cerr := h.State.ConfirmOpen(st, seqid, argbuf.Bytes())
	if cerr != nil {
		return statusResult(types.OP_OPEN_CONFIRM, mapStateErr(cerr))
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = types.EncodeStateid4(&buf, newSt)
	return types.CompoundResult{OpCode: types.OP_OPEN_CONFIRM, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opOpenDowngrade implements OPEN_DOWNGRADE.
func opOpenDowngrade(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	st, err := types.DecodeStateid4(r)
	if err != nil {
		return errResult(types.OP_OPEN_DOWNGRADE, types.NFS4ERR_BADXDR)
	}
	seqid, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN_DOWNGRADE, types.NFS4ERR_BADXDR)
	}
	access, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN_DOWNGRADE, types.NFS4ERR_BADXDR)
	}
	deny, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_OPEN_DOWNGRADE, types.NFS4ERR_BADXDR)
	}

	var argbuf bytes.Buffer
	_ = types.EncodeStateid4(&argbuf, st)
	_ = xdr.WriteUint32(&argbuf, seqid)
	_ = xdr.WriteUint32(&argbuf, access)
	_ = xdr.WriteUint32(&argbuf, deny)

	newSt, derr := h.State.DowngradeOpen(st, seqid, argbuf.Bytes(), access, deny)
	if derr != nil {
		return statusResult(types.OP_OPEN_DOWNGRADE, mapStateErr(derr))
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = types.EncodeStateid4(&buf, newSt)
	return types.CompoundResult{OpCode: types.OP_OPEN_DOWNGRADE, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opClose implements CLOSE.
func opClose(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	seqid, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_CLOSE, types.NFS4ERR_BADXDR)
	}
	st, err := types.DecodeStateid4(r)
	if err != nil {
		return errResult(types.OP_CLOSE, types.NFS4ERR_BADXDR)
	}

	var argbuf bytes.Buffer
	_ = xdr.WriteUint32(&argbuf, seqid)
	_ = types.EncodeStateid4(&argbuf, st)

	if err := h.State.CloseOpen(st, seqid, argbuf.Bytes()); err != nil {
		return statusResult(types.OP_CLOSE, mapStateErr(err))
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = types.EncodeStateid4(&buf, types.Stateid4{Seqid: st.Seqid + 1, Other: st.Other})
	return types.CompoundResult{OpCode: types.OP_CLOSE, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// lockOwner4 is the wire form of a byte-range lock owner: a clientid plus
// client-opaque owner bytes.
type lockOwner4 struct {
	ClientID uint64
	Owner    []byte
}

func decodeLockOwner4(r *bytes.Reader) (lockOwner4, error) {
	clientID, err := xdr.DecodeUint64(r)
	if err != nil {
		return lockOwner4{}, err
	}
	owner, err := xdr.DecodeOpaque(r)
	if err != nil {
		return lockOwner4{}, err
	}
	return lockOwner4{ClientID: clientID, Owner: owner}, nil
}

// lockStateid synthesizes a stateid4 for a byte-range lock from its owner,
// since this server's lock table (shared with NLM) tracks locks by file
// and owner string rather than minting its own stateid registry the way
// OpenFileState does for opens.
func lockStateid(seqid uint32, clientID uint64, owner []byte) types.Stateid4 {
	f := fnv.New64a()
	_, _ = f.Write([]byte{byte(clientID), byte(clientID >> 8), byte(clientID >> 16), byte(clientID >> 24)})
	_, _ = f.Write(owner)
	sum := f.Sum64()
	var other [12]byte
	other[0] = byte(sum)
	other[1] = byte(sum >> 8)
	other[2] = byte(sum >> 16)
	other[3] = byte(sum >> 24)
	other[4] = byte(sum >> 32)
	other[5] = byte(sum >> 40)
	other[6] = byte(sum >> 48)
	other[7] = byte(sum >> 56)
	return types.Stateid4{Seqid: seqid, Other: other}
}

// opLock implements LOCK: both the new-lock-owner and existing-lock-owner
// forms of the locker4 union.
func opLock(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	lockType, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_LOCK, types.NFS4ERR_BADXDR)
	}
	reclaim, err := xdr.DecodeBool(r)
	if err != nil {
		return errResult(types.OP_LOCK, types.NFS4ERR_BADXDR)
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_LOCK, types.NFS4ERR_BADXDR)
	}
	length, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_LOCK, types.NFS4ERR_BADXDR)
	}
	isNewOwner, err := xdr.DecodeBool(r)
	if err != nil {
		return errResult(types.OP_LOCK, types.NFS4ERR_BADXDR)
	}

	var clientID uint64
	var owner []byte
	var lockSeqid uint32
	var openStateid types.Stateid4
	var openSeqid uint32
	if isNewOwner {
		var derr error
		openSeqid, derr = xdr.DecodeUint32(r)
		if derr == nil {
			openStateid, derr = types.DecodeStateid4(r)
		}
		if derr == nil {
			lockSeqid, derr = xdr.DecodeUint32(r)
		}
		var lo lockOwner4
		if derr == nil {
			lo, derr = decodeLockOwner4(r)
		}
		if derr != nil {
			return errResult(types.OP_LOCK, types.NFS4ERR_BADXDR)
		}
		clientID, owner = lo.ClientID, lo.Owner
	} else {
		existingStateid, derr := types.DecodeStateid4(r)
		if derr == nil {
			lockSeqid, derr = xdr.DecodeUint32(r)
		}
		if derr != nil {
			return errResult(types.OP_LOCK, types.NFS4ERR_BADXDR)
		}
		openStateid = existingStateid
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_LOCK, status)
	}

	if !isNewOwner {
		of, lerr := h.State.LookupOpen(existingLockOpen(openStateid))
		if lerr != nil {
			return statusResult(types.OP_LOCK, mapStateErr(lerr))
		}
		clientID, owner = of.Owner.ClientID, of.Owner.Owner
	}

	lockParams := state.LockParams{
		ClientID:    clientID,
		OpenStateid: openStateid,
		LockOwner:   owner,
		Seqid:       lockSeqid,
		Exclusive:   lockType == 2 || lockType == 4,
		Offset:      offset,
		Length:      length,
		Reclaim:     reclaim,
	}
	var argbuf bytes.Buffer
	_ = xdr.WriteUint32(&argbuf, lockType)
	_ = xdr.WriteBool(&argbuf, reclaim)
	_ = xdr.WriteUint64(&argbuf, offset)
	_ = xdr.WriteUint64(&argbuf, length)
	_ = xdr.WriteBool(&argbuf, isNewOwner)
	lockParams.Args = argbuf.Bytes()
	if isNewOwner {
		var openArgbuf bytes.Buffer
		_ = xdr.WriteUint32(&openArgbuf, openSeqid)
		_ = types.EncodeStateid4(&openArgbuf, openStateid)
		lockParams.NewLockOwner = true
		lockParams.OpenSeqid = openSeqid
		lockParams.OpenArgs = openArgbuf.Bytes()
	}

	conflict, granted, lerr := h.State.Lock(lockParams)
	if lerr != nil {
		return statusResult(types.OP_LOCK, mapStateErr(lerr))
	}
	if !granted {
		return encodeLockDenied(conflict)
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = types.EncodeStateid4(&buf, lockStateid(1, clientID, owner))
	return types.CompoundResult{OpCode: types.OP_LOCK, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// existingLockOpen is a no-op passthrough kept to name the intent at the
// LOCK call site: the existing-owner form's stateid names the OPEN this
// lock extends.
func existingLockOpen(st types.Stateid4) types.Stateid4 { return st }

func encodeLockDenied(conflict locktable.Conflict) types.CompoundResult {
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4ERR_DENIED)
	_ = xdr.WriteUint64(&buf, conflict.Offset)
	_ = xdr.WriteUint64(&buf, conflict.Length)
	lt := uint32(1)
	if conflict.Exclusive {
		lt = 2
	}
	_ = xdr.WriteUint32(&buf, lt)
	_ = xdr.WriteUint64(&buf, 0) // owning clientid not tracked by locktable.Conflict
	_ = xdr.WriteString(&buf, conflict.Owner)
	return types.CompoundResult{OpCode: types.OP_LOCK, Status: types.NFS4ERR_DENIED, Data: buf.Bytes()}
}

// opLockT implements LOCKT: a conflict test not tied to any stateid.
func opLockT(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	lockType, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_LOCKT, types.NFS4ERR_BADXDR)
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_LOCKT, types.NFS4ERR_BADXDR)
	}
	length, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_LOCKT, types.NFS4ERR_BADXDR)
	}
	owner, err := decodeLockOwner4(r)
	if err != nil {
		return errResult(types.OP_LOCKT, types.NFS4ERR_BADXDR)
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_LOCKT, status)
	}
	_, fhPath, err := c.ShareAndPath()
	if err != nil {
		return statusResult(types.OP_LOCKT, types.NFS4ERR_BADHANDLE)
	}
	_ = fhPath

	conflict, ok := h.State.LockT(string(c.CurrentFH), owner.ClientID, owner.Owner, lockType == 2 || lockType == 4, offset, length)
	if !ok {
		return encodeLockDeniedOp(types.OP_LOCKT, conflict)
	}
	return statusResult(types.OP_LOCKT, types.NFS4_OK)
}

func encodeLockDeniedOp(op uint32, conflict locktable.Conflict) types.CompoundResult {
	res := encodeLockDenied(conflict)
	res.OpCode = op
	return res
}

// opLockU implements LOCKU.
func opLockU(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	locktype, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_LOCKU, types.NFS4ERR_BADXDR)
	}
	seqid, err := xdr.DecodeUint32(r)
	if err != nil {
		return errResult(types.OP_LOCKU, types.NFS4ERR_BADXDR)
	}
	st, err := types.DecodeStateid4(r)
	if err != nil {
		return errResult(types.OP_LOCKU, types.NFS4ERR_BADXDR)
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_LOCKU, types.NFS4ERR_BADXDR)
	}
	length, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_LOCKU, types.NFS4ERR_BADXDR)
	}

	if status := c.RequireCurrentFH(); status != types.NFS4_OK {
		return statusResult(types.OP_LOCKU, status)
	}
	of, lerr := h.State.LookupOpen(st)
	if lerr != nil {
		return statusResult(types.OP_LOCKU, mapStateErr(lerr))
	}

	var argbuf bytes.Buffer
	_ = xdr.WriteUint32(&argbuf, locktype)
	_ = xdr.WriteUint32(&argbuf, seqid)
	_ = types.EncodeStateid4(&argbuf, st)
	_ = xdr.WriteUint64(&argbuf, offset)
	_ = xdr.WriteUint64(&argbuf, length)

	if uerr := h.State.Unlock(string(c.CurrentFH), of.Owner.ClientID, of.Owner.Owner, seqid, argbuf.Bytes(), offset, length); uerr != nil {
		return statusResult(types.OP_LOCKU, mapStateErr(uerr))
	}

	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, types.NFS4_OK)
	_ = types.EncodeStateid4(&buf, types.Stateid4{Seqid: st.Seqid + 1, Other: st.Other})
	return types.CompoundResult{OpCode: types.OP_LOCKU, Status: types.NFS4_OK, Data: buf.Bytes()}
}

// opReleaseLockOwner implements RELEASE_LOCKOWNER: drops every lock range
// held by the named owner across every file, plus its seqid-tracking state.
func opReleaseLockOwner(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	owner, err := decodeLockOwner4(r)
	if err != nil {
		return errResult(types.OP_RELEASE_LOCKOWNER, types.NFS4ERR_BADXDR)
	}
	h.State.ReleaseLockOwner(owner.ClientID, owner.Owner)
	return statusResult(types.OP_RELEASE_LOCKOWNER, types.NFS4_OK)
}

// mapStateErr maps a state-package sentinel error to its NFSv4 status.
func mapStateErr(err error) uint32 {
	switch {
	case errors.Is(err, state.ErrStaleClientID):
		return types.NFS4ERR_STALE_CLIENTID
	case errors.Is(err, state.ErrBadStateid):
		return types.NFS4ERR_BAD_STATEID
	case errors.Is(err, state.ErrBadSeqid):
		return types.NFS4ERR_BAD_SEQID
	case errors.Is(err, state.ErrGracePeriod):
		return types.NFS4ERR_GRACE
	case errors.Is(err, state.ErrClientIDInUse):
		return types.NFS4ERR_CLID_INUSE
	case errors.Is(err, state.ErrLocksHeld):
		return types.NFS4ERR_LOCKS_HELD
	default:
		return types.NFS4ERR_SERVERFAULT
	}
}

// opDelegPurge implements DELEGPURGE: drops any delegation state a client
// held before a restart, once it re-establishes its clientid without
// reclaiming them.
func opDelegPurge(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	clientID, err := xdr.DecodeUint64(r)
	if err != nil {
		return errResult(types.OP_DELEGPURGE, types.NFS4ERR_BADXDR)
	}
	h.State.PurgeDelegations(clientID)
	return statusResult(types.OP_DELEGPURGE, types.NFS4_OK)
}

// opDelegReturn implements DELEGRETURN: releases the delegation named by
// the stateid, voluntarily returned ahead of (or in response to) a recall.
func opDelegReturn(h *Handler, c *types.CompoundContext, r *bytes.Reader) types.CompoundResult {
	st, err := types.DecodeStateid4(r)
	if err != nil {
		return errResult(types.OP_DELEGRETURN, types.NFS4ERR_BADXDR)
	}
	if derr := h.State.DelegReturn(st.Other); derr != nil {
		return statusResult(types.OP_DELEGRETURN, mapStateErr(derr))
	}
	return statusResult(types.OP_DELEGRETURN, types.NFS4_OK)
}
