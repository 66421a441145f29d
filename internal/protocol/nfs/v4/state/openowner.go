package state

import (
	"bytes"
	"errors"
)

// ErrBadSeqid means the seqid presented for an open-owner or lock-owner
// operation is neither the next expected value nor a retransmission of
// the last one, per RFC 7530 Section 9.1.7's sequencing rules.
var ErrBadSeqid = errors.New("nfsv4: bad seqid")

// OpenOwner tracks one open_owner4 (RFC 7530 Section 9.1.1): a
// client-chosen opaque identifier scoped to a clientid, used to sequence
// OPEN/OPEN_CONFIRM/OPEN_DOWNGRADE/CLOSE calls and to detect retransmitted
// requests.
//
// Every open-owner-sequenced operation must present seqid == Seqid+1 (the
// next expected value) to proceed, or seqid == Seqid with byte-identical
// arguments to receive the cached reply from the last successful call —
// any other value is a protocol violation (NFS4ERR_BAD_SEQID). This cache
// is what makes OPEN safe to retry across a dropped reply without
// double-creating a file or double-incrementing share reservation counts.
type OpenOwner struct {
	ClientID uint64
	Owner    []byte

	Seqid uint32

	lastArgs   []byte
	lastStatus uint32
	lastReply  []byte

	// Opens tracks every currently-open stateid this owner holds, keyed by
	// the string form of the file handle it was opened against. An
	// owner can hold more than one open of the same file (separate OPEN
	// calls with different share/deny combinations are all valid).
	Opens map[string][]*OpenFileState
}

func newOpenOwner(clientID uint64, owner []byte) *OpenOwner {
	return &OpenOwner{
		ClientID: clientID,
		Owner:    append([]byte(nil), owner...),
		Opens:    make(map[string][]*OpenFileState),
	}
}

// CheckSeqid validates seqid against the owner's sequencing state.
//
// Returns (true, cachedStatus, cachedReply, nil) when this is a
// retransmission of the immediately preceding call — the caller should
// return the cached reply verbatim without re-executing the operation.
// Returns (false, 0, nil, nil) when seqid is the expected next value —
// the caller should execute the operation and then call RecordReply.
// Returns a non-nil error (ErrBadSeqid) for anything else.
func (o *OpenOwner) CheckSeqid(seqid uint32, args []byte) (isReplay bool, cachedStatus uint32, cachedReply []byte, err error) {
	if o.Seqid == 0 && o.lastReply == nil {
		// First call ever from this owner: any seqid is accepted as the
		// starting point, matching clients that begin counting from 1.
		return false, 0, nil, nil
	}
	if seqid == o.Seqid {
		if !bytes.Equal(o.lastArgs, args) {
			return false, 0, nil, ErrBadSeqid
		}
		return true, o.lastStatus, o.lastReply, nil
	}
	if seqid == o.Seqid+1 {
		return false, 0, nil, nil
	}
	return false, 0, nil, ErrBadSeqid
}

// RecordReply stores the result of a just-executed operation so a
// retransmission of the same seqid can be answered from cache instead of
// re-executed.
func (o *OpenOwner) RecordReply(seqid uint32, args []byte, status uint32, reply []byte) {
	o.Seqid = seqid
	o.lastArgs = append([]byte(nil), args...)
	o.lastStatus = status
	o.lastReply = append([]byte(nil), reply...)
}

// OPEN4 share_access / share_deny bits, RFC 7530 Section 14.2.16.
const (
	OPEN4_SHARE_ACCESS_READ  = 1
	OPEN4_SHARE_ACCESS_WRITE = 2
	OPEN4_SHARE_ACCESS_BOTH  = 3

	OPEN4_SHARE_DENY_NONE  = 0
	OPEN4_SHARE_DENY_READ  = 1
	OPEN4_SHARE_DENY_WRITE = 2
	OPEN4_SHARE_DENY_BOTH  = 3
)

// OpenFileState is one outstanding OPEN against one file handle, owned by
// one OpenOwner. Its stateid's Seqid increments on OPEN_DOWNGRADE and is
// echoed by CLOSE.
type OpenFileState struct {
	Other      [12]byte // the "other" half of this open's stateid
	StateSeqid uint32

	Owner      *OpenOwner
	FileHandle string

	Access uint32
	Deny   uint32

	// Confirmed is false until OPEN_CONFIRM succeeds, required whenever
	// this is the open-owner's first OPEN against this clientid (RFC 7530
	// Section 16.18.5). Subsequent opens from an already-confirmed owner
	// skip OPEN_CONFIRM entirely.
	Confirmed bool
}
