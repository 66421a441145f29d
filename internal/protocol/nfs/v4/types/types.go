// Package types holds the wire-level constants and shared request/response
// plumbing for NFSv4.0 COMPOUND (RFC 7530): operation numbers, status codes,
// the stateid4 codec, and the mutable per-COMPOUND context threaded through
// every operation handler.
package types

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/registry"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// Operation numbers, RFC 7530 Section 17.2. Operations introduced only in
// NFSv4.1+ (sessions, CB_NOTIFY_LOCK, EXCHANGE_ID, ...) are out of scope and
// have no entry here.
const (
	OP_ACCESS               = 3
	OP_CLOSE                = 4
	OP_COMMIT               = 5
	OP_CREATE               = 6
	OP_DELEGPURGE           = 7
	OP_DELEGRETURN          = 8
	OP_GETATTR              = 9
	OP_GETFH                = 10
	OP_LINK                 = 11
	OP_LOCK                 = 12
	OP_LOCKT                = 13
	OP_LOCKU                = 14
	OP_LOOKUP               = 15
	OP_LOOKUPP              = 16
	OP_NVERIFY              = 17
	OP_OPEN                 = 18
	OP_OPENATTR             = 19
	OP_OPEN_CONFIRM         = 20
	OP_OPEN_DOWNGRADE       = 21
	OP_PUTFH                = 22
	OP_PUTPUBFH             = 23
	OP_PUTROOTFH            = 24
	OP_READ                 = 25
	OP_READDIR              = 26
	OP_READLINK             = 27
	OP_REMOVE               = 28
	OP_RENAME               = 29
	OP_RENEW                = 30
	OP_RESTOREFH            = 31
	OP_SAVEFH               = 32
	OP_SECINFO              = 33
	OP_SETATTR              = 34
	OP_SETCLIENTID          = 35
	OP_SETCLIENTID_CONFIRM  = 36
	OP_VERIFY               = 37
	OP_WRITE                = 38
	OP_RELEASE_LOCKOWNER    = 39
	OP_ILLEGAL              = 10044
)

var opNames = map[uint32]string{
	OP_ACCESS: "ACCESS", OP_CLOSE: "CLOSE", OP_COMMIT: "COMMIT", OP_CREATE: "CREATE",
	OP_DELEGPURGE: "DELEGPURGE", OP_DELEGRETURN: "DELEGRETURN", OP_GETATTR: "GETATTR",
	OP_GETFH: "GETFH", OP_LINK: "LINK", OP_LOCK: "LOCK", OP_LOCKT: "LOCKT",
	OP_LOCKU: "LOCKU", OP_LOOKUP: "LOOKUP", OP_LOOKUPP: "LOOKUPP", OP_NVERIFY: "NVERIFY",
	OP_OPEN: "OPEN", OP_OPENATTR: "OPENATTR", OP_OPEN_CONFIRM: "OPEN_CONFIRM",
	OP_OPEN_DOWNGRADE: "OPEN_DOWNGRADE", OP_PUTFH: "PUTFH", OP_PUTPUBFH: "PUTPUBFH",
	OP_PUTROOTFH: "PUTROOTFH", OP_READ: "READ", OP_READDIR: "READDIR",
	OP_READLINK: "READLINK", OP_REMOVE: "REMOVE", OP_RENAME: "RENAME", OP_RENEW: "RENEW",
	OP_RESTOREFH: "RESTOREFH", OP_SAVEFH: "SAVEFH", OP_SECINFO: "SECINFO",
	OP_SETATTR: "SETATTR", OP_SETCLIENTID: "SETCLIENTID",
	OP_SETCLIENTID_CONFIRM: "SETCLIENTID_CONFIRM", OP_VERIFY: "VERIFY", OP_WRITE: "WRITE",
	OP_RELEASE_LOCKOWNER: "RELEASE_LOCKOWNER", OP_ILLEGAL: "ILLEGAL",
}

// OpName returns the human-readable operation name, or "OP_<n>" if unknown.
func OpName(op uint32) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_%d", op)
}

// OpNameToNum is the inverse of OpName, used to parse admin-configured
// blocked-operation lists.
func OpNameToNum(name string) (uint32, bool) {
	for num, n := range opNames {
		if n == name {
			return num, true
		}
	}
	return 0, false
}

// NFSv4 status codes, RFC 7530 Section 13.
const (
	NFS4_OK                 = 0
	NFS4ERR_PERM            = 1
	NFS4ERR_NOENT           = 2
	NFS4ERR_IO              = 5
	NFS4ERR_NXIO            = 6
	NFS4ERR_ACCES           = 13
	NFS4ERR_EXIST           = 17
	NFS4ERR_NOTDIR          = 20
	NFS4ERR_ISDIR           = 21
	NFS4ERR_FBIG            = 27
	NFS4ERR_NOSPC           = 28
	NFS4ERR_ROFS            = 30
	NFS4ERR_NAMETOOLONG     = 63
	NFS4ERR_NOTEMPTY        = 66
	NFS4ERR_DQUOT           = 69
	NFS4ERR_STALE           = 70
	NFS4ERR_BADHANDLE       = 10001
	NFS4ERR_BAD_COOKIE      = 10003
	NFS4ERR_NOTSUPP         = 10004
	NFS4ERR_TOOSMALL        = 10005
	NFS4ERR_SERVERFAULT     = 10006
	NFS4ERR_BADTYPE         = 10007
	NFS4ERR_DELAY           = 10008
	NFS4ERR_SAME            = 10009
	NFS4ERR_DENIED          = 10010
	NFS4ERR_EXPIRED         = 10011
	NFS4ERR_LOCKED          = 10012
	NFS4ERR_GRACE           = 10013
	NFS4ERR_FHEXPIRED       = 10014
	NFS4ERR_SHARE_DENIED    = 10015
	NFS4ERR_WRONGSEC        = 10016
	NFS4ERR_CLID_INUSE      = 10017
	NFS4ERR_RESOURCE        = 10018
	NFS4ERR_MOVED           = 10019
	NFS4ERR_NOFILEHANDLE    = 10020
	NFS4ERR_MINOR_VERS_MISMATCH = 10021
	NFS4ERR_STALE_CLIENTID  = 10022
	NFS4ERR_STALE_STATEID   = 10023
	NFS4ERR_OLD_STATEID     = 10024
	NFS4ERR_BAD_STATEID     = 10025
	NFS4ERR_BAD_SEQID       = 10026
	NFS4ERR_NOT_SAME        = 10027
	NFS4ERR_LOCK_RANGE      = 10028
	NFS4ERR_SYMLINK         = 10029
	NFS4ERR_RESTOREFH       = 10030
	NFS4ERR_LEASE_MOVED     = 10031
	NFS4ERR_ATTRNOTSUPP     = 10032
	NFS4ERR_NO_GRACE        = 10033
	NFS4ERR_RECLAIM_BAD     = 10034
	NFS4ERR_RECLAIM_CONFLICT = 10035
	NFS4ERR_BADXDR          = 10036
	NFS4ERR_LOCKS_HELD      = 10037
	NFS4ERR_OPENMODE        = 10038
	NFS4ERR_BADOWNER        = 10039
	NFS4ERR_BADCHAR         = 10040
	NFS4ERR_BADNAME         = 10041
	NFS4ERR_BAD_RANGE       = 10042
	NFS4ERR_LOCK_NOTSUPP    = 10043
	NFS4ERR_OP_ILLEGAL      = 10044
	NFS4ERR_DEADLOCK        = 10045
	NFS4ERR_FILE_OPEN       = 10046
	NFS4ERR_ADMIN_REVOKED   = 10047
	NFS4ERR_CB_PATH_DOWN    = 10048
	NFS4ERR_INVAL           = 22
)

// open_delegation_type4 discriminants, RFC 7530 Section 14.2.16.
const (
	OPEN_DELEGATE_NONE  = 0
	OPEN_DELEGATE_READ  = 1
	OPEN_DELEGATE_WRITE = 2
)

// File types, RFC 7530 Section 13.2.1 (ftype4).
const (
	NF4REG       = 1
	NF4DIR       = 2
	NF4BLK       = 3
	NF4CHR       = 4
	NF4LNK       = 5
	NF4SOCK      = 6
	NF4FIFO      = 7
	NF4ATTRDIR   = 8
	NF4NAMEDATTR = 9
)

// Stateid4 is the 16-byte opaque state identifier: a 4-byte sequence number
// plus a 12-byte server-opaque "other" field.
type Stateid4 struct {
	Seqid uint32
	Other [12]byte
}

// AnonymousStateid and BypassStateid are the two reserved special stateids
// (RFC 7530 Section 9.1.4.3): all-zero means "no state associated" and is
// accepted for READ/WRITE against files with no conflicting opens; all-ones
// bypasses share reservation checks entirely (used by some NLM bridges).
var (
	AnonymousStateid = Stateid4{}
	BypassStateid    = Stateid4{Seqid: 0xFFFFFFFF, Other: [12]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}
)

func (s Stateid4) IsAnonymous() bool {
	return s == AnonymousStateid
}

func (s Stateid4) IsBypass() bool {
	return s == BypassStateid
}

// DecodeStateid4 reads a stateid4 from the wire: seqid (4 bytes) + other
// (12-byte fixed opaque, no padding needed since 12 is already 4-aligned).
func DecodeStateid4(r *bytes.Reader) (Stateid4, error) {
	seqid, err := xdr.DecodeUint32(r)
	if err != nil {
		return Stateid4{}, fmt.Errorf("decode stateid seqid: %w", err)
	}
	other, err := xdr.DecodeFixedOpaque(r, 12)
	if err != nil {
		return Stateid4{}, fmt.Errorf("decode stateid other: %w", err)
	}
	var s Stateid4
	s.Seqid = seqid
	copy(s.Other[:], other)
	return s, nil
}

// EncodeStateid4 writes a stateid4 to buf.
func EncodeStateid4(buf *bytes.Buffer, s Stateid4) error {
	if err := xdr.WriteUint32(buf, s.Seqid); err != nil {
		return err
	}
	_, err := buf.Write(s.Other[:])
	return err
}

// CompoundResult is one operation's contribution to a COMPOUND reply:
// its status, opcode (echoed so the caller can build resop4), and the
// already-XDR-encoded operation-specific result body.
type CompoundResult struct {
	OpCode uint32
	Status uint32
	Data   []byte
}

// CompoundContext is the mutable state threaded through every operation in
// a single COMPOUND call: current/saved filehandle, the authenticated
// identity, and the shared collaborators (registry, state manager) each
// operation handler needs.
type CompoundContext struct {
	Context context.Context

	// Registry resolves share names to metadata/content stores.
	Registry *registry.Registry

	// AuthCtx carries the authenticated identity for permission checks,
	// built once per RPC call from the AUTH_SYS credentials.
	AuthCtx *metadata.AuthContext

	// ClientAddr is "IP:port" of the connected client.
	ClientAddr string

	// CurrentFH / SavedFH implement the COMPOUND filehandle stack
	// (RFC 7530 Section 15.2): PUTFH/PUTROOTFH/PUTPUBFH/LOOKUP set
	// CurrentFH; SAVEFH copies it to SavedFH; RESTOREFH copies it back.
	CurrentFH metadata.FileHandle
	SavedFH   metadata.FileHandle

	// HaveCurrentFH / HaveSavedFH distinguish "no filehandle yet" from a
	// valid-but-zero-length handle.
	HaveCurrentFH bool
	HaveSavedFH   bool

	// MinorVersion is always 0 here; kept for forward compatibility checks.
	MinorVersion uint32
}

// RequireCurrentFH returns NFS4ERR_NOFILEHANDLE if no current filehandle is
// set, which every operation except PUTFH/PUTROOTFH/PUTPUBFH must check
// first per RFC 7530 Section 15.2.3.
func (c *CompoundContext) RequireCurrentFH() uint32 {
	if !c.HaveCurrentFH {
		return NFS4ERR_NOFILEHANDLE
	}
	return NFS4_OK
}

// ShareAndPath decodes the current filehandle into its share name and path.
func (c *CompoundContext) ShareAndPath() (shareName, path string, err error) {
	return metadata.DecodeShareHandle(c.CurrentFH)
}
