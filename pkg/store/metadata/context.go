package metadata

import (
	"context"
	"time"
)

// FileHandle is an opaque, protocol-independent reference to a file or
// directory. Implementations decide the encoding; see handle.go for the
// share-path scheme used by the stores in this module.
type FileHandle []byte

// Identity is a client's identity after any share-level squashing rules
// have been applied. Unix fields (UID/GID) are used by NFS; SID/GroupSIDs
// exist for protocols (SMB) that might share this store in the future.
type Identity struct {
	UID       *uint32
	GID       *uint32
	GIDs      []uint32
	SID       *string
	GroupSIDs []string
	Username  string
	Domain    string
}

// HasGID reports whether gid is the identity's primary or a supplementary
// group.
func (i *Identity) HasGID(gid uint32) bool {
	if i == nil {
		return false
	}
	if i.GID != nil && *i.GID == gid {
		return true
	}
	for _, g := range i.GIDs {
		if g == gid {
			return true
		}
	}
	return false
}

// AuthContext carries the authenticated client identity used for permission
// checks. It is built by the protocol layer from RPC credentials (and any
// identity mapping already applied) before reaching the store.
type AuthContext struct {
	Context context.Context

	// AuthMethod names the authentication scheme used: "null", "unix", etc.
	AuthMethod string

	// Identity is the effective client identity. nil means anonymous.
	Identity *Identity

	// ClientAddr is "IP:port" or "IP" of the connected client.
	ClientAddr string
}

// Permission is a bitmap of filesystem permission flags, independent of any
// single wire protocol's access bits.
type Permission uint32

const (
	PermissionRead Permission = 1 << iota
	PermissionWrite
	PermissionExecute
	PermissionDelete
	PermissionListDirectory
	PermissionTraverse
	PermissionChangePermissions
	PermissionChangeOwnership
)

// AccessDecision is the result of a share-level access control check.
type AccessDecision struct {
	Allowed            bool
	Reason             string
	AllowedAuthMethods []string
	ReadOnly           bool
}

// WriteOperation is the intent produced by PrepareWrite and consumed by
// CommitWrite, carrying everything needed to apply the metadata side of a
// write once the content bytes have landed in the content store.
type WriteOperation struct {
	Handle       FileHandle
	NewSize      uint64
	NewMtime     time.Time
	ContentID    ContentID
	PreWriteAttr *FileAttr
}

// ReadMetadata is returned by PrepareRead: the file's attributes needed to
// authorize and size a subsequent content read.
type ReadMetadata struct {
	Attr *FileAttr
}

// FilesystemCapabilities describes static limits and feature support for a
// share's filesystem, used to answer NFS FSINFO/PATHCONF-style queries.
type FilesystemCapabilities struct {
	MaxFileSize        uint64
	MaxNameLength       uint32
	MaxHardLinkCount    uint32
	MaxSymlinkDepth     uint32
	CaseSensitive       bool
	CasePreserving      bool
	SupportsHardLinks   bool
	SupportsSymlinks    bool
	SupportsACLs        bool
	ChownRestricted     bool
	PreferredReadSize   uint32
	MaxReadSize         uint32
	PreferredWriteSize  uint32
	MaxWriteSize        uint32
	PreferredReadDirSize uint32
}

// FilesystemStatistics reports dynamic usage for a share's filesystem, used
// to answer NFS FSSTAT-style queries.
type FilesystemStatistics struct {
	TotalBytes     uint64
	UsedBytes      uint64
	AvailableBytes uint64
	TotalFiles     uint64
	UsedFiles      uint64
	AvailableFiles uint64
}
