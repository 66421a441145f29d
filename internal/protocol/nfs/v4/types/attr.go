package types

import (
	"bytes"
	"fmt"
	"time"

	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/store/metadata"
)

// fattr4 attribute numbers this server understands, RFC 7530 Section 5.8.
// Attribute numbers outside this set are silently dropped from the
// "supported" bitmap returned by GETATTR and rejected with
// NFS4ERR_ATTRNOTSUPP if requested individually via VERIFY/NVERIFY.
const (
	FATTR4_SUPPORTED_ATTRS = 0
	FATTR4_TYPE            = 1
	FATTR4_FH_EXPIRE_TYPE  = 2
	FATTR4_CHANGE          = 3
	FATTR4_SIZE            = 4
	FATTR4_LINK_SUPPORT    = 5
	FATTR4_SYMLINK_SUPPORT = 6
	FATTR4_NAMED_ATTR      = 7
	FATTR4_FSID            = 8
	FATTR4_UNIQUE_HANDLES  = 9
	FATTR4_LEASE_TIME      = 10
	FATTR4_RDATTR_ERROR    = 11
	FATTR4_MAXREAD         = 30
	FATTR4_MAXWRITE        = 31
	FATTR4_FILEHANDLE      = 19
	FATTR4_FILEID          = 20
	FATTR4_MODE            = 33
	FATTR4_NUMLINKS        = 35
	FATTR4_OWNER           = 36
	FATTR4_OWNER_GROUP     = 37
	FATTR4_SPACE_USED      = 45
	FATTR4_TIME_ACCESS     = 47
	FATTR4_TIME_METADATA   = 52
	FATTR4_TIME_MODIFY     = 53
)

// SupportedAttrs is this server's FATTR4_SUPPORTED_ATTRS value: every
// attribute number this package knows how to encode.
var SupportedAttrs = []uint32{
	FATTR4_SUPPORTED_ATTRS, FATTR4_TYPE, FATTR4_FH_EXPIRE_TYPE, FATTR4_CHANGE,
	FATTR4_SIZE, FATTR4_LINK_SUPPORT, FATTR4_SYMLINK_SUPPORT, FATTR4_NAMED_ATTR,
	FATTR4_FSID, FATTR4_UNIQUE_HANDLES, FATTR4_LEASE_TIME, FATTR4_RDATTR_ERROR,
	FATTR4_MAXREAD, FATTR4_MAXWRITE, FATTR4_FILEHANDLE, FATTR4_FILEID,
	FATTR4_MODE, FATTR4_NUMLINKS, FATTR4_OWNER, FATTR4_OWNER_GROUP,
	FATTR4_SPACE_USED, FATTR4_TIME_ACCESS, FATTR4_TIME_METADATA, FATTR4_TIME_MODIFY,
}

// DecodeBitmap4 reads a bitmap4: a uint32 count followed by that many
// uint32 words. Word i, bit j represents attribute number i*32+j.
func DecodeBitmap4(r *bytes.Reader) ([]uint32, error) {
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode bitmap4 word count: %w", err)
	}
	if count > 8 {
		return nil, fmt.Errorf("bitmap4 word count %d exceeds sane limit", count)
	}
	words := make([]uint32, count)
	for i := range words {
		w, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("decode bitmap4 word %d: %w", i, err)
		}
		words[i] = w
	}
	return words, nil
}

// EncodeBitmap4 writes a bitmap4 built from the given attribute numbers.
func EncodeBitmap4(buf *bytes.Buffer, attrs []uint32) error {
	var words []uint32
	for _, a := range attrs {
		word, bit := int(a/32), a%32
		for len(words) <= word {
			words = append(words, 0)
		}
		words[word] |= 1 << bit
	}
	if err := xdr.WriteUint32(buf, uint32(len(words))); err != nil {
		return err
	}
	for _, w := range words {
		if err := xdr.WriteUint32(buf, w); err != nil {
			return err
		}
	}
	return nil
}

func bitmapHas(words []uint32, attr uint32) bool {
	word, bit := int(attr/32), attr%32
	if word >= len(words) {
		return false
	}
	return words[word]&(1<<bit) != 0
}

// BitmapToList expands a bitmap4 into the sorted list of attribute numbers
// it contains, restricted to attributes this server recognizes.
func BitmapToList(words []uint32) []uint32 {
	var out []uint32
	for _, a := range SupportedAttrs {
		if bitmapHas(words, a) {
			out = append(out, a)
		}
	}
	return out
}

func fileType4(t metadata.FileType) uint32 {
	switch t {
	case metadata.FileTypeDirectory:
		return NF4DIR
	case metadata.FileTypeSymlink:
		return NF4LNK
	case metadata.FileTypeBlockDevice:
		return NF4BLK
	case metadata.FileTypeCharDevice:
		return NF4CHR
	case metadata.FileTypeSocket:
		return NF4SOCK
	case metadata.FileTypeFIFO:
		return NF4FIFO
	default:
		return NF4REG
	}
}

// EncodeFattr4 builds the fattr4 wire value (supported-attrs bitmap, then
// the requested attribute values packed back to back) for the attributes
// present in requested that this server supports.
//
// fileid and numLinks come from the caller because they are derived from
// the handle/directory-listing rather than FileAttr itself.
func EncodeFattr4(requested []uint32, attr *metadata.FileAttr, fh metadata.FileHandle, fileid uint64, numLinks uint32, leaseSeconds uint32) ([]byte, []byte, error) {
	present := BitmapToList(requested)

	var bitmapBuf bytes.Buffer
	if err := EncodeBitmap4(&bitmapBuf, present); err != nil {
		return nil, nil, err
	}

	var vals bytes.Buffer
	for _, a := range present {
		if err := encodeOneAttr(&vals, a, attr, fh, fileid, numLinks, leaseSeconds); err != nil {
			return nil, nil, fmt.Errorf("encode attr %d: %w", a, err)
		}
	}
	return bitmapBuf.Bytes(), vals.Bytes(), nil
}

func encodeOneAttr(buf *bytes.Buffer, a uint32, attr *metadata.FileAttr, fh metadata.FileHandle, fileid uint64, numLinks uint32, leaseSeconds uint32) error {
	switch a {
	case FATTR4_SUPPORTED_ATTRS:
		return EncodeBitmap4(buf, SupportedAttrs)
	case FATTR4_TYPE:
		return xdr.WriteUint32(buf, fileType4(attr.Type))
	case FATTR4_FH_EXPIRE_TYPE:
		return xdr.WriteUint32(buf, 0) // FH4_PERSISTENT
	case FATTR4_CHANGE:
		return xdr.WriteUint64(buf, uint64(attr.Mtime.UnixNano()))
	case FATTR4_SIZE:
		return xdr.WriteUint64(buf, attr.Size)
	case FATTR4_LINK_SUPPORT:
		return xdr.WriteBool(buf, true)
	case FATTR4_SYMLINK_SUPPORT:
		return xdr.WriteBool(buf, true)
	case FATTR4_NAMED_ATTR:
		return xdr.WriteBool(buf, false)
	case FATTR4_FSID:
		if err := xdr.WriteUint64(buf, 1); err != nil { // major
			return err
		}
		return xdr.WriteUint64(buf, 1) // minor
	case FATTR4_UNIQUE_HANDLES:
		return xdr.WriteBool(buf, true)
	case FATTR4_LEASE_TIME:
		return xdr.WriteUint32(buf, leaseSeconds)
	case FATTR4_RDATTR_ERROR:
		return xdr.WriteUint32(buf, NFS4_OK)
	case FATTR4_MAXREAD:
		return xdr.WriteUint64(buf, 1<<20)
	case FATTR4_MAXWRITE:
		return xdr.WriteUint64(buf, 1<<20)
	case FATTR4_FILEHANDLE:
		return xdr.WriteXDROpaque(buf, fh)
	case FATTR4_FILEID:
		return xdr.WriteUint64(buf, fileid)
	case FATTR4_MODE:
		return xdr.WriteUint32(buf, attr.Mode&0o7777)
	case FATTR4_NUMLINKS:
		return xdr.WriteUint32(buf, numLinks)
	case FATTR4_OWNER:
		return xdr.WriteString(buf, fmt.Sprintf("%d", attr.UID))
	case FATTR4_OWNER_GROUP:
		return xdr.WriteString(buf, fmt.Sprintf("%d", attr.GID))
	case FATTR4_SPACE_USED:
		return xdr.WriteUint64(buf, attr.Size)
	case FATTR4_TIME_ACCESS:
		return encodeNFSTime(buf, attr.Atime)
	case FATTR4_TIME_METADATA:
		return encodeNFSTime(buf, attr.Ctime)
	case FATTR4_TIME_MODIFY:
		return encodeNFSTime(buf, attr.Mtime)
	default:
		return fmt.Errorf("attribute %d has no encoder despite being in SupportedAttrs", a)
	}
}

func encodeNFSTime(buf *bytes.Buffer, t time.Time) error {
	if err := xdr.WriteUint64(buf, uint64(t.Unix())); err != nil {
		return err
	}
	return xdr.WriteUint32(buf, uint32(t.Nanosecond()))
}

// DecodeSetAttrs decodes the fattr4 body of a SETATTR request into a
// metadata.SetAttrs, supporting the commonly-set subset (MODE, SIZE, the
// three timestamps). Attributes outside that subset are rejected with
// NFS4ERR_ATTRNOTSUPP by the caller before this is reached.
func DecodeSetAttrs(words []uint32, r *bytes.Reader) (*metadata.SetAttrs, error) {
	out := &metadata.SetAttrs{}
	for _, a := range BitmapToList(words) {
		switch a {
		case FATTR4_SIZE:
			v, err := xdr.DecodeUint64(r)
			if err != nil {
				return nil, err
			}
			out.Size = &v
		case FATTR4_MODE:
			v, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			out.Mode = &v
		case FATTR4_TIME_ACCESS, FATTR4_TIME_MODIFY:
			t, err := decodeSetTime(r)
			if err != nil {
				return nil, err
			}
			if a == FATTR4_TIME_ACCESS {
				out.Atime = &t
			} else {
				out.Mtime = &t
			}
		default:
			return nil, fmt.Errorf("attribute %d not settable", a)
		}
	}
	return out, nil
}

// decodeSetTime decodes a settime4 union: a 4-byte discriminant
// (SET_TO_SERVER_TIME4=0, SET_TO_CLIENT_TIME4=1) followed by an nfstime4
// only when the discriminant is 1.
func decodeSetTime(r *bytes.Reader) (time.Time, error) {
	how, err := xdr.DecodeUint32(r)
	if err != nil {
		return time.Time{}, err
	}
	if how == 0 {
		return time.Now(), nil
	}
	secs, err := xdr.DecodeUint64(r)
	if err != nil {
		return time.Time{}, err
	}
	nsecs, err := xdr.DecodeUint32(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), int64(nsecs)), nil
}
