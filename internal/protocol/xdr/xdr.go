// Package xdr provides generic XDR (External Data Representation) encoding
// and decoding utilities per RFC 4506.
//
// XDR is the standard data serialization format used by Sun RPC protocols
// including NFS, NLM, and the portmapper. This package contains only
// protocol-agnostic primitives with no dependency on any specific protocol's
// types, so it is shared by the NFSv4, NLM, NSM, and portmapper packages.
//
// Key characteristics of XDR:
//   - Big-endian byte order for all multi-byte integers
//   - 4-byte alignment for all data types
//   - Variable-length data is preceded by a 4-byte length
//   - Strings and opaque data are padded to 4-byte boundaries
package xdr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxOpaqueLength bounds a single variable-length opaque decode to guard
// against a corrupt or hostile length prefix driving an unbounded allocation.
const MaxOpaqueLength = 1 << 20

// Padding returns the number of zero bytes needed to round length up to a
// multiple of 4.
func Padding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}

func WriteUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

func WriteUint64(buf *bytes.Buffer, v uint64) error {
	return binary.Write(buf, binary.BigEndian, v)
}

func WriteBool(buf *bytes.Buffer, v bool) error {
	if v {
		return WriteUint32(buf, 1)
	}
	return WriteUint32(buf, 0)
}

// WriteXDROpaque writes a variable-length opaque: length + data + padding.
func WriteXDROpaque(buf *bytes.Buffer, data []byte) error {
	if err := WriteUint32(buf, uint32(len(data))); err != nil {
		return fmt.Errorf("write opaque length: %w", err)
	}
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("write opaque data: %w", err)
	}
	pad := Padding(uint32(len(data)))
	if pad > 0 {
		if _, err := buf.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("write opaque padding: %w", err)
		}
	}
	return nil
}

// WriteString writes an XDR string (variable opaque, UTF-8 interpreted).
func WriteString(buf *bytes.Buffer, s string) error {
	return WriteXDROpaque(buf, []byte(s))
}

func DecodeUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func DecodeUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func DecodeBool(r io.Reader) (bool, error) {
	v, err := DecodeUint32(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// DecodeOpaque decodes a variable-length opaque: length + data + padding.
func DecodeOpaque(r io.Reader) ([]byte, error) {
	length, err := DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode opaque length: %w", err)
	}
	if length > MaxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, MaxOpaqueLength)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read opaque data: %w", err)
	}
	pad := Padding(length)
	if pad > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return nil, fmt.Errorf("skip opaque padding: %w", err)
		}
	}
	return data, nil
}

func DecodeString(r io.Reader) (string, error) {
	data, err := DecodeOpaque(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeFixedOpaque reads a fixed-size opaque field (no length prefix) and
// skips any trailing pad bytes needed to reach a 4-byte boundary.
func DecodeFixedOpaque(r io.Reader, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read fixed opaque: %w", err)
	}
	pad := Padding(uint32(size))
	if pad > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return nil, fmt.Errorf("skip fixed opaque padding: %w", err)
		}
	}
	return data, nil
}
