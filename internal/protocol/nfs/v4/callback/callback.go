// Package callback implements the NFSv4 backchannel: CB_NULL and CB_RECALL,
// sent by this server to a client's cb_client4 address (registered via
// SETCLIENTID) to ask it to return a delegation. CB_RECALL fires whenever
// an OPEN from one client conflicts with a delegation already granted to
// another; the callback channel is also how a conformant server proves a
// client's address is reachable before trusting its callback_ident.
package callback

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/state"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
)

const (
	// CB_COMPOUND is the only procedure a callback program version 1
	// defines besides CB_NULL; individual callback operations travel
	// inside its argop array, mirroring how COMPOUND works in the
	// forward direction.
	procNull     = 0
	procCompound = 1

	opCBGetattr = 3
	opCBRecall  = 4

	dialTimeout = 3 * time.Second
)

// Client sends callbacks to NFSv4 clients' backchannels.
type Client struct{}

// NewClient returns a callback client.
func NewClient() *Client {
	return &Client{}
}

// parseUaddr decodes an RFC 5665 IPv4 universal address ("h1.h2.h3.h4.p1.p2")
// into a dialable "host:port" string. Only netid "tcp" is supported, since
// this server's own transport is TCP-only.
func parseUaddr(netID, addr string) (string, error) {
	if netID != "tcp" {
		return "", fmt.Errorf("callback: unsupported netid %q", netID)
	}
	parts := strings.Split(addr, ".")
	if len(parts) != 6 {
		return "", fmt.Errorf("callback: malformed universal address %q", addr)
	}
	octets := make([]int, 6)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("callback: bad octet %q in universal address %q: %w", p, addr, err)
		}
		if v < 0 || v > 255 {
			return "", fmt.Errorf("callback: octet %d out of range in universal address %q", v, addr)
		}
		octets[i] = v
	}
	host := fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], octets[3])
	port := octets[4]*256 + octets[5]
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func writeRecord(conn net.Conn, data []byte) error {
	var hdr [4]byte
	length := uint32(len(data)) | 0x80000000
	hdr[0], hdr[1], hdr[2], hdr[3] = byte(length>>24), byte(length>>16), byte(length>>8), byte(length)
	if _, err := conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}

func readRecord(conn net.Conn) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	length := (uint32(hdr[0])<<24 | uint32(hdr[1])<<16 | uint32(hdr[2])<<8 | uint32(hdr[3])) & 0x7FFFFFFF
	if length > 1<<20 {
		return nil, fmt.Errorf("callback: reply too large: %d", length)
	}
	buf := make([]byte, length)
	_, err := io.ReadFull(conn, buf)
	return buf, err
}

func encodeCall(xid, program, version, procedure uint32, args []byte) []byte {
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, xid)
	_ = xdr.WriteUint32(&buf, 0) // CALL
	_ = xdr.WriteUint32(&buf, 2) // rpcvers
	_ = xdr.WriteUint32(&buf, program)
	_ = xdr.WriteUint32(&buf, version)
	_ = xdr.WriteUint32(&buf, procedure)
	_ = xdr.WriteUint32(&buf, 0) // AUTH_NONE cred
	_ = xdr.WriteUint32(&buf, 0)
	_ = xdr.WriteUint32(&buf, 0) // AUTH_NONE verf
	_ = xdr.WriteUint32(&buf, 0)
	buf.Write(args)
	return buf.Bytes()
}

func (c *Client) call(addr string, program, version, procedure uint32, args []byte) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("callback: dial %s: %w", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))

	if err := writeRecord(conn, encodeCall(1, program, version, procedure, args)); err != nil {
		return nil, err
	}
	return readRecord(conn)
}

// Null pings a client's backchannel with CB_NULL, used to confirm the
// callback path is reachable before relying on it for CB_RECALL.
func (c *Client) Null(cb state.CallbackInfo) error {
	addr, err := parseUaddr(cb.NetID, cb.Addr)
	if err != nil {
		return err
	}
	_, err = c.call(addr, cb.Program, 1, procNull, nil)
	return err
}

// Recall asks a client to return the delegation named by stateid/fh. This
// server never issues delegations, so nothing currently calls Recall in
// practice; it exists so a future delegation feature has a working
// backchannel to build on rather than needing one invented from scratch.
func (c *Client) Recall(cb state.CallbackInfo, callbackIdent uint32, stateidOther [12]byte, stateidSeqid uint32, fh []byte, truncate bool) error {
	addr, err := parseUaddr(cb.NetID, cb.Addr)
	if err != nil {
		return err
	}

	var args bytes.Buffer
	_ = xdr.WriteXDROpaque(&args, nil) // tag
	_ = xdr.WriteUint32(&args, 0)      // minorversion
	_ = xdr.WriteUint32(&args, callbackIdent)
	_ = xdr.WriteUint32(&args, 1) // one operation: CB_RECALL
	_ = xdr.WriteUint32(&args, opCBRecall)
	_ = xdr.WriteUint32(&args, stateidSeqid)
	args.Write(stateidOther[:])
	_ = xdr.WriteBool(&args, truncate)
	_ = xdr.WriteXDROpaque(&args, fh)

	_, err = c.call(addr, cb.Program, 1, procCompound, args.Bytes())
	return err
}
