// Package portmap implements a minimal RPC portmapper (program 100000,
// version 2, RFC 1833) client: enough to ask a local rpcbind/portmapper for
// the TCP port a program/version pair is registered on. The NSM client uses
// this to find rpc.statd before sending SM_MON/SM_UNMON.
package portmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
)

const (
	Program = 100000
	Version = 2

	procGetPort = 3
)

// GetPort asks the portmapper at addr (host:111) which TCP port serves
// the given program/version, returning 0 if nothing is registered.
func GetPort(addr string, program, version uint32) (uint16, error) {
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return 0, fmt.Errorf("dial portmapper %s: %w", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))

	var args bytes.Buffer
	_ = xdr.WriteUint32(&args, program)
	_ = xdr.WriteUint32(&args, version)
	_ = xdr.WriteUint32(&args, 6) // IPPROTO_TCP
	_ = xdr.WriteUint32(&args, 0) // port, unused in the call

	call := encodeCall(1, Program, Version, procGetPort, args.Bytes())
	if err := sendRecord(conn, call); err != nil {
		return 0, err
	}
	reply, err := recvRecord(conn)
	if err != nil {
		return 0, err
	}
	port, err := decodeGetPortReply(reply)
	if err != nil {
		return 0, err
	}
	return port, nil
}

func encodeCall(xid, program, version, procedure uint32, args []byte) []byte {
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, xid)
	_ = xdr.WriteUint32(&buf, 0) // CALL
	_ = xdr.WriteUint32(&buf, 2) // rpcvers
	_ = xdr.WriteUint32(&buf, program)
	_ = xdr.WriteUint32(&buf, version)
	_ = xdr.WriteUint32(&buf, procedure)
	_ = xdr.WriteUint32(&buf, 0) // cred flavor AUTH_NONE
	_ = xdr.WriteUint32(&buf, 0) // cred length
	_ = xdr.WriteUint32(&buf, 0) // verf flavor AUTH_NONE
	_ = xdr.WriteUint32(&buf, 0) // verf length
	buf.Write(args)
	return buf.Bytes()
}

func sendRecord(conn net.Conn, data []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data))|0x80000000)
	if _, err := conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}

func recvRecord(conn net.Conn) ([]byte, error) {
	var hdr [4]byte
	if _, err := readFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(hdr[:]) & 0x7FFFFFFF
	if length > 1<<20 {
		return nil, fmt.Errorf("portmapper reply too large: %d bytes", length)
	}
	buf := make([]byte, length)
	if _, err := readFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func decodeGetPortReply(reply []byte) (uint16, error) {
	r := bytes.NewReader(reply)
	if _, err := xdr.DecodeUint32(r); err != nil { // xid
		return 0, err
	}
	msgType, err := xdr.DecodeUint32(r)
	if err != nil || msgType != 1 {
		return 0, fmt.Errorf("portmapper: not a reply")
	}
	replyState, err := xdr.DecodeUint32(r)
	if err != nil || replyState != 0 {
		return 0, fmt.Errorf("portmapper: call denied")
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // verf flavor
		return 0, err
	}
	if _, err := xdr.DecodeOpaque(r); err != nil { // verf body
		return 0, err
	}
	acceptStat, err := xdr.DecodeUint32(r)
	if err != nil || acceptStat != 0 {
		return 0, fmt.Errorf("portmapper: accept_stat %d", acceptStat)
	}
	port, err := xdr.DecodeUint32(r)
	if err != nil {
		return 0, err
	}
	return uint16(port), nil
}
