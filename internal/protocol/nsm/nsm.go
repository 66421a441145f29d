// Package nsm implements the client half of the Network Status Monitor
// (program 100024): registering interest in a peer's reboot status with the
// local rpc.statd, and handling the SM_NOTIFY callback statd sends when that
// peer comes back up, by releasing every NLM lock it held.
//
// Grounded on nsm_client.{h,cpp}: this server plays the same role statd's
// monitored application does, minus the two-way monitoring statd itself
// would need (this server never reboots mid-lock the way a client might).
package nsm

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tyonekura/nfsserver/internal/logger"
	"github.com/tyonekura/nfsserver/internal/protocol/locktable"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
	"github.com/tyonekura/nfsserver/pkg/portmap"
)

const (
	Program = 100024
	Version = 1

	ProcNull       = 0
	ProcStat       = 1
	ProcMon        = 2
	ProcUnmon      = 3
	ProcUnmonAll   = 4
	ProcSimuCrash  = 5
	ProcNotify     = 6

	dialTimeout = 2 * time.Second
)

// Client monitors NLM clients via the local statd so that NLM locks are
// released automatically when a client reboots without an explicit UNLOCK.
type Client struct {
	locks      *locktable.Table
	mu         *sync.Mutex // shared with the NLM handler and NFSv4 state manager
	statdAddr  string      // host:port of the local rpc.statd's TCP listener, resolved lazily
	portmapper string      // host:111

	monitoredMu sync.Mutex
	monitored   map[string]bool

	// stateNumbers tracks the last SM_NOTIFY state number seen per monitored
	// host, keyed by mon_name. NSM state numbers are odd while a host is up
	// and increment past the next even number on every reboot (RFC-less but
	// universal statd convention); a notify carrying a state number no
	// higher than the last one recorded is a stale retransmission, not a
	// new reboot, and must not release locks a second time.
	stateNumbers map[string]uint32

	nextXID uint32
}

// NewClient returns an NSM client sharing locks with the NLM server.
// portmapperAddr is typically "127.0.0.1:111".
func NewClient(locks *locktable.Table, mu *sync.Mutex, portmapperAddr string) *Client {
	return &Client{
		locks:        locks,
		mu:           mu,
		portmapper:   portmapperAddr,
		monitored:    make(map[string]bool),
		stateNumbers: make(map[string]uint32),
		nextXID:      1,
	}
}

func (c *Client) dialStatd() (net.Conn, error) {
	port, err := portmap.GetPort(c.portmapper, Program, Version)
	if err != nil || port == 0 {
		return nil, fmt.Errorf("nsm: rpc.statd not registered with portmapper: %w", err)
	}
	host, _, _ := net.SplitHostPort(c.portmapper)
	if host == "" {
		host = "127.0.0.1"
	}
	return net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), dialTimeout)
}

func (c *Client) call(procedure uint32, body []byte) ([]byte, error) {
	conn, err := c.dialStatd()
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))

	c.nextXID++
	var call bytes.Buffer
	_ = xdr.WriteUint32(&call, c.nextXID)
	_ = xdr.WriteUint32(&call, 0) // CALL
	_ = xdr.WriteUint32(&call, 2) // rpcvers
	_ = xdr.WriteUint32(&call, Program)
	_ = xdr.WriteUint32(&call, Version)
	_ = xdr.WriteUint32(&call, procedure)
	_ = xdr.WriteUint32(&call, 0) // AUTH_NONE cred
	_ = xdr.WriteUint32(&call, 0)
	_ = xdr.WriteUint32(&call, 0) // AUTH_NONE verf
	_ = xdr.WriteUint32(&call, 0)
	call.Write(body)

	if err := writeRecord(conn, call.Bytes()); err != nil {
		return nil, err
	}
	return readRecord(conn)
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
	if _, err := readFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	length := (uint32(hdr[0])<<24 | uint32(hdr[1])<<16 | uint32(hdr[2])<<8 | uint32(hdr[3])) & 0x7FFFFFFF
	if length > 1<<20 {
		return nil, fmt.Errorf("nsm: reply too large: %d", length)
	}
	buf := make([]byte, length)
	_, err := readFull(conn, buf)
	return buf, err
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

func acceptedOK(reply []byte) bool {
	r := bytes.NewReader(reply)
	if _, err := xdr.DecodeUint32(r); err != nil {
		return false
	}
	msgType, err := xdr.DecodeUint32(r)
	if err != nil || msgType != 1 {
		return false
	}
	replyState, err := xdr.DecodeUint32(r)
	if err != nil || replyState != 0 {
		return false
	}
	if _, err := xdr.DecodeUint32(r); err != nil {
		return false
	}
	if _, err := xdr.DecodeOpaque(r); err != nil {
		return false
	}
	acceptStat, err := xdr.DecodeUint32(r)
	return err == nil && acceptStat == 0
}

// Monitor registers interest in clientName's reboot status, asking statd to
// call this server's ProcNotify when it reboots. myProg/myVers/myProc name
// the RPC program/version/procedure statd should invoke for the callback —
// here, this server's own NSM listener (Program, Version, ProcNotify).
func (c *Client) Monitor(clientName, myName string, myProg, myVers, myProc uint32) bool {
	var body bytes.Buffer
	_ = xdr.WriteString(&body, clientName)
	_ = xdr.WriteString(&body, myName)
	_ = xdr.WriteUint32(&body, myProg)
	_ = xdr.WriteUint32(&body, myVers)
	_ = xdr.WriteUint32(&body, myProc)
	body.Write(make([]byte, 16)) // priv, unused

	reply, err := c.call(ProcMon, body.Bytes())
	if err != nil || !acceptedOK(reply) {
		logger.Warn("NSM: failed to monitor %s: %v", clientName, err)
		return false
	}
	c.monitoredMu.Lock()
	c.monitored[clientName] = true
	c.monitoredMu.Unlock()
	return true
}

// Unmonitor stops monitoring a single client.
func (c *Client) Unmonitor(clientName, myName string) bool {
	var body bytes.Buffer
	_ = xdr.WriteString(&body, clientName)
	_ = xdr.WriteString(&body, myName)
	_ = xdr.WriteUint32(&body, 0)
	_ = xdr.WriteUint32(&body, 0)
	_ = xdr.WriteUint32(&body, 0)

	reply, err := c.call(ProcUnmon, body.Bytes())
	ok := err == nil && acceptedOK(reply)
	c.monitoredMu.Lock()
	delete(c.monitored, clientName)
	c.monitoredMu.Unlock()
	return ok
}

// UnmonitorAll stops monitoring every client, used during server shutdown.
func (c *Client) UnmonitorAll(myName string) bool {
	var body bytes.Buffer
	_ = xdr.WriteString(&body, myName)
	_ = xdr.WriteUint32(&body, 0)
	_ = xdr.WriteUint32(&body, 0)
	_ = xdr.WriteUint32(&body, 0)

	reply, err := c.call(ProcUnmonAll, body.Bytes())
	ok := err == nil && acceptedOK(reply)
	c.monitoredMu.Lock()
	c.monitored = make(map[string]bool)
	c.monitoredMu.Unlock()
	return ok
}

// IsMonitored reports whether clientName is currently being monitored.
func (c *Client) IsMonitored(clientName string) bool {
	c.monitoredMu.Lock()
	defer c.monitoredMu.Unlock()
	return c.monitored[clientName]
}

// HandleNotify implements the server side of SM_NOTIFY: statd calls this
// back when a monitored client reboots. Every NLM lock that client held is
// released, since a reboot means the client has forgotten it ever held them.
func (c *Client) HandleNotify(clientName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := fmt.Sprintf("nlm:%s:", clientName)
	c.locks.ReleaseAllMatching(prefix)
	c.monitoredMu.Lock()
	delete(c.monitored, clientName)
	c.monitoredMu.Unlock()
	logger.Info("NSM: released locks for rebooted client %s", clientName)
}

// StateNumber returns the last SM_NOTIFY state number recorded for
// clientName, or 0 if it has never notified this server.
func (c *Client) StateNumber(clientName string) uint32 {
	c.monitoredMu.Lock()
	defer c.monitoredMu.Unlock()
	return c.stateNumbers[clientName]
}

// ServeNotify decodes an incoming SM_NOTIFY procedure call and applies it.
// mon_name is the rebooted client's name; state is the monotonically
// increasing counter the client's statd bumps on every reboot. A state no
// higher than the last one recorded for that host is a duplicate delivery
// of a notify already handled and is ignored, so a retransmitted SM_NOTIFY
// cannot flap a client's locks a second time.
func (c *Client) ServeNotify(args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	name, err := xdr.DecodeString(r)
	if err != nil {
		return nil, fmt.Errorf("nsm: decode SM_NOTIFY mon_name: %w", err)
	}
	state, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("nsm: decode SM_NOTIFY state: %w", err)
	}

	c.monitoredMu.Lock()
	last := c.stateNumbers[name]
	stale := state <= last
	if !stale {
		c.stateNumbers[name] = state
	}
	c.monitoredMu.Unlock()
	if stale {
		logger.Debug("NSM: ignoring stale SM_NOTIFY from %s (state %d <= %d)", name, state, last)
		return nil, nil
	}

	c.HandleNotify(name)
	return nil, nil
}
