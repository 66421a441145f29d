package state

import (
	"crypto/rand"
	"errors"
	"sync"
)

// ErrStaleClientID is returned when a clientid from SETCLIENTID_CONFIRM,
// RENEW, OPEN, or LOCK no longer names a known client record.
var ErrStaleClientID = errors.New("nfsv4: stale clientid")

// ErrBadStateid is returned when a stateid's "other" field names no
// known open, lock, or delegation state.
var ErrBadStateid = errors.New("nfsv4: bad stateid")

// ErrClientIDInUse is returned by SETCLIENTID when the nfs_client_id4
// string names an existing, still-leased client whose verifier differs
// from the one presented, per RFC 7530 Section 16.33.5's confirmation
// algorithm.
var ErrClientIDInUse = errors.New("nfsv4: clientid in use by another client with a different verifier")

// ErrGracePeriod is returned by Lock when a non-reclaim lock is requested
// before the post-restart grace period has elapsed.
var ErrGracePeriod = errors.New("nfsv4: server in grace period, reclaim required")

// ErrLocksHeld is returned by CloseOpen when the open being closed still
// has byte-range locks outstanding under it.
var ErrLocksHeld = errors.New("nfsv4: locks held")

// CallbackInfo is the client-supplied backchannel address used for
// CB_RECALL/CB_NULL, carried in the cb_client4 structure of SETCLIENTID.
type CallbackInfo struct {
	Program uint32
	NetID   string
	Addr    string
}

// SetClientIDResult is returned to the caller of SetClientID: the new
// clientid and the confirmation verifier the client must echo back in
// SETCLIENTID_CONFIRM.
type SetClientIDResult struct {
	ClientID        uint64
	ConfirmVerifier [8]byte
}

// ClientRecord tracks one NFSv4 client as identified by its nfs_client_id4
// (a client-supplied verifier plus an opaque identifier string, typically
// hostname plus boot time). RFC 7530 Section 9.1.1.
type ClientRecord struct {
	ClientID uint64

	// Verifier and ID together form the nfs_client_id4 the client presented
	// to SETCLIENTID; a client reconnecting after a crash presents a new
	// Verifier with the same ID, which lets the server detect the restart
	// and release the client's prior locks once confirmed.
	Verifier [8]byte
	ID       []byte

	Callback    CallbackInfo
	CallbackSec uint32 // callback_ident, echoed on CB_RECALL

	// ConfirmVerifier is the value the client must echo in
	// SETCLIENTID_CONFIRM for this record to become Confirmed.
	ConfirmVerifier [8]byte
	Confirmed       bool

	// Principal identifies which security principal set up this client
	// record, so that a later SETCLIENTID with the same nfs_client_id4 but
	// a different principal is rejected under the "callback_ident" rule
	// instead of silently taking over the existing record.
	Principal string

	// LeaseExpiry is managed by the lease package; kept here so the state
	// manager can find the owning client from an expiring lease entry.
	mu sync.Mutex
}

// VerifierMatches reports whether v equals this record's confirmed
// verifier — used to detect a client that already confirmed with the
// exact verifier it is presenting again (a harmless retransmission).
func (c *ClientRecord) VerifierMatches(v [8]byte) bool {
	return c.Verifier == v
}

// newVerifier generates a random 8-byte confirmation verifier. SETCLIENTID
// replies with this value; the client must echo it back unmodified in
// SETCLIENTID_CONFIRM, which both confirms the record and proves the
// client received the SETCLIENTID reply (guards against a lost reply
// causing the server to apply a confirm the client never saw).
func newVerifier() [8]byte {
	var v [8]byte
	_, _ = rand.Read(v[:])
	return v
}
