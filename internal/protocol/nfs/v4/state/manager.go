// Package state implements the NFSv4 server-side state machine: client
// records and leases, open-owner sequencing and open-file state, and
// byte-range locking built on the shared lock table also used by NLM.
package state

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/tyonekura/nfsserver/internal/protocol/locktable"
	"github.com/tyonekura/nfsserver/internal/protocol/nfs/v4/types"
)

// StateManager owns every piece of mutable NFSv4 state: clients, leases,
// open owners and their open files, lock owners, and the byte-range lock
// table. A single mutex guards all of it, since granting a lock and
// updating open-state bookkeeping must happen atomically together — the
// same reasoning that keeps locktable.Table unsynchronized internally.
type StateManager struct {
	mu sync.Mutex

	clients      map[uint64]*ClientRecord
	clientsByKey map[string]*ClientRecord // key: verifier+id, for SETCLIENTID lookups
	leases       map[uint64]*lease
	nextClientID uint64

	openOwners map[string]*OpenOwner // key: fmt.Sprintf("%d:%x", clientID, owner)
	lockOwners map[string]*OpenOwner // lock_owner4 sequencing reuses OpenOwner's seqid machinery
	opens      map[[12]byte]*OpenFileState
	nextOther  uint64

	delegations    map[[12]byte]*Delegation
	delegByFile    map[string]*Delegation // at most one outstanding delegation per file
	nextDelegOther uint64

	Locks *locktable.Table

	startedAt  time.Time
	graceUntil time.Time
}

// NewStateManager creates an empty state manager and starts its grace
// period, during which LOCK/OPEN with reclaim=false are rejected with
// NFS4ERR_GRACE so that clients reclaiming locks from before a server
// restart get first chance at them.
func NewStateManager() *StateManager {
	now := time.Now()
	return &StateManager{
		clients:      make(map[uint64]*ClientRecord),
		clientsByKey: make(map[string]*ClientRecord),
		leases:       make(map[uint64]*lease),
		openOwners:   make(map[string]*OpenOwner),
		lockOwners:   make(map[string]*OpenOwner),
		opens:        make(map[[12]byte]*OpenFileState),
		delegations:  make(map[[12]byte]*Delegation),
		delegByFile:  make(map[string]*Delegation),
		Locks:        locktable.New(),
		startedAt:    now,
		graceUntil:   now.Add(GracePeriod),
	}
}

// LockMutex returns the mutex guarding Locks, so that NLM and NSM can share
// the same lock table under the same mutex this manager already uses for
// its own open/lock bookkeeping.
func (sm *StateManager) LockMutex() *sync.Mutex {
	return &sm.mu
}

// InGracePeriod reports whether reclaim-only mode is still in effect.
func (sm *StateManager) InGracePeriod() bool {
	return time.Now().Before(sm.graceUntil)
}

func clientKey(id []byte, verifier [8]byte) string {
	return fmt.Sprintf("%x:%x", verifier, id)
}

// SetClientID implements the SETCLIENTID half of RFC 7530 Section 16.33:
// it either creates a brand-new client record, returns the existing
// record's confirm verifier unchanged (retransmission of an identical
// request before confirmation), or rejects a conflicting claim to an
// already-confirmed id with a different verifier.
func (sm *StateManager) SetClientID(verifier [8]byte, id []byte, cb CallbackInfo, callbackIdent uint32, principal string) (SetClientIDResult, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := clientKey(id, verifier)
	if existing, ok := sm.clientsByKey[key]; ok {
		if existing.Confirmed {
			return SetClientIDResult{ClientID: existing.ClientID, ConfirmVerifier: existing.ConfirmVerifier}, nil
		}
		// Unconfirmed retransmission: hand back the same pending confirm
		// verifier rather than minting a new clientid every retry.
		return SetClientIDResult{ClientID: existing.ClientID, ConfirmVerifier: existing.ConfirmVerifier}, nil
	}

	// A different verifier presented for an id that already has a
	// confirmed record means either a client restart (new boot
	// verifier) or another client colliding on the same id string. RFC
	// 7530 resolves this by creating a new, separate unconfirmed record;
	// the old one is displaced only once this one confirms.
	sm.nextClientID++
	rec := &ClientRecord{
		ClientID:        sm.nextClientID,
		Verifier:        verifier,
		ID:              append([]byte(nil), id...),
		Callback:        cb,
		CallbackSec:     callbackIdent,
		ConfirmVerifier: newVerifier(),
		Principal:       principal,
	}
	sm.clients[rec.ClientID] = rec
	sm.clientsByKey[key] = rec
	return SetClientIDResult{ClientID: rec.ClientID, ConfirmVerifier: rec.ConfirmVerifier}, nil
}

// ConfirmClientID implements SETCLIENTID_CONFIRM. Confirming a clientid
// releases all state held by any prior, now-superseded record that shared
// the same nfs_client_id4 string (RFC 7530 Section 16.34.5's "boot
// verifier changed" case), since a confirmed reconnect means the client
// restarted and cannot possibly still hold its old locks.
func (sm *StateManager) ConfirmClientID(clientID uint64, confirmVerifier [8]byte) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	rec, ok := sm.clients[clientID]
	if !ok {
		return ErrStaleClientID
	}
	if rec.ConfirmVerifier != confirmVerifier {
		return ErrStaleClientID
	}

	for key, other := range sm.clientsByKey {
		if other != rec && string(other.ID) == string(rec.ID) {
			sm.releaseClientLocked(other)
			delete(sm.clients, other.ClientID)
			delete(sm.clientsByKey, key)
		}
	}

	rec.Confirmed = true
	sm.leases[clientID] = newLease(time.Now())
	return nil
}

// GetClientCallback returns the backchannel address a confirmed client
// registered via SETCLIENTID, for callers that want to probe or use it
// (e.g. a CB_NULL reachability check after SETCLIENTID_CONFIRM).
func (sm *StateManager) GetClientCallback(clientID uint64) (CallbackInfo, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	rec, ok := sm.clients[clientID]
	if !ok {
		return CallbackInfo{}, false
	}
	return rec.Callback, true
}

// Renew implements RENEW: refresh the client's lease, failing with
// ErrStaleClientID if the client record no longer exists (evicted after
// lease expiry) or ErrExpired if the lease already lapsed.
func (sm *StateManager) Renew(clientID uint64) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.renewLocked(clientID)
}

func (sm *StateManager) renewLocked(clientID uint64) error {
	if _, ok := sm.clients[clientID]; !ok {
		return ErrStaleClientID
	}
	l, ok := sm.leases[clientID]
	if !ok {
		return ErrStaleClientID
	}
	l.renew(time.Now())
	return nil
}

// getOpenOwnerLocked returns the OpenOwner for (clientID, owner), creating
// it on first use. Callers must hold sm.mu.
func (sm *StateManager) getOpenOwnerLocked(clientID uint64, owner []byte) *OpenOwner {
	key := fmt.Sprintf("%d:%x", clientID, owner)
	oo, ok := sm.openOwners[key]
	if !ok {
		oo = newOpenOwner(clientID, owner)
		sm.openOwners[key] = oo
	}
	return oo
}

func (sm *StateManager) getLockOwnerLocked(clientID uint64, owner []byte) *OpenOwner {
	key := fmt.Sprintf("%d:%x", clientID, owner)
	lo, ok := sm.lockOwners[key]
	if !ok {
		lo = newOpenOwner(clientID, owner)
		sm.lockOwners[key] = lo
	}
	return lo
}

// OpenParams bundles the inputs OPEN needs beyond owner/seqid sequencing.
type OpenParams struct {
	ClientID   uint64
	Owner      []byte
	Seqid      uint32
	Args       []byte // raw request bytes for replay comparison
	FileHandle string
	Access     uint32
	Deny       uint32
}

// RegisterOpen performs the seqid-sequencing and share-reservation
// bookkeeping side of OPEN. It does not touch the filesystem — callers
// create or look up the file first, then call this to mint a stateid, or
// discover a replay and skip re-creating anything.
//
// On success, needsConfirm is true exactly when this is the owner's
// first-ever open under its current clientid (RFC 7530 Section 16.18.5),
// in which case the caller must require OPEN_CONFIRM before honoring
// reads/writes against the returned stateid. deleg is non-nil when the
// open also earned a delegation (RFC 7530 Section 9.4): granted whenever
// p.ClientID ends up the sole client holding fh open.
func (sm *StateManager) RegisterOpen(p OpenParams) (st types.Stateid4, needsConfirm bool, isReplay bool, deleg *Delegation, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.clients[p.ClientID]; !ok {
		return types.Stateid4{}, false, false, nil, ErrStaleClientID
	}

	oo := sm.getOpenOwnerLocked(p.ClientID, p.Owner)
	replay, cachedStatus, cachedReply, seqErr := oo.CheckSeqid(p.Seqid, p.Args)
	if seqErr != nil {
		return types.Stateid4{}, false, false, nil, seqErr
	}
	if replay {
		_ = cachedStatus
		_ = cachedReply
		// Caller distinguishes a true replay by isReplay and must re-derive
		// the stateid from the owner's existing open entry for this handle.
		for _, of := range oo.Opens[p.FileHandle] {
			var other [12]byte
			copy(other[:], of.Other[:])
			d := sm.delegByFile[p.FileHandle]
			if d != nil && d.ClientID != p.ClientID {
				d = nil
			}
			return types.Stateid4{Seqid: of.StateSeqid, Other: other}, !of.Confirmed, true, d, nil
		}
		return types.Stateid4{}, false, true, nil, nil
	}

	var other [12]byte
	sm.nextOther++
	_, _ = rand.Read(other[:4])
	other[4] = byte(sm.nextOther)
	other[5] = byte(sm.nextOther >> 8)
	other[6] = byte(sm.nextOther >> 16)
	other[7] = byte(sm.nextOther >> 24)

	of := &OpenFileState{
		Other:      other,
		StateSeqid: 1,
		Owner:      oo,
		FileHandle: p.FileHandle,
		Access:     p.Access,
		Deny:       p.Deny,
		Confirmed:  false,
	}
	needsConfirm = len(oo.Opens) == 0 && allOpensConfirmed(oo)
	oo.Opens[p.FileHandle] = append(oo.Opens[p.FileHandle], of)
	sm.opens[other] = of

	stateid := types.Stateid4{Seqid: 1, Other: other}
	oo.RecordReply(p.Seqid, p.Args, types.NFS4_OK, nil)
	deleg = sm.grantDelegationLocked(p.FileHandle, p.ClientID, p.Access)
	return stateid, needsConfirm, false, deleg, nil
}

func allOpensConfirmed(oo *OpenOwner) bool {
	for _, opens := range oo.Opens {
		for _, of := range opens {
			if !of.Confirmed {
				return false
			}
		}
	}
	return true
}

// ConfirmOpen implements OPEN_CONFIRM: marks the open identified by
// stateid as confirmed, after validating the open-owner's seqid.
func (sm *StateManager) ConfirmOpen(st types.Stateid4, seqid uint32, args []byte) (types.Stateid4, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	of, ok := sm.opens[st.Other]
	if !ok {
		return types.Stateid4{}, fmt.Errorf("%w: unknown stateid", ErrStaleClientID)
	}
	replay, _, _, err := of.Owner.CheckSeqid(seqid, args)
	if err != nil {
		return types.Stateid4{}, err
	}
	if !replay {
		of.Confirmed = true
		of.StateSeqid++
		of.Owner.RecordReply(seqid, args, types.NFS4_OK, nil)
	}
	return types.Stateid4{Seqid: of.StateSeqid, Other: of.Other}, nil
}

// LookupOpen resolves a stateid to its OpenFileState, validating the seqid
// loosely (OPEN4 stateids only need Other to match; Seqid is advisory for
// READ/WRITE per RFC 7530 Section 8.2.3 — "the server currently does
// nothing with the seqid value in other than OPEN, LOCK, LOCKU, and
// OPEN_DOWNGRADE").
func (sm *StateManager) LookupOpen(st types.Stateid4) (*OpenFileState, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	of, ok := sm.opens[st.Other]
	if !ok {
		return nil, ErrBadStateid
	}
	return of, nil
}

// DowngradeOpen implements OPEN_DOWNGRADE: narrows an open's access/deny
// bits and bumps the stateid's sequence number.
func (sm *StateManager) DowngradeOpen(st types.Stateid4, seqid uint32, args []byte, access, deny uint32) (types.Stateid4, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	of, ok := sm.opens[st.Other]
	if !ok {
		return types.Stateid4{}, fmt.Errorf("%w: unknown stateid", ErrStaleClientID)
	}
	replay, _, _, err := of.Owner.CheckSeqid(seqid, args)
	if err != nil {
		return types.Stateid4{}, err
	}
	if !replay {
		of.Access = access
		of.Deny = deny
		of.StateSeqid++
		of.Owner.RecordReply(seqid, args, types.NFS4_OK, nil)
	}
	return types.Stateid4{Seqid: of.StateSeqid, Other: of.Other}, nil
}

// CloseOpen implements CLOSE: drops the open state and releases any
// byte-range locks the owner held on this file through it. Per RFC 7530
// Section 14.2.4, CLOSE fails with NFS4ERR_LOCKS_HELD if any lock range is
// still outstanding under this open — the client must LOCKU first.
func (sm *StateManager) CloseOpen(st types.Stateid4, seqid uint32, args []byte) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	of, ok := sm.opens[st.Other]
	if !ok {
		return ErrStaleClientID
	}
	replay, _, _, err := of.Owner.CheckSeqid(seqid, args)
	if err != nil {
		return err
	}
	if replay {
		return nil
	}
	lockOwner := lockOwnerKey(of.Owner.ClientID, of.Owner.Owner)
	if sm.Locks.HasLocks(of.FileHandle, lockOwner) {
		return ErrLocksHeld
	}
	delete(sm.opens, st.Other)
	opens := of.Owner.Opens[of.FileHandle]
	for i, cand := range opens {
		if cand == of {
			of.Owner.Opens[of.FileHandle] = append(opens[:i], opens[i+1:]...)
			break
		}
	}
	sm.Locks.ReleaseAllForFile(of.FileHandle, lockOwner)
	of.Owner.RecordReply(seqid, args, types.NFS4_OK, nil)
	return nil
}

func lockOwnerKey(clientID uint64, owner []byte) string {
	return fmt.Sprintf("nfsv4:%d:%x", clientID, owner)
}

// LockParams bundles a LOCK request's fields. NewLockOwner/OpenSeqid/
// OpenArgs are only meaningful when the locker4 union's new-owner arm was
// used: RFC 7530 Section 14.2.6 requires that arm to also consume the
// backing open's own seqid, independent of the lock owner's seqid.
type LockParams struct {
	ClientID    uint64
	OpenStateid types.Stateid4
	LockOwner   []byte
	Seqid       uint32
	Args        []byte
	Exclusive   bool
	Offset      uint64
	Length      uint64
	Reclaim     bool

	NewLockOwner bool
	OpenSeqid    uint32
	OpenArgs     []byte
}

// Lock implements LOCK: validates the open the lock is based on, checks
// the grace period, enforces the lock owner's (and, for a new lock owner,
// the backing open's) seqid monotonicity, and attempts to acquire the
// range from the shared lock table.
func (sm *StateManager) Lock(p LockParams) (conflict locktable.Conflict, granted bool, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.InGracePeriod() && !p.Reclaim {
		return locktable.Conflict{}, false, ErrGracePeriod
	}

	of, ok := sm.opens[p.OpenStateid.Other]
	if !ok {
		return locktable.Conflict{}, false, ErrStaleClientID
	}

	if p.NewLockOwner {
		replay, _, _, oerr := of.Owner.CheckSeqid(p.OpenSeqid, p.OpenArgs)
		if oerr != nil {
			return locktable.Conflict{}, false, oerr
		}
		if !replay {
			of.Owner.RecordReply(p.OpenSeqid, p.OpenArgs, types.NFS4_OK, nil)
		}
	}

	lo := sm.getLockOwnerLocked(p.ClientID, p.LockOwner)
	replay, cachedStatus, _, lerr := lo.CheckSeqid(p.Seqid, p.Args)
	if lerr != nil {
		return locktable.Conflict{}, false, lerr
	}
	if replay {
		return locktable.Conflict{}, cachedStatus == types.NFS4_OK, nil
	}

	owner := lockOwnerKey(p.ClientID, p.LockOwner)
	c, granted := sm.Locks.Acquire(of.FileHandle, owner, p.Exclusive, p.Offset, p.Length)
	status := uint32(types.NFS4_OK)
	if !granted {
		status = types.NFS4ERR_DENIED
	}
	lo.RecordReply(p.Seqid, p.Args, status, nil)
	return c, granted, nil
}

// LockT implements LOCKT: a non-mutating conflict test, not tied to any
// open stateid or seqid sequencing (RFC 7530 Section 14.2.7 excludes
// LOCKT from seqid checking entirely).
func (sm *StateManager) LockT(fileHandle string, clientID uint64, lockOwner []byte, exclusive bool, offset, length uint64) (locktable.Conflict, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	owner := lockOwnerKey(clientID, lockOwner)
	return sm.Locks.Test(fileHandle, owner, exclusive, offset, length)
}

// Unlock implements LOCKU: checks the lock owner's seqid, then releases a
// range regardless of whether any part of it was actually held (RFC 7530
// Section 14.2.3 treats this as success either way).
func (sm *StateManager) Unlock(fileHandle string, clientID uint64, lockOwner []byte, seqid uint32, args []byte, offset, length uint64) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	lo := sm.getLockOwnerLocked(clientID, lockOwner)
	replay, _, _, err := lo.CheckSeqid(seqid, args)
	if err != nil {
		return err
	}
	if !replay {
		owner := lockOwnerKey(clientID, lockOwner)
		sm.Locks.Release(fileHandle, owner, offset, length)
		lo.RecordReply(seqid, args, types.NFS4_OK, nil)
	}
	return nil
}

// ReleaseLockOwner implements RELEASE_LOCKOWNER: drops every lock range
// held under lockOwner across every file, plus its seqid-tracking entry,
// per RFC 7530 Section 14.2.11.
func (sm *StateManager) ReleaseLockOwner(clientID uint64, lockOwner []byte) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.Locks.ReleaseAll(lockOwnerKey(clientID, lockOwner))
	delete(sm.lockOwners, fmt.Sprintf("%d:%x", clientID, lockOwner))
}

// releaseClientLocked drops every lock and open held by rec. Callers must
// hold sm.mu.
func (sm *StateManager) releaseClientLocked(rec *ClientRecord) {
	prefix := fmt.Sprintf("nfsv4:%d:", rec.ClientID)
	sm.Locks.ReleaseAllMatching(prefix)
	for key, oo := range sm.openOwners {
		if oo.ClientID == rec.ClientID {
			for _, opens := range oo.Opens {
				for _, of := range opens {
					delete(sm.opens, of.Other)
				}
			}
			delete(sm.openOwners, key)
		}
	}
	for key, lo := range sm.lockOwners {
		if lo.ClientID == rec.ClientID {
			delete(sm.lockOwners, key)
		}
	}
	for other, d := range sm.delegations {
		if d.ClientID == rec.ClientID {
			delete(sm.delegations, other)
			delete(sm.delegByFile, d.FileHandle)
		}
	}
	delete(sm.leases, rec.ClientID)
}

// ReapExpiredClients releases state for every client whose lease has
// expired without renewal, returning how many were reaped. Intended to be
// called periodically by the adapter's housekeeping loop.
func (sm *StateManager) ReapExpiredClients() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	var expired []uint64
	for id, l := range sm.leases {
		if l.expired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		rec := sm.clients[id]
		if rec == nil {
			continue
		}
		sm.releaseClientLocked(rec)
		delete(sm.clients, id)
		for key, other := range sm.clientsByKey {
			if other == rec {
				delete(sm.clientsByKey, key)
			}
		}
	}
	return len(expired)
}
