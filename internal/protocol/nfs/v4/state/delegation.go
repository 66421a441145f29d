package state

import "crypto/rand"

// Delegation tracks one outstanding OPEN delegation (RFC 7530 Section 9.4):
// a grant letting a client cache opens/locks/reads/writes against a file
// locally without round-tripping to the server, until either it returns
// the delegation voluntarily (DELEGRETURN) or the server recalls it
// because another client's OPEN conflicts with it.
type Delegation struct {
	Other      [12]byte
	FileHandle string
	ClientID   uint64
	Write      bool // false = OPEN_DELEGATE_READ, true = OPEN_DELEGATE_WRITE
}

// fileHeldBySingleClientLocked reports whether every open currently held
// on fh belongs to clientID, the precondition RegisterOpen uses to decide
// whether granting a delegation is even possible: a delegation only makes
// sense while its holder is the sole client with the file open. Callers
// must hold sm.mu.
func (sm *StateManager) fileHeldBySingleClientLocked(fh string, clientID uint64) bool {
	for _, of := range sm.opens {
		if of.FileHandle == fh && of.Owner.ClientID != clientID {
			return false
		}
	}
	return true
}

// grantDelegationLocked mints a delegation for fh to clientID if none is
// already outstanding on that file and clientID is its only opener. It
// returns nil, granting no delegation, otherwise — including when clientID
// already holds one, in which case the existing one is returned unchanged.
// Callers must hold sm.mu.
func (sm *StateManager) grantDelegationLocked(fh string, clientID uint64, access uint32) *Delegation {
	if existing, ok := sm.delegByFile[fh]; ok {
		if existing.ClientID == clientID {
			return existing
		}
		return nil
	}
	if !sm.fileHeldBySingleClientLocked(fh, clientID) {
		return nil
	}

	sm.nextDelegOther++
	var other [12]byte
	_, _ = rand.Read(other[:4])
	other[4] = byte(sm.nextDelegOther)
	other[5] = byte(sm.nextDelegOther >> 8)
	other[6] = byte(sm.nextDelegOther >> 16)
	other[7] = byte(sm.nextDelegOther >> 24)
	other[11] = 0xD0 // distinguishes delegation "other" values from open ones sharing the same rand+counter scheme

	d := &Delegation{
		Other:      other,
		FileHandle: fh,
		ClientID:   clientID,
		Write:      access == OPEN4_SHARE_ACCESS_WRITE || access == OPEN4_SHARE_ACCESS_BOTH,
	}
	sm.delegations[other] = d
	sm.delegByFile[fh] = d
	return d
}

// ConflictingDelegation returns the delegation currently outstanding on fh
// if it belongs to a client other than clientID, regardless of whether it
// actually conflicts with the access that client's OPEN is requesting: a
// read delegation only conflicts with a write OPEN, while a write
// delegation conflicts with any OPEN. Callers decide whether the requested
// access makes the returned delegation an actual conflict worth recalling.
func (sm *StateManager) ConflictingDelegation(fh string, clientID uint64) (*Delegation, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	d, ok := sm.delegByFile[fh]
	if !ok || d.ClientID == clientID {
		return nil, false
	}
	return d, true
}

// RevokeDelegation drops delegation state for fh. Called once a CB_RECALL
// has been sent for it, since this server does not wait for the client's
// DELEGRETURN before granting the conflicting OPEN that triggered the
// recall.
func (sm *StateManager) RevokeDelegation(fh string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if d, ok := sm.delegByFile[fh]; ok {
		delete(sm.delegations, d.Other)
		delete(sm.delegByFile, fh)
	}
}

// DelegReturn implements DELEGRETURN: releases the delegation named by
// stateid.
func (sm *StateManager) DelegReturn(st [12]byte) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	d, ok := sm.delegations[st]
	if !ok {
		return ErrBadStateid
	}
	delete(sm.delegations, d.Other)
	delete(sm.delegByFile, d.FileHandle)
	return nil
}

// PurgeDelegations implements DELEGPURGE: drops every delegation still
// held by clientID. This server keeps no delegation state across its own
// restarts, so anything found here predates whatever crash the client is
// recovering from and is simply dropped rather than reclaimed.
func (sm *StateManager) PurgeDelegations(clientID uint64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for other, d := range sm.delegations {
		if d.ClientID == clientID {
			delete(sm.delegations, other)
			delete(sm.delegByFile, d.FileHandle)
		}
	}
}
