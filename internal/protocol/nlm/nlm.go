// Package nlm implements the Network Lock Manager (program 100021, version
// 4), NFSv3's companion byte-range locking protocol. It shares the same
// locktable.Table the NFSv4 state manager uses, so a lock taken by an NFSv3
// client via NLM is visible to (and conflicts with) one taken by an NFSv4
// client via LOCK, and vice versa.
//
// Grounded on nlm_server.{h,cpp}: this server runs synchronously and never
// queues blocked requests, so the MSG-suffixed async procedures apply their
// synchronous counterpart's side effect but never place the follow-up
// callback RPC a real client expects the result on — a blocked LOCK simply
// reports LCK_BLOCKED once and expects the client to retry, matching the
// original's behavior.
package nlm

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/tyonekura/nfsserver/internal/protocol/locktable"
	"github.com/tyonekura/nfsserver/internal/protocol/xdr"
)

const (
	Program = 100021
	Version = 4

	ProcNull      = 0
	ProcTest      = 1
	ProcLock      = 2
	ProcCancel    = 3
	ProcUnlock    = 4
	ProcGranted   = 5
	ProcTestMsg   = 6
	ProcLockMsg   = 7
	ProcCancelMsg = 8
	ProcUnlockMsg = 9
	ProcGrantedMsg = 10
	ProcFreeAll   = 23
)

// Status codes, per nlm4_stats.
const (
	StatGranted           = 0
	StatDenied            = 1
	StatDeniedNoLocks     = 2
	StatBlocked           = 3
	StatDeniedGracePeriod = 4
	StatDeadlock          = 5
)

// lock describes a decoded nlm4_lock argument.
type lock struct {
	callerName string
	fh         []byte
	oh         []byte
	svid       uint32
	offset     uint64
	length     uint64
}

func decodeLock(r *bytes.Reader) (lock, error) {
	var l lock
	var err error
	if l.callerName, err = xdr.DecodeString(r); err != nil {
		return l, err
	}
	if l.fh, err = xdr.DecodeOpaque(r); err != nil {
		return l, err
	}
	if l.oh, err = xdr.DecodeOpaque(r); err != nil {
		return l, err
	}
	if l.svid, err = xdr.DecodeUint32(r); err != nil {
		return l, err
	}
	if l.offset, err = xdr.DecodeUint64(r); err != nil {
		return l, err
	}
	if l.length, err = xdr.DecodeUint64(r); err != nil {
		return l, err
	}
	return l, nil
}

// key returns the lock table owner key for a caller/svid pair, matching
// make_nlm_key: NLM identifies a lock owner by caller host name plus the
// client-local system V ID, not by any credential the server can verify.
func (l lock) key() locktable.Owner {
	return fmt.Sprintf("nlm:%s:%d", l.callerName, l.svid)
}

// eofLength converts NLM's "0 means to EOF" convention to the lock table's
// math.MaxUint64 sentinel.
func eofLength(length uint64) uint64 {
	if length == 0 {
		return locktable.EOF
	}
	return length
}

// replyLength is the inverse of eofLength, for echoing a holder's range
// back in NLM4 wire format.
func replyLength(length uint64) uint64 {
	if length == locktable.EOF {
		return 0
	}
	return length
}

// Server implements the NLM procedures against a shared lock table. Mu must
// be the same mutex guarding Locks elsewhere (the NFSv4 state manager's, if
// one is running in the same process), since Locks has no internal
// synchronization of its own.
type Server struct {
	Locks *locktable.Table
	Mu    *sync.Mutex
}

// NewServer returns an NLM server sharing locks with mu-guarded table.
func NewServer(locks *locktable.Table, mu *sync.Mutex) *Server {
	return &Server{Locks: locks, Mu: mu}
}

func decodeCookie(r *bytes.Reader) ([]byte, error) {
	return xdr.DecodeOpaque(r)
}

func encodeCookie(buf *bytes.Buffer, cookie []byte) {
	_ = xdr.WriteXDROpaque(buf, cookie)
}

// Null implements NLM_NULL.
func (s *Server) Null([]byte) ([]byte, error) {
	return nil, nil
}

// Test implements NLM_TEST: reports whether the given range is available
// without acquiring it.
func (s *Server) Test(args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	cookie, err := decodeCookie(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode TEST cookie: %w", err)
	}
	exclusive, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode TEST exclusive: %w", err)
	}
	l, err := decodeLock(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode TEST lock: %w", err)
	}

	s.Mu.Lock()
	conflict, blocked := s.Locks.Test(string(l.fh), l.key(), exclusive, l.offset, eofLength(l.length))
	s.Mu.Unlock()

	var buf bytes.Buffer
	encodeCookie(&buf, cookie)
	if blocked {
		_ = xdr.WriteUint32(&buf, StatDenied)
		_ = xdr.WriteBool(&buf, conflict.Exclusive)
		_ = xdr.WriteUint32(&buf, 0) // svid unknown across protocols
		_ = xdr.WriteXDROpaque(&buf, nil)
		_ = xdr.WriteUint64(&buf, conflict.Offset)
		_ = xdr.WriteUint64(&buf, replyLength(conflict.Length))
		return buf.Bytes(), nil
	}
	_ = xdr.WriteUint32(&buf, StatGranted)
	return buf.Bytes(), nil
}

// Lock implements NLM_LOCK: attempts to acquire a byte-range lock, and
// reports LCK_BLOCKED (rather than actually queuing the request) when the
// caller indicated it is willing to block, since this server has no
// pending-request queue to grant against later.
func (s *Server) Lock(args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	cookie, err := decodeCookie(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode LOCK cookie: %w", err)
	}
	block, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode LOCK block: %w", err)
	}
	exclusive, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode LOCK exclusive: %w", err)
	}
	l, err := decodeLock(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode LOCK lock: %w", err)
	}
	if _, err := xdr.DecodeBool(r); err != nil { // reclaim, unused: this server has no reboot-grace bookkeeping for NLM
		return nil, fmt.Errorf("nlm: decode LOCK reclaim: %w", err)
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // state, unused: NSM state numbers aren't tracked per-lock
		return nil, fmt.Errorf("nlm: decode LOCK state: %w", err)
	}

	s.Mu.Lock()
	_, granted := s.Locks.Acquire(string(l.fh), l.key(), exclusive, l.offset, eofLength(l.length))
	s.Mu.Unlock()

	var buf bytes.Buffer
	encodeCookie(&buf, cookie)
	switch {
	case granted:
		_ = xdr.WriteUint32(&buf, StatGranted)
	case block:
		_ = xdr.WriteUint32(&buf, StatBlocked)
	default:
		_ = xdr.WriteUint32(&buf, StatDenied)
	}
	return buf.Bytes(), nil
}

// Cancel implements NLM_CANCEL. Since this server never queues a blocked
// LOCK request, there is nothing to cancel; it always reports success, the
// same as the original.
func (s *Server) Cancel(args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	cookie, err := decodeCookie(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode CANCEL cookie: %w", err)
	}
	if _, err := xdr.DecodeBool(r); err != nil { // block, discarded
		return nil, fmt.Errorf("nlm: decode CANCEL block: %w", err)
	}
	if _, err := xdr.DecodeBool(r); err != nil { // exclusive, discarded
		return nil, fmt.Errorf("nlm: decode CANCEL exclusive: %w", err)
	}
	if _, err := decodeLock(r); err != nil {
		return nil, fmt.Errorf("nlm: decode CANCEL lock: %w", err)
	}

	var buf bytes.Buffer
	encodeCookie(&buf, cookie)
	_ = xdr.WriteUint32(&buf, StatGranted)
	return buf.Bytes(), nil
}

// Unlock implements NLM_UNLOCK.
func (s *Server) Unlock(args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	cookie, err := decodeCookie(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode UNLOCK cookie: %w", err)
	}
	l, err := decodeLock(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode UNLOCK lock: %w", err)
	}

	s.Mu.Lock()
	s.Locks.Release(string(l.fh), l.key(), l.offset, eofLength(l.length))
	s.Mu.Unlock()

	var buf bytes.Buffer
	encodeCookie(&buf, cookie)
	_ = xdr.WriteUint32(&buf, StatGranted)
	return buf.Bytes(), nil
}

// FreeAll implements NLM_FREE_ALL: releases every lock held by a given
// caller host, used by clients recovering from a crash of their own and by
// this server's NSM notify handler when the roles are reversed.
func (s *Server) FreeAll(args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	name, err := xdr.DecodeString(r)
	if err != nil {
		return nil, fmt.Errorf("nlm: decode FREE_ALL name: %w", err)
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // state, discarded
		return nil, fmt.Errorf("nlm: decode FREE_ALL state: %w", err)
	}

	s.Mu.Lock()
	s.Locks.ReleaseAllMatching(fmt.Sprintf("nlm:%s:", name))
	s.Mu.Unlock()
	return nil, nil
}

// Dispatch routes an NLM procedure number to its handler, returning
// (nil, nil) for procedures this synchronous-only server does not support
// so that callers can distinguish "no reply body" from "unimplemented".
//
// The MSG-suffixed procedures (6-10) are the async twins of TEST/LOCK/
// CANCEL/UNLOCK/GRANTED: a real client sends one instead of the sync form
// when it wants the result delivered later as a separate callback RPC
// rather than in the reply to this call. This server has no pending-request
// queue and no outbound NLM client to place that callback, so it runs the
// same synchronous logic as the non-MSG procedure for its side effect on
// the lock table and reports the call itself handled with no reply body,
// same as NLM_NULL — a client relying on the callback for TEST/LOCK's
// outcome will not get one, only the LOCK/UNLOCK state change it requested.
func (s *Server) Dispatch(procedure uint32, args []byte) ([]byte, bool, error) {
	switch procedure {
	case ProcNull:
		reply, err := s.Null(args)
		return reply, true, err
	case ProcTest:
		reply, err := s.Test(args)
		return reply, true, err
	case ProcLock:
		reply, err := s.Lock(args)
		return reply, true, err
	case ProcCancel:
		reply, err := s.Cancel(args)
		return reply, true, err
	case ProcUnlock:
		reply, err := s.Unlock(args)
		return reply, true, err
	case ProcFreeAll:
		reply, err := s.FreeAll(args)
		return reply, true, err
	case ProcTestMsg:
		_, err := s.Test(args)
		return nil, true, err
	case ProcLockMsg:
		_, err := s.Lock(args)
		return nil, true, err
	case ProcCancelMsg:
		_, err := s.Cancel(args)
		return nil, true, err
	case ProcUnlockMsg:
		_, err := s.Unlock(args)
		return nil, true, err
	case ProcGrantedMsg:
		return nil, true, nil
	default:
		return nil, false, nil
	}
}
