package state

import "testing"

// TestOpenOwnerSeqidMonotonicity covers Invariant 5: an open-owner-sequenced
// operation must advance the seqid by exactly one, replay the cached reply
// on an exact retransmission, and reject anything else with ErrBadSeqid.
func TestOpenOwnerSeqidMonotonicity(t *testing.T) {
	oo := newOpenOwner(1, []byte("owner-a"))

	// First call from a fresh owner is accepted at whatever seqid the
	// client starts counting from.
	replay, _, _, err := oo.CheckSeqid(1, []byte("open-args-1"))
	if err != nil || replay {
		t.Fatalf("first call should be accepted, not a replay: replay=%v err=%v", replay, err)
	}
	oo.RecordReply(1, []byte("open-args-1"), 0, []byte("reply-1"))

	// Replaying the same seqid with identical args returns the cached reply.
	replay, status, reply, err := oo.CheckSeqid(1, []byte("open-args-1"))
	if err != nil {
		t.Fatalf("exact retransmission should not error: %v", err)
	}
	if !replay {
		t.Fatal("exact retransmission should be reported as a replay")
	}
	if string(reply) != "reply-1" || status != 0 {
		t.Fatalf("replay should return the cached reply, got status=%d reply=%q", status, reply)
	}

	// The same seqid with different args is a protocol violation, not a
	// replay — the client reused a seqid for a different call.
	if _, _, _, err := oo.CheckSeqid(1, []byte("different-args")); err != ErrBadSeqid {
		t.Fatalf("same seqid with different args should be ErrBadSeqid, got %v", err)
	}

	// The next seqid (Seqid+1) advances normally.
	replay, _, _, err = oo.CheckSeqid(2, []byte("open-args-2"))
	if err != nil || replay {
		t.Fatalf("seqid+1 should be accepted as a new call: replay=%v err=%v", replay, err)
	}
	oo.RecordReply(2, []byte("open-args-2"), 0, []byte("reply-2"))

	// Skipping ahead is rejected.
	if _, _, _, err := oo.CheckSeqid(4, []byte("open-args-4")); err != ErrBadSeqid {
		t.Fatalf("skipping a seqid should be ErrBadSeqid, got %v", err)
	}

	// Going backward (older than the last two seen) is rejected.
	if _, _, _, err := oo.CheckSeqid(1, []byte("open-args-1")); err != ErrBadSeqid {
		t.Fatalf("reusing a stale seqid should be ErrBadSeqid, got %v", err)
	}
}
