package state

import "time"

// DefaultLeaseSeconds is the lease period advertised to clients via
// FATTR4_LEASE_TIME and used to compute lease expiry. RFC 7530 Section 9.5
// leaves the value up to the implementation; 90 seconds matches common
// NFSv4 server defaults (Linux knfsd, for instance) closely enough for
// clients that hardcode assumptions about it.
const DefaultLeaseSeconds = 90

// GracePeriod is how long after a server restart RENEW/LOCK calls are
// rejected with NFS4ERR_GRACE unless they carry reclaim=true, giving
// clients that held locks before the restart a window to reclaim them
// before new, conflicting locks can be granted. RFC 7530 Section 9.6.
const GracePeriod = 2 * DefaultLeaseSeconds * time.Second

// lease tracks when a client's state must be considered expired absent a
// renewing operation (RENEW, or any other operation that touches the
// client's state, since RFC 7530 Section 9.5 permits implicit renewal).
type lease struct {
	expiresAt time.Time
}

func newLease(now time.Time) *lease {
	return &lease{expiresAt: now.Add(DefaultLeaseSeconds * time.Second)}
}

func (l *lease) renew(now time.Time) {
	l.expiresAt = now.Add(DefaultLeaseSeconds * time.Second)
}

func (l *lease) expired(now time.Time) bool {
	return now.After(l.expiresAt)
}
