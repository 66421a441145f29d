// Package locktable implements a protocol-agnostic byte-range lock table.
//
// It has no internal synchronization: callers (the NFSv4 state manager and
// the NLM server) share a single mutex that guards both the table and their
// own state, since granting a lock and updating open/lock-owner bookkeeping
// must be atomic together.
package locktable

import (
	"math"
	"strings"
)

// EOF is the sentinel length meaning "to end of file".
const EOF = math.MaxUint64

// Owner identifies the holder of a lock range. NFSv4 uses a lock_owner4
// encoding; NLM uses "nlm:<caller_name>:<svid>".
type Owner = string

// Range describes one byte-range lock.
type Range struct {
	Offset    uint64
	Length    uint64 // EOF (math.MaxUint64) means "to end of file"
	Exclusive bool
}

// Conflict describes an existing lock that blocks a requested range.
type Conflict struct {
	Offset    uint64
	Length    uint64
	Exclusive bool
	Owner     Owner
}

type entry struct {
	owner  Owner
	fh     string // opaque file handle, compared by value
	ranges []Range
}

// Table is the shared byte-range lock table. Zero value is ready to use.
// Not safe for concurrent use without external synchronization.
type Table struct {
	entries []entry
}

// New returns an empty lock table.
func New() *Table {
	return &Table{}
}

func rangesOverlap(o1, l1, o2, l2 uint64) bool {
	end1 := o1 + l1
	if l1 == EOF {
		end1 = math.MaxUint64
	}
	end2 := o2 + l2
	if l2 == EOF {
		end2 = math.MaxUint64
	}
	return o1 < end2 && o2 < end1
}

func (t *Table) findEntry(fh string, owner Owner) *entry {
	for i := range t.entries {
		if t.entries[i].fh == fh && t.entries[i].owner == owner {
			return &t.entries[i]
		}
	}
	return nil
}

// Test checks whether a requested range conflicts with an existing lock held
// by a different owner. It does not mutate the table. Two read (shared)
// locks never conflict with each other.
func (t *Table) Test(fh string, requester Owner, exclusive bool, offset, length uint64) (Conflict, bool) {
	for _, e := range t.entries {
		if e.fh != fh || e.owner == requester {
			continue
		}
		for _, r := range e.ranges {
			if !exclusive && !r.Exclusive {
				continue
			}
			if rangesOverlap(offset, length, r.Offset, r.Length) {
				return Conflict{Offset: r.Offset, Length: r.Length, Exclusive: r.Exclusive, Owner: e.owner}, true
			}
		}
	}
	return Conflict{}, false
}

// Acquire attempts to grant a new lock range to owner, returning the
// conflicting lock and false if the range is already held incompatibly.
func (t *Table) Acquire(fh string, owner Owner, exclusive bool, offset, length uint64) (Conflict, bool) {
	if c, conflict := t.Test(fh, owner, exclusive, offset, length); conflict {
		return c, false
	}
	e := t.findEntry(fh, owner)
	if e == nil {
		t.entries = append(t.entries, entry{owner: owner, fh: fh})
		e = &t.entries[len(t.entries)-1]
	}
	e.ranges = append(e.ranges, Range{Offset: offset, Length: length, Exclusive: exclusive})
	return Conflict{}, true
}

// Release removes [offset, offset+length) from owner's locks on fh, splitting
// any range that only partially overlaps into its surviving left/right parts.
func (t *Table) Release(fh string, owner Owner, offset, length uint64) {
	e := t.findEntry(fh, owner)
	if e == nil {
		return
	}
	removeRange(e, offset, length)
	t.cleanupEmpty()
}

func removeRange(e *entry, offset, length uint64) {
	remEnd := offset + length
	if length == EOF {
		remEnd = math.MaxUint64
	}

	newRanges := make([]Range, 0, len(e.ranges))
	for _, r := range e.ranges {
		rEnd := r.Offset + r.Length
		if r.Length == EOF {
			rEnd = math.MaxUint64
		}

		if !rangesOverlap(offset, length, r.Offset, r.Length) {
			newRanges = append(newRanges, r)
			continue
		}

		if r.Offset < offset {
			left := r
			left.Length = offset - r.Offset
			newRanges = append(newRanges, left)
		}

		if rEnd > remEnd && remEnd != math.MaxUint64 {
			right := r
			right.Offset = remEnd
			if r.Length == EOF {
				right.Length = EOF
			} else {
				right.Length = rEnd - remEnd
			}
			newRanges = append(newRanges, right)
		}
	}
	e.ranges = newRanges
}

func (t *Table) cleanupEmpty() {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if len(e.ranges) > 0 {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}

// ReleaseAll drops every lock held by owner, across all files.
func (t *Table) ReleaseAll(owner Owner) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.owner != owner {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}

// ReleaseAllMatching drops every lock whose owner key starts with prefix.
// Used by NLM's FREE_ALL and by NSM's SM_NOTIFY crash-recovery handler,
// both of which key NLM locks as "nlm:<host>:<svid>".
func (t *Table) ReleaseAllMatching(prefix string) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if !strings.HasPrefix(e.owner, prefix) {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}

// ReleaseAllForFile drops every lock held by owner on a single file.
func (t *Table) ReleaseAllForFile(fh string, owner Owner) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if !(e.fh == fh && e.owner == owner) {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}

// HasLocks reports whether owner holds any ranges on fh.
func (t *Table) HasLocks(fh string, owner Owner) bool {
	e := t.findEntry(fh, owner)
	return e != nil && len(e.ranges) > 0
}
