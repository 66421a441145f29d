package locktable

import "testing"

func rangesEqual(a, b []Range) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAcquireConflictAndCoexistence(t *testing.T) {
	table := New()

	if _, granted := table.Acquire("fh1", "alice", true, 0, 100); !granted {
		t.Fatal("first exclusive lock should be granted")
	}

	c, granted := table.Acquire("fh1", "bob", false, 50, 10)
	if granted {
		t.Fatal("overlapping shared lock against an exclusive holder should be denied")
	}
	if c.Owner != "alice" || c.Offset != 0 || c.Length != 100 {
		t.Fatalf("unexpected conflict reported: %+v", c)
	}

	if _, granted := table.Acquire("fh1", "alice", true, 200, 50); !granted {
		t.Fatal("non-overlapping range for the same owner should be granted")
	}

	if _, granted := table.Acquire("fh2", "bob", true, 0, 100); !granted {
		t.Fatal("same range on a different file should not conflict")
	}
}

func TestAcquireSharedLocksCoexist(t *testing.T) {
	table := New()
	if _, granted := table.Acquire("fh1", "alice", false, 0, 100); !granted {
		t.Fatal("first shared lock should be granted")
	}
	if _, granted := table.Acquire("fh1", "bob", false, 0, 100); !granted {
		t.Fatal("two shared locks on the same range should coexist")
	}
}

// TestReleaseSplitsRange covers Invariant 6: releasing the middle of a held
// range must split it into surviving left/right remainders rather than
// dropping the whole range or leaving the released middle still locked.
func TestReleaseSplitsRange(t *testing.T) {
	table := New()
	if _, granted := table.Acquire("fh1", "alice", true, 0, 100); !granted {
		t.Fatal("setup lock should be granted")
	}

	table.Release("fh1", "alice", 40, 20) // punch out [40, 60)

	e := table.findEntry("fh1", "alice")
	if e == nil {
		t.Fatal("owner should still hold surviving ranges")
	}
	want := []Range{
		{Offset: 0, Length: 40, Exclusive: true},
		{Offset: 60, Length: 40, Exclusive: true},
	}
	if !rangesEqual(e.ranges, want) {
		t.Fatalf("expected split ranges %+v, got %+v", want, e.ranges)
	}

	// The released middle must no longer conflict with a new lock request.
	if _, granted := table.Acquire("fh1", "bob", true, 40, 20); !granted {
		t.Fatal("released middle range should be free to acquire")
	}
}

func TestReleaseToEOF(t *testing.T) {
	table := New()
	if _, granted := table.Acquire("fh1", "alice", true, 0, EOF); !granted {
		t.Fatal("setup EOF lock should be granted")
	}
	table.Release("fh1", "alice", 50, EOF)

	e := table.findEntry("fh1", "alice")
	if e == nil || len(e.ranges) != 1 {
		t.Fatalf("expected a single surviving left range, got %+v", e)
	}
	if e.ranges[0] != (Range{Offset: 0, Length: 50, Exclusive: true}) {
		t.Fatalf("unexpected surviving range: %+v", e.ranges[0])
	}
}

func TestReleaseWholeRangeDropsEntry(t *testing.T) {
	table := New()
	table.Acquire("fh1", "alice", true, 0, 100)
	table.Release("fh1", "alice", 0, 100)

	if table.HasLocks("fh1", "alice") {
		t.Fatal("owner should have no locks left after releasing the whole range")
	}
}

func TestHasLocks(t *testing.T) {
	table := New()
	if table.HasLocks("fh1", "alice") {
		t.Fatal("HasLocks should be false before any lock is acquired")
	}
	table.Acquire("fh1", "alice", false, 0, 10)
	if !table.HasLocks("fh1", "alice") {
		t.Fatal("HasLocks should be true once a range is held")
	}
	if table.HasLocks("fh1", "bob") {
		t.Fatal("HasLocks should not report another owner's locks")
	}
}

func TestReleaseAllForFile(t *testing.T) {
	table := New()
	table.Acquire("fh1", "alice", true, 0, 10)
	table.Acquire("fh2", "alice", true, 0, 10)

	table.ReleaseAllForFile("fh1", "alice")

	if table.HasLocks("fh1", "alice") {
		t.Fatal("locks on fh1 should be gone")
	}
	if !table.HasLocks("fh2", "alice") {
		t.Fatal("locks on fh2 should be untouched")
	}
}

func TestReleaseAllMatchingPrefix(t *testing.T) {
	table := New()
	table.Acquire("fh1", "nlm:host-a:1", true, 0, 10)
	table.Acquire("fh1", "nlm:host-b:1", true, 20, 10)

	table.ReleaseAllMatching("nlm:host-a:")

	if table.HasLocks("fh1", "nlm:host-a:1") {
		t.Fatal("matching-prefix owner's locks should be released")
	}
	if !table.HasLocks("fh1", "nlm:host-b:1") {
		t.Fatal("non-matching owner's locks should survive")
	}
}
