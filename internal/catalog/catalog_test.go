package catalog

import (
	"context"
	"testing"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func insertTestFragment(t *testing.T, c *Catalog, id string) Fragment {
	t.Helper()
	fa, seq, get := c.AllocateInodeTriple()
	f := Fragment{ID: id, Extra: "info", PayloadStart: 0, PayloadEnd: 4, LogicalLength: 4,
		InoFasta: fa, InoSeq: seq, InoGet: get}
	if err := c.Insert(context.Background(), f, false); err != nil {
		t.Fatalf("Insert(%q): %v", id, err)
	}
	return f
}

func TestInsertAndGetByID(t *testing.T) {
	c := newTestCatalog(t)
	insertTestFragment(t, c, "seq1")

	got, ok, err := c.GetActiveByID(context.Background(), "seq1")
	if err != nil {
		t.Fatalf("GetActiveByID: %v", err)
	}
	if !ok {
		t.Fatal("fragment not found")
	}
	if got.Extra != "info" || got.LogicalLength != 4 {
		t.Errorf("got %+v", got)
	}
}

func TestInsertDuplicateWithoutOverwrite(t *testing.T) {
	c := newTestCatalog(t)
	insertTestFragment(t, c, "seq1")

	fa, seq, get := c.AllocateInodeTriple()
	f := Fragment{ID: "seq1", InoFasta: fa, InoSeq: seq, InoGet: get}
	if err := c.Insert(context.Background(), f, false); err == nil {
		t.Fatal("expected error inserting duplicate id without overwrite")
	}
}

func TestInsertDuplicateWithOverwrite(t *testing.T) {
	c := newTestCatalog(t)
	insertTestFragment(t, c, "seq1")

	fa, seq, get := c.AllocateInodeTriple()
	f := Fragment{ID: "seq1", Extra: "new", LogicalLength: 9, InoFasta: fa, InoSeq: seq, InoGet: get}
	if err := c.Insert(context.Background(), f, true); err != nil {
		t.Fatalf("Insert with overwrite: %v", err)
	}
	got, ok, err := c.GetActiveByID(context.Background(), "seq1")
	if err != nil || !ok {
		t.Fatalf("GetActiveByID after overwrite: %v, %v", got, err)
	}
	if got.Extra != "new" {
		t.Errorf("got %+v, want overwritten fragment", got)
	}
}

func TestTombstone(t *testing.T) {
	c := newTestCatalog(t)
	insertTestFragment(t, c, "seq1")
	if err := c.Tombstone(context.Background(), "seq1"); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}
	_, ok, err := c.GetActiveByID(context.Background(), "seq1")
	if err != nil {
		t.Fatalf("GetActiveByID: %v", err)
	}
	if ok {
		t.Fatal("tombstoned fragment still active")
	}
}

func TestRename(t *testing.T) {
	c := newTestCatalog(t)
	insertTestFragment(t, c, "seq1")
	if err := c.Rename(context.Background(), "seq1", "seq2", false); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok, _ := c.GetActiveByID(context.Background(), "seq1"); ok {
		t.Fatal("old id still active after rename")
	}
	if _, ok, _ := c.GetActiveByID(context.Background(), "seq2"); !ok {
		t.Fatal("new id not active after rename")
	}
}

func TestIterActiveOrderAndTombstones(t *testing.T) {
	c := newTestCatalog(t)
	insertTestFragment(t, c, "a")
	insertTestFragment(t, c, "b")
	insertTestFragment(t, c, "c")
	if err := c.Tombstone(context.Background(), "b"); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}
	frags, err := c.IterActive(context.Background())
	if err != nil {
		t.Fatalf("IterActive: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("got %d active fragments, want 2", len(frags))
	}
	if frags[0].ID != "a" || frags[1].ID != "c" {
		t.Errorf("order = %q, %q, want a, c", frags[0].ID, frags[1].ID)
	}
}

func TestGenerationBumpsOnMutation(t *testing.T) {
	c := newTestCatalog(t)
	g0 := c.Generation()
	insertTestFragment(t, c, "a")
	if c.Generation() == g0 {
		t.Error("Generation did not advance after Insert")
	}
	g1 := c.Generation()
	if err := c.SetPending(context.Background(), "a", true); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	if c.Generation() == g1 {
		t.Error("Generation did not advance after SetPending")
	}
}

func TestAllocateInodeTripleDisjoint(t *testing.T) {
	c := newTestCatalog(t)
	fa1, seq1, get1 := c.AllocateInodeTriple()
	fa2, seq2, get2 := c.AllocateInodeTriple()
	seen := map[uint64]bool{}
	for _, ino := range []uint64{fa1, seq1, get1, fa2, seq2, get2} {
		if seen[ino] {
			t.Fatalf("duplicate inode %d across two allocations", ino)
		}
		seen[ino] = true
	}
}
