package commit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/delehef/fusta/internal/backing"
	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/overlay"
)

func TestWriteUntouchedAndPendingAndSynthetic(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.fasta")
	srcData := ">seq1 keep\nACGT\nACGT\n"
	if err := os.WriteFile(srcPath, []byte(srcData), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cat, err := catalog.Open(ctx)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	defer cat.Close()

	pStart := int64(len(">seq1 keep\n"))
	pEnd := pStart + int64(len("ACGT\nACGT\n"))

	fa1, seq1, get1 := cat.AllocateInodeTriple()
	untouched := catalog.Fragment{
		ID: "seq1", Extra: "keep", PayloadStart: pStart, PayloadEnd: pEnd,
		LogicalLength: 8, InoFasta: fa1, InoSeq: seq1, InoGet: get1,
	}
	if err := cat.Insert(ctx, untouched, false); err != nil {
		t.Fatalf("Insert untouched: %v", err)
	}

	fa2, seq2, get2 := cat.AllocateInodeTriple()
	pending := catalog.Fragment{
		ID: "seq2", InoFasta: fa2, InoSeq: seq2, InoGet: get2, Pending: true,
	}
	if err := cat.Insert(ctx, pending, false); err != nil {
		t.Fatalf("Insert pending: %v", err)
	}

	fa3, seq3, get3 := cat.AllocateInodeTriple()
	synthetic := catalog.Fragment{
		ID: "seq3", InoFasta: fa3, InoSeq: seq3, InoGet: get3, Synthetic: true,
	}
	if err := cat.Insert(ctx, synthetic, false); err != nil {
		t.Fatalf("Insert synthetic: %v", err)
	}

	mapped, err := backing.NewMapped(srcPath)
	if err != nil {
		t.Fatalf("NewMapped: %v", err)
	}
	defer mapped.Close()
	store := backing.NewStore(mapped)
	store.AddResident("seq3", []byte("GGGGCCCC\n"))

	ov, err := overlay.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("overlay.New: %v", err)
	}
	if _, err := ov.EnsureBuffer("seq2", func() ([]byte, error) { return []byte("TTTTTTTT"), nil }); err != nil {
		t.Fatalf("EnsureBuffer: %v", err)
	}

	destPath := filepath.Join(dir, "out.fasta")
	if err := Write(ctx, destPath, cat, store, ov); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	want := ">seq1 keep\nACGT\nACGT\n" +
		">seq2\n" + string(overlay.Wrap([]byte("TTTTTTTT"), wrapWidth)) +
		">seq3\n" + string(overlay.Wrap([]byte("GGGGCCCC"), wrapWidth))
	if string(out) != want {
		t.Errorf("commit output =\n%q\nwant\n%q", out, want)
	}
}

func TestWriteSkipsTombstonedFragments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.fasta")
	if err := os.WriteFile(srcPath, []byte(">seq1\nACGT\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cat, err := catalog.Open(ctx)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	defer cat.Close()

	fa, seq, get := cat.AllocateInodeTriple()
	f := catalog.Fragment{ID: "seq1", PayloadStart: int64(len(">seq1\n")), PayloadEnd: int64(len(">seq1\nACGT\n")),
		LogicalLength: 4, InoFasta: fa, InoSeq: seq, InoGet: get}
	if err := cat.Insert(ctx, f, false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := cat.Tombstone(ctx, "seq1"); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}

	mapped, err := backing.NewMapped(srcPath)
	if err != nil {
		t.Fatalf("NewMapped: %v", err)
	}
	defer mapped.Close()
	store := backing.NewStore(mapped)
	ov, err := overlay.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("overlay.New: %v", err)
	}

	destPath := filepath.Join(dir, "out.fasta")
	if err := Write(ctx, destPath, cat, store, ov); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("commit output = %q, want empty", out)
	}
}
