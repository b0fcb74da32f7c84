package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/ferrors"
)

type fakeInserter struct {
	nextIno   uint64
	fragments map[string]catalog.Fragment
	resident  map[string][]byte
}

func newFakeInserter() *fakeInserter {
	return &fakeInserter{nextIno: 100, fragments: map[string]catalog.Fragment{}, resident: map[string][]byte{}}
}

func (f *fakeInserter) AllocateInodeTriple() (fa, seq, get uint64) {
	fa, seq, get = f.nextIno, f.nextIno+1, f.nextIno+2
	f.nextIno += 3
	return
}

func (f *fakeInserter) Insert(_ context.Context, frag catalog.Fragment, allowOverwrite bool) error {
	if _, exists := f.fragments[frag.ID]; exists && !allowOverwrite {
		return ferrors.Newf(ferrors.Exists, "fragment id already exists: %q", frag.ID)
	}
	f.fragments[frag.ID] = frag
	return nil
}

func (f *fakeInserter) AddResident(id string, payload []byte) {
	f.resident[id] = payload
}

func TestParseBasic(t *testing.T) {
	buf := []byte(">seq1 desc\nACGT\nACGT\n>seq2\nTTTT\n")
	parsed, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("got %d parsed records, want 2", len(parsed))
	}
	if parsed[0].ID != "seq1" || parsed[0].Extra != "desc" {
		t.Errorf("record 0 = %+v", parsed[0])
	}
	if !bytes.Equal(parsed[0].Payload, []byte("ACGT\nACGT\n")) {
		t.Errorf("record 0 payload = %q", parsed[0].Payload)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse([]byte("not fasta at all")); err == nil {
		t.Fatal("expected error for buffer with no records")
	}
}

func TestParseInvalidID(t *testing.T) {
	if _, err := Parse([]byte(">bad/id\nACGT\n")); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestIngestInsertsAllFragments(t *testing.T) {
	ins := newFakeInserter()
	buf := []byte(">seq1\nACGT\n>seq2\nTTTTGG\n")
	n, err := Ingest(context.Background(), ins, buf, false)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("Ingest returned %d, want 2", n)
	}
	if len(ins.fragments) != 2 {
		t.Fatalf("got %d fragments inserted, want 2", len(ins.fragments))
	}
	f1 := ins.fragments["seq1"]
	if !f1.Synthetic || f1.LogicalLength != 4 {
		t.Errorf("seq1 fragment = %+v", f1)
	}
	if !bytes.Equal(ins.resident["seq2"], []byte("TTTTGG\n")) {
		t.Errorf("seq2 resident payload = %q", ins.resident["seq2"])
	}
}

func TestIngestDuplicateAgainstExistingWithoutOverwrite(t *testing.T) {
	ins := newFakeInserter()
	ins.fragments["seq1"] = catalog.Fragment{ID: "seq1"}

	buf := []byte(">seq1\nACGT\n")
	_, err := Ingest(context.Background(), ins, buf, false)
	if err == nil {
		t.Fatal("expected error inserting duplicate id without overwrite")
	}
	if !ferrors.Is(err, ferrors.Exists) {
		t.Errorf("error kind not Exists: %v", err)
	}
}

func TestIngestDuplicateAgainstExistingWithOverwrite(t *testing.T) {
	ins := newFakeInserter()
	ins.fragments["seq1"] = catalog.Fragment{ID: "seq1", Extra: "old"}

	buf := []byte(">seq1\nACGT\n")
	n, err := Ingest(context.Background(), ins, buf, true)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("Ingest returned %d, want 1", n)
	}
	if ins.fragments["seq1"].Extra == "old" {
		t.Error("fragment was not overwritten")
	}
}

func TestIngestMalformedInputInsertsNothing(t *testing.T) {
	ins := newFakeInserter()
	_, err := Ingest(context.Background(), ins, []byte("garbage"), false)
	if err == nil {
		t.Fatal("expected error for malformed input")
	}
	if len(ins.fragments) != 0 {
		t.Errorf("got %d fragments inserted for malformed input, want 0", len(ins.fragments))
	}
}
