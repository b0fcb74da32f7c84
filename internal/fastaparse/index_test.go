package fastaparse

import (
	"strings"
	"testing"
)

func scanAll(t *testing.T, data string) []Record {
	t.Helper()
	var out []Record
	if err := Scan(strings.NewReader(data), func(r Record) error {
		out = append(out, r)
		return nil
	}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return out
}

func TestScanBasic(t *testing.T) {
	data := ">seq1 some info\nACGT\nACGT\n>seq2\nTTTT\n"
	recs := scanAll(t, data)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != "seq1" || recs[0].Extra != "some info" {
		t.Errorf("record 0 = %+v", recs[0])
	}
	if recs[0].LogicalLength != 8 {
		t.Errorf("record 0 logical length = %d, want 8", recs[0].LogicalLength)
	}
	if recs[1].ID != "seq2" || recs[1].LogicalLength != 4 {
		t.Errorf("record 1 = %+v", recs[1])
	}
	if data[recs[0].PayloadStart:recs[0].PayloadEnd] != "ACGT\nACGT\n" {
		t.Errorf("record 0 payload = %q", data[recs[0].PayloadStart:recs[0].PayloadEnd])
	}
}

func TestScanNoTrailingNewline(t *testing.T) {
	data := ">only\nACGT"
	recs := scanAll(t, data)
	if len(recs) != 1 || recs[0].LogicalLength != 4 {
		t.Fatalf("recs = %+v", recs)
	}
}

func TestScanDuplicateID(t *testing.T) {
	data := ">seq1\nAAAA\n>seq1\nCCCC\n"
	err := Scan(strings.NewReader(data), func(Record) error { return nil })
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if _, ok := err.(*DuplicateIDError); !ok {
		t.Fatalf("got %T, want *DuplicateIDError", err)
	}
}

func TestScanInvalidID(t *testing.T) {
	data := ">bad/id\nAAAA\n"
	err := Scan(strings.NewReader(data), func(Record) error { return nil })
	if err == nil {
		t.Fatal("expected invalid id error")
	}
	if _, ok := err.(*InvalidIDError); !ok {
		t.Fatalf("got %T, want *InvalidIDError", err)
	}
}

func TestValidID(t *testing.T) {
	cases := []struct {
		id string
		ok bool
	}{
		{"seq1", true},
		{"", false},
		{"has/slash", false},
		{"has\x00nul", false},
		{"has space", true},
	}
	for _, c := range cases {
		ok, reason := ValidID(c.id)
		if ok != c.ok {
			t.Errorf("ValidID(%q) = %v (%s), want %v", c.id, ok, reason, c.ok)
		}
	}
}
