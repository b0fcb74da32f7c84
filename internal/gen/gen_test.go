package gen

import (
	"strings"
	"testing"

	"github.com/delehef/fusta/internal/catalog"
)

func testFrags() []catalog.Fragment {
	return []catalog.Fragment{
		{ID: "seq1", Extra: "first sequence", LogicalLength: 8},
		{ID: "longname2", Extra: "", LogicalLength: 120},
	}
}

func TestInfosCSV(t *testing.T) {
	out := string(InfosCSV(testFrags(), ','))
	want := "name,info,length\n" +
		"seq1,first sequence,8\n" +
		"longname2,,120\n"
	if out != want {
		t.Errorf("InfosCSV =\n%q\nwant\n%q", out, want)
	}
}

func TestInfosCSVCustomSeparator(t *testing.T) {
	out := string(InfosCSV(testFrags(), '\t'))
	if !strings.Contains(out, "seq1\tfirst sequence\t8\n") {
		t.Errorf("InfosCSV with tab separator = %q", out)
	}
}

func TestInfosTxtAligned(t *testing.T) {
	out := InfosTxt(testFrags())
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for _, l := range lines {
		if !strings.Contains(l, "Length") && !strings.HasSuffix(l, "8") && !strings.HasSuffix(l, "120") {
			t.Errorf("unexpected line shape: %q", l)
		}
	}
	if len(lines[1]) != len(lines[2]) {
		t.Errorf("columns not aligned: %q vs %q", lines[1], lines[2])
	}
}

func TestLabelsTxt(t *testing.T) {
	out := string(LabelsTxt(testFrags()))
	want := "seq1 first sequence\nlongname2\n"
	if out != want {
		t.Errorf("LabelsTxt =\n%q\nwant\n%q", out, want)
	}
}

func TestGenEmpty(t *testing.T) {
	if len(InfosCSV(nil, ',')) != 0 {
		t.Error("InfosCSV(nil) should be empty, matching an empty source's size-0 infos.csv")
	}
	if len(InfosTxt(nil)) != 0 {
		t.Error("InfosTxt(nil) should be empty, matching an empty source's size-0 infos.txt")
	}
	if len(LabelsTxt(nil)) != 0 {
		t.Error("LabelsTxt(nil) should be empty")
	}
}
