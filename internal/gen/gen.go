// Package gen renders the three synthetic catalog-summary files: infos.csv,
// infos.txt, and labels.txt (§6).
package gen

import (
	"fmt"
	"strings"

	"github.com/delehef/fusta/internal/catalog"
)

// InfosCSV renders one header row ("name<sep>info<sep>length") followed by
// one row per fragment. An empty catalog renders to zero bytes.
func InfosCSV(frags []catalog.Fragment, sep rune) []byte {
	if len(frags) == 0 {
		return nil
	}
	var b strings.Builder
	s := string(sep)
	b.WriteString("name" + s + "info" + s + "length\n")
	for _, f := range frags {
		b.WriteString(f.ID)
		b.WriteString(s)
		b.WriteString(f.Extra)
		b.WriteString(s)
		fmt.Fprintf(&b, "%d\n", f.LogicalLength)
	}
	return []byte(b.String())
}

// InfosTxt renders a fixed-width aligned table with columns Name, Info,
// Length. Column widths are cosmetic only (§9 Open Question). An empty
// catalog renders to zero bytes.
func InfosTxt(frags []catalog.Fragment) []byte {
	if len(frags) == 0 {
		return nil
	}
	nameW, infoW, lenW := len("Name"), len("Info"), len("Length")
	for _, f := range frags {
		if len(f.ID) > nameW {
			nameW = len(f.ID)
		}
		if len(f.Extra) > infoW {
			infoW = len(f.Extra)
		}
		if n := len(fmt.Sprint(f.LogicalLength)); n > lenW {
			lenW = n
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %-*s  %*s\n", nameW, "Name", infoW, "Info", lenW, "Length")
	for _, f := range frags {
		fmt.Fprintf(&b, "%-*s  %-*s  %*d\n", nameW, f.ID, infoW, f.Extra, lenW, f.LogicalLength)
	}
	return []byte(b.String())
}

// LabelsTxt renders one line per fragment containing the original header
// (without the leading '>').
func LabelsTxt(frags []catalog.Fragment) []byte {
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.ID)
		if f.Extra != "" {
			b.WriteByte(' ')
			b.WriteString(f.Extra)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
