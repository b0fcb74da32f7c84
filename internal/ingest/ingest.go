// Package ingest implements the Append Ingestor (§4.7): parsing a FASTA
// file staged through append/ into new catalog fragments.
package ingest

import (
	"bytes"
	"context"

	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/fastaparse"
	"github.com/delehef/fusta/internal/ferrors"
	"github.com/delehef/fusta/internal/overlay"
)

// Parsed is one fragment extracted from a staged append/ buffer, with its
// payload bytes copied out (Resident-backed, per §4.7) rather than offsets
// into the staging buffer, since the staging buffer is discarded after
// ingestion.
type Parsed struct {
	ID      string
	Extra   string
	Payload []byte // raw payload bytes, embedded newlines preserved
}

// Parse scans buf as a FASTA stream and returns every fragment found. It
// enforces the same id uniqueness/filename-safety rules as mount-time
// indexing (§4.1), scoped to this buffer; checking ids against the live
// catalog is the caller's job; so is the allow-overwrite policy.
func Parse(buf []byte) ([]Parsed, error) {
	var out []Parsed
	err := fastaparse.Scan(bytes.NewReader(buf), func(r fastaparse.Record) error {
		payload := append([]byte(nil), buf[r.PayloadStart:r.PayloadEnd]...)
		out = append(out, Parsed{ID: r.ID, Extra: r.Extra, Payload: payload})
		return nil
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.InvalidArgument, "parse staged fasta", err)
	}
	if len(out) == 0 {
		return nil, ferrors.New(ferrors.InvalidArgument, "no fasta records found in staged file")
	}
	return out, nil
}

// Inserter is the subset of catalog+backing operations ingestion needs,
// kept narrow so callers (internal/vfs) can supply their own glue under the
// coarse state lock.
type Inserter interface {
	AllocateInodeTriple() (fa, seq, get uint64)
	Insert(ctx context.Context, f catalog.Fragment, allowOverwrite bool) error
	AddResident(id string, payload []byte)
}

// Ingest parses buf and inserts every fragment it contains into cat/store
// under the allow-overwrite policy. The whole buffer is parsed first, so a
// parse error (malformed input, invalid id, id repeated within buf) inserts
// nothing. Inserts then happen one record at a time: if the insert of
// record i fails (e.g. its id collides with a live fragment and overwrite is
// off), records 0..i-1 stay inserted and i is returned with the error.
func Ingest(ctx context.Context, ins Inserter, buf []byte, allowOverwrite bool) (int, error) {
	parsed, err := Parse(buf)
	if err != nil {
		return 0, err
	}
	for i, p := range parsed {
		fa, seq, get := ins.AllocateInodeTriple()
		f := catalog.Fragment{
			ID:            p.ID,
			Extra:         p.Extra,
			LogicalLength: overlay.LogicalLength(p.Payload),
			InoFasta:      fa,
			InoSeq:        seq,
			InoGet:        get,
			Synthetic:     true,
		}
		if err := ins.Insert(ctx, f, allowOverwrite); err != nil {
			return i, err
		}
		ins.AddResident(p.ID, parsed[i].Payload)
	}
	return len(parsed), nil
}
