// Package fastaparse implements the single streaming pass over a FASTA byte
// stream that produces a catalog of fragments with byte offsets, grounded on
// the record-scanning shape of kortschak-ins/cmd/ins/fragment.go (split)
// adapted to track raw byte ranges instead of building biogo sequence
// objects, since the Virtual Tree needs offsets, not materialized payloads.
package fastaparse

import (
	"bufio"
	"fmt"
	"io"
)

// Record is one parsed `>`-delimited FASTA fragment, with half-open byte
// ranges relative to the start of the scanned stream.
type Record struct {
	ID            string
	Extra         string
	HeaderStart   int64
	HeaderEnd     int64
	PayloadStart  int64
	PayloadEnd    int64
	LogicalLength int64
}

// DuplicateIDError is returned when an id is already present in the stream
// being scanned, per §4.1 ("duplicated ... mount fails with a diagnostic
// naming the offending id").
type DuplicateIDError struct{ ID string }

func (e *DuplicateIDError) Error() string { return fmt.Sprintf("duplicate fragment id: %q", e.ID) }

// InvalidIDError is returned when an id is empty or uses a byte disallowed
// in a POSIX filename.
type InvalidIDError struct {
	ID     string
	Reason string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid fragment id %q: %s", e.ID, e.Reason)
}

// ValidID reports whether id is non-empty and contains no '/', NUL, or other
// ASCII control characters — the set disallowed in a POSIX filename per
// §4.1/§3.
func ValidID(id string) (bool, string) {
	if id == "" {
		return false, "empty id"
	}
	for _, b := range []byte(id) {
		if b == '/' || b == 0 || b < 0x20 || b == 0x7f {
			return false, fmt.Sprintf("disallowed byte 0x%02x", b)
		}
	}
	return true, ""
}

// splitHeader splits a header line (without the leading '>' and without the
// trailing LF) on the first ASCII whitespace byte into id and extra.
func splitHeader(line []byte) (id, extra string) {
	for i, b := range line {
		if b == ' ' || b == '\t' || b == '\r' || b == '\v' || b == '\f' {
			return string(line[:i]), string(line[i+1:])
		}
	}
	return string(line), ""
}

// Scan performs the single streaming pass described in §4.1. onRecord is
// invoked once per parsed fragment, in file order. Scan enforces id
// uniqueness and filename-safety against ids seen earlier in this same
// stream, returning a *DuplicateIDError or *InvalidIDError on violation;
// callers that need uniqueness against a pre-existing catalog (append
// ingestion) re-check returned records themselves.
func Scan(r io.Reader, onRecord func(Record) error) error {
	br := bufio.NewReaderSize(r, 1<<20)
	seen := make(map[string]bool)

	var off int64
	var haveHeader bool
	var hdrStart, hdrEnd int64
	var id, extra string
	var payloadStart int64
	var logicalLen int64
	var payloadEnd int64

	flush := func() error {
		if !haveHeader {
			return nil
		}
		if ok, reason := ValidID(id); !ok {
			return &InvalidIDError{ID: id, Reason: reason}
		}
		if seen[id] {
			return &DuplicateIDError{ID: id}
		}
		seen[id] = true
		return onRecord(Record{
			ID:            id,
			Extra:         extra,
			HeaderStart:   hdrStart,
			HeaderEnd:     hdrEnd,
			PayloadStart:  payloadStart,
			PayloadEnd:    payloadEnd,
			LogicalLength: logicalLen,
		})
	}

	for {
		line, err := br.ReadBytes('\n')
		lineLen := int64(len(line))
		atEOF := err == io.EOF
		if err != nil && !atEOF {
			return fmt.Errorf("reading fasta stream: %w", err)
		}

		if lineLen > 0 && line[0] == '>' {
			payloadEnd = off
			if flushErr := flush(); flushErr != nil {
				return flushErr
			}

			hdrStart = off
			body := line[1:]
			hasLF := len(body) > 0 && body[len(body)-1] == '\n'
			if hasLF {
				body = body[:len(body)-1]
			}
			id, extra = splitHeader(body)
			hdrEnd = off + lineLen
			haveHeader = true
			payloadStart = hdrEnd
			logicalLen = 0
		} else if lineLen > 0 {
			for _, b := range line {
				if b != '\n' {
					logicalLen++
				}
			}
		}

		off += lineLen
		if atEOF {
			break
		}
	}
	payloadEnd = off
	if err := flush(); err != nil {
		return err
	}
	return nil
}
