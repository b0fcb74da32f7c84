// Package rangeresolver parses and validates the `get/SEQID:START-END`
// synthetic path grammar (§4.5).
package rangeresolver

import (
	"strconv"
	"strings"

	"github.com/delehef/fusta/internal/ferrors"
)

// Range is a parsed, not-yet-validated request: 1-based, fully closed.
type Range struct {
	ID         string
	Start, End int64
}

// Parse splits name on the grammar ID ':' NUM '-' NUM. ID may itself
// contain no further constraints beyond what the catalog already enforces
// for fragment ids; NUM is a non-negative decimal integer.
func Parse(name string) (Range, error) {
	colon := strings.LastIndexByte(name, ':')
	if colon < 0 {
		return Range{}, ferrors.Newf(ferrors.InvalidArgument, "malformed range path: %q", name)
	}
	id := name[:colon]
	rest := name[colon+1:]
	dash := strings.IndexByte(rest, '-')
	if id == "" || dash < 0 {
		return Range{}, ferrors.Newf(ferrors.InvalidArgument, "malformed range path: %q", name)
	}
	startStr, endStr := rest[:dash], rest[dash+1:]
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return Range{}, ferrors.Newf(ferrors.InvalidArgument, "malformed range start: %q", startStr)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < 0 {
		return Range{}, ferrors.Newf(ferrors.InvalidArgument, "malformed range end: %q", endStr)
	}
	return Range{ID: id, Start: start, End: end}, nil
}

// Validate checks a parsed range against a fragment's logical length,
// rejecting unknown ids (handled by the caller before calling Validate),
// start > end, end beyond logicalLength, and start < 1 (§4.5).
func Validate(r Range, logicalLength int64) error {
	if r.Start < 1 {
		return ferrors.Newf(ferrors.InvalidArgument, "range start must be >= 1: got %d", r.Start)
	}
	if r.Start > r.End {
		return ferrors.Newf(ferrors.InvalidArgument, "range start %d exceeds end %d", r.Start, r.End)
	}
	if r.End > logicalLength {
		return ferrors.Newf(ferrors.InvalidArgument, "range end %d exceeds sequence length %d", r.End, logicalLength)
	}
	return nil
}

// Len returns the number of bytes the range serves: end - start + 1.
func (r Range) Len() int64 { return r.End - r.Start + 1 }
