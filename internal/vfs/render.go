package vfs

import (
	"bytes"

	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/ferrors"
	"github.com/delehef/fusta/internal/overlay"
)

// effectiveRawPayload returns a fragment's current payload bytes, embedded
// newlines included: the pending overlay buffer's content if one is active,
// else the verbatim backing-store range. Callers must already hold fs.mu.
func effectiveRawPayload(f catalog.Fragment, store interface {
	RawPayload(id string, pStart, pEnd int64) ([]byte, error)
}, ov *overlay.Overlay) ([]byte, error) {
	if f.Pending {
		buf, ok := ov.Get(f.ID)
		if !ok {
			return nil, ferrors.Newf(ferrors.IO, "fragment %q marked pending with no overlay buffer", f.ID)
		}
		return buf.Bytes()
	}
	return store.RawPayload(f.ID, f.PayloadStart, f.PayloadEnd)
}

// renderFasta composes the virtual fasta/<id>.fa content: header line plus
// the logical sequence rewrapped at wrapWidth columns (§4.4). The rewrap is
// unconditional, even for untouched fragments, so that getattr size always
// matches the bytes Read actually serves regardless of the original file's
// wrap width (§9 Open Question: "any stable choice ... satisfies the
// contract").
func renderFasta(f catalog.Fragment, raw []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('>')
	b.WriteString(f.ID)
	if f.Extra != "" {
		b.WriteByte(' ')
		b.WriteString(f.Extra)
	}
	b.WriteByte('\n')
	b.Write(overlay.Wrap(overlay.StripNewlines(raw), wrapWidth))
	return b.Bytes()
}

func sliceWindow(data []byte, offset int64, size int) []byte {
	if offset < 0 || offset >= int64(len(data)) {
		return nil
	}
	end := offset + int64(size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end]
}
