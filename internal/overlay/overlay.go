// Package overlay implements the Write Overlay (§4.6): per-fragment pending
// payload buffers shadowing the backing store, with a shared in-memory
// ceiling above which a fragment's buffer spills to its own temp file.
package overlay

import (
	"os"

	"github.com/delehef/fusta/internal/ferrors"
)

// Overlay owns every fragment's pending buffer, keyed by fragment id. Like
// Catalog, it is not internally synchronized — the caller (internal/vfs)
// holds the coarse state lock described in §5.
type Overlay struct {
	acct     *Accountant
	spillDir string
	buffers  map[string]*Buffer
}

func New(spillDir string, ceilingBytes int64) (*Overlay, error) {
	if spillDir != "" {
		if err := os.MkdirAll(spillDir, 0o700); err != nil {
			return nil, ferrors.Wrap(ferrors.IO, "create overlay spill directory", err)
		}
	}
	return &Overlay{
		acct:     NewAccountant(ceilingBytes),
		spillDir: spillDir,
		buffers:  make(map[string]*Buffer),
	}, nil
}

// Get returns the pending buffer for id, if one exists.
func (o *Overlay) Get(id string) (*Buffer, bool) {
	b, ok := o.buffers[id]
	return b, ok
}

// EnsureBuffer returns id's pending buffer, lazily materializing it via
// materialize (the fragment's current effective payload, read from the
// backing store) on first use, per §4.6.
func (o *Overlay) EnsureBuffer(id string, materialize func() ([]byte, error)) (*Buffer, error) {
	if b, ok := o.buffers[id]; ok {
		return b, nil
	}
	initial, err := materialize()
	if err != nil {
		return nil, err
	}
	b, err := NewBuffer(o.acct, initial, o.spillDir, "fusta-overlay-"+sanitizeName(id))
	if err != nil {
		return nil, err
	}
	o.buffers[id] = b
	return b, nil
}

// Drop releases and forgets id's pending buffer, e.g. on unlink or when a
// rename overwrite tombstones a prior fragment.
func (o *Overlay) Drop(id string) {
	if b, ok := o.buffers[id]; ok {
		b.Close()
		delete(o.buffers, id)
	}
}

// Rename moves a pending buffer from oldID to newID.
func (o *Overlay) Rename(oldID, newID string) {
	if b, ok := o.buffers[oldID]; ok {
		delete(o.buffers, oldID)
		o.buffers[newID] = b
	}
}

func sanitizeName(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		b := id[i]
		if b == '/' || b == 0 {
			b = '_'
		}
		out[i] = b
	}
	return string(out)
}

// ValidSeqByte reports whether b is accepted in a seqs/<id>.seq write: ASCII
// alphanumeric or one of "\n - _ . + =" (§4.6).
func ValidSeqByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '\n', '-', '_', '.', '+', '=':
		return true
	}
	return false
}

// ValidateSeqWrite checks every byte of data, returning an InvalidArgument
// error naming the first offending byte if any. Writes are validated whole
// before any byte is applied, so a rejected write leaves prior content
// untouched (§4.6).
func ValidateSeqWrite(data []byte) error {
	for i, b := range data {
		if !ValidSeqByte(b) {
			return ferrors.Newf(ferrors.InvalidArgument, "disallowed byte 0x%02x at offset %d", b, i)
		}
	}
	return nil
}

// LogicalLength counts the non-newline bytes in raw, the definition used
// throughout (§3 logical_length, §4.6 recomputation).
func LogicalLength(raw []byte) int64 {
	var n int64
	for _, b := range raw {
		if b != '\n' {
			n++
		}
	}
	return n
}

// StripNewlines returns raw with every LF byte removed, i.e. the logical
// sequence.
func StripNewlines(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b != '\n' {
			out = append(out, b)
		}
	}
	return out
}

// Wrap re-wraps a logical (newline-free) sequence at width bytes per line,
// each line terminated by LF, with a trailing LF — the rendering used by
// fasta/<id>.fa (§4.4) and by the Commit Engine for modified/appended
// payloads (§4.8).
func Wrap(seq []byte, width int) []byte {
	if width <= 0 {
		width = 60
	}
	out := make([]byte, 0, len(seq)+len(seq)/width+1)
	for i := 0; i < len(seq); i += width {
		end := i + width
		if end > len(seq) {
			end = len(seq)
		}
		out = append(out, seq[i:end]...)
		out = append(out, '\n')
	}
	if len(seq) == 0 {
		out = append(out, '\n')
	}
	return out
}
