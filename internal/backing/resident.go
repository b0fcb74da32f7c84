package backing

import (
	"io"
	"os"
	"sync"

	"github.com/delehef/fusta/internal/ferrors"
)

// Resident copies every fragment's payload into a contiguous owned byte
// vector at mount time. The payload map is read without a lock after
// construction; only the per-fragment skip-list map is guarded. The skip
// list is mostly unnecessary for in-memory slices but kept for uniformity
// with the other two variants (and to bound per-extract work for very long
// resident fragments).
type Resident struct {
	payload map[string][]byte

	skMu sync.Mutex
	sk   map[string]*skipList
}

// FragmentRange describes one fragment's source payload location, enough
// for Resident to copy it out of path during construction.
type FragmentRange struct {
	ID    string
	Start int64
	End   int64
}

func NewResident(path string, ranges []FragmentRange) (*Resident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.IO, "open source for resident load", err)
	}
	defer f.Close()

	r := &Resident{payload: make(map[string][]byte, len(ranges)), sk: make(map[string]*skipList)}
	for _, fr := range ranges {
		n := fr.End - fr.Start
		buf := make([]byte, n)
		if _, err := f.Seek(fr.Start, io.SeekStart); err != nil {
			return nil, ferrors.Wrap(ferrors.IO, "seek source during resident load", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, ferrors.Wrap(ferrors.IO, "read source during resident load", err)
		}
		r.payload[fr.ID] = buf
	}
	return r, nil
}

func (r *Resident) skipListFor(id string) *skipList {
	r.skMu.Lock()
	defer r.skMu.Unlock()
	sl, ok := r.sk[id]
	if !ok {
		sl = newSkipList()
		r.sk[id] = sl
	}
	return sl
}

func (r *Resident) Extract(id string, pStart, pEnd, l0, l1 int64) ([]byte, error) {
	buf, ok := r.payload[id]
	if !ok {
		return nil, ferrors.New(ferrors.NotFound, "unknown resident fragment: "+id)
	}
	sl := r.skipListFor(id)
	read := func(dst []byte, absOff int64) (int, error) {
		off := absOff - pStart
		if off < 0 || off >= int64(len(buf)) {
			return 0, nil
		}
		return copy(dst, buf[off:]), nil
	}
	return extractLogical(read, sl, pStart, pEnd, l0, l1)
}

// RawPayload returns the fragment's full owned payload, which is already
// exactly [pStart, pEnd) of the original source by construction.
func (r *Resident) RawPayload(id string, _, _ int64) ([]byte, error) {
	buf, ok := r.payload[id]
	if !ok {
		return nil, ferrors.New(ferrors.NotFound, "unknown resident fragment: "+id)
	}
	return append([]byte(nil), buf...), nil
}

func (r *Resident) Close() error { return nil }
