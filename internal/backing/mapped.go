package backing

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/delehef/fusta/internal/ferrors"
)

// Mapped holds a read-only memory map of the entire source file; extract
// copies the requested slice straight out of the mapping. Since the mapping
// is immutable for the lifetime of the mount, reads need no lock around the
// mapping itself (§5) — only the per-fragment skip-list cache is guarded.
type Mapped struct {
	f *os.File
	m mmap.MMap

	skMu sync.Mutex
	sk   map[string]*skipList
}

func NewMapped(path string) (*Mapped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.IO, "open source for mmap", err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, ferrors.Wrap(ferrors.IO, "mmap source", err)
	}
	return &Mapped{f: f, m: m, sk: make(map[string]*skipList)}, nil
}

func (m *Mapped) skipListFor(id string) *skipList {
	m.skMu.Lock()
	defer m.skMu.Unlock()
	sl, ok := m.sk[id]
	if !ok {
		sl = newSkipList()
		m.sk[id] = sl
	}
	return sl
}

func (m *Mapped) Extract(id string, pStart, pEnd, l0, l1 int64) ([]byte, error) {
	sl := m.skipListFor(id)
	read := func(dst []byte, absOff int64) (int, error) {
		if absOff < 0 || absOff >= int64(len(m.m)) {
			return 0, nil
		}
		return copy(dst, m.m[absOff:]), nil
	}
	return extractLogical(read, sl, pStart, pEnd, l0, l1)
}

func (m *Mapped) RawPayload(id string, pStart, pEnd int64) ([]byte, error) {
	if pStart < 0 || pEnd > int64(len(m.m)) || pEnd < pStart {
		return nil, ferrors.Newf(ferrors.IO, "payload range [%d,%d) out of bounds", pStart, pEnd)
	}
	return append([]byte(nil), m.m[pStart:pEnd]...), nil
}

func (m *Mapped) Close() error {
	if err := m.m.Unmap(); err != nil {
		m.f.Close()
		return ferrors.Wrap(ferrors.IO, "unmap source", err)
	}
	return m.f.Close()
}
