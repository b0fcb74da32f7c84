// Package backing implements the three interchangeable backing-store
// strategies from §4.2 (Positional, Mapped, Resident) that materialize
// fragment payload bytes on demand, plus the uniform logical-range
// extraction contract all three share.
//
// All three variants are read-only views of the original source file's
// payload regions; fragments created later by the Append Ingestor are never
// backed by the chosen Variant — §4.7 requires them to be Resident
// regardless of mount-time choice — so Store layers a small in-memory
// override map on top of whichever Variant was selected, mirroring how
// avogabo-EDRmount's rawfs.go layers a chunkCache in front of its streamer.
package backing

import (
	"sync"

	"github.com/delehef/fusta/internal/ferrors"
)

// Variant is the capability every backing-store strategy exposes: given a
// fragment's absolute payload byte range and a logical (newline-excluded)
// window within it, produce the concatenated raw bytes.
type Variant interface {
	Extract(id string, pStart, pEnd, l0, l1 int64) ([]byte, error)
	// RawPayload returns the literal, unprocessed bytes of [pStart, pEnd),
	// embedded newlines included. The Commit Engine uses this for fragments
	// it can stream through verbatim (§4.8).
	RawPayload(id string, pStart, pEnd int64) ([]byte, error)
	Close() error
}

// Store wraps the mount's chosen Variant with the append-ingestion override
// map. It is the type the rest of FUSTA depends on.
type Store struct {
	base Variant

	mu       sync.Mutex
	appended map[string][]byte // id -> owned raw payload bytes (with embedded newlines)
	resSkip  map[string]*skipList
}

func NewStore(base Variant) *Store {
	return &Store{
		base:     base,
		appended: make(map[string][]byte),
		resSkip:  make(map[string]*skipList),
	}
}

// AddResident registers a fragment (typically produced by the Append
// Ingestor) whose payload bytes are owned in memory rather than sourced from
// the original file, per §4.7.
func (s *Store) AddResident(id string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended[id] = payload
	delete(s.resSkip, id)
}

// Forget drops any resident override for id, e.g. on unlink or rename-away.
func (s *Store) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.appended, id)
	delete(s.resSkip, id)
}

// Rename moves a resident override from oldID to newID, if one exists.
func (s *Store) Rename(oldID, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.appended[oldID]; ok {
		delete(s.appended, oldID)
		s.appended[newID] = p
		delete(s.resSkip, oldID)
		delete(s.resSkip, newID)
	}
}

func (s *Store) Extract(id string, pStart, pEnd, l0, l1 int64) ([]byte, error) {
	s.mu.Lock()
	payload, ok := s.appended[id]
	if ok {
		sl, ok2 := s.resSkip[id]
		if !ok2 {
			sl = newSkipList()
			s.resSkip[id] = sl
		}
		s.mu.Unlock()
		read := func(dst []byte, absOff int64) (int, error) {
			if absOff < 0 || absOff >= int64(len(payload)) {
				return 0, nil
			}
			n := copy(dst, payload[absOff:])
			return n, nil
		}
		return extractLogical(read, sl, 0, int64(len(payload)), l0, l1)
	}
	s.mu.Unlock()

	if s.base == nil {
		return nil, ferrors.New(ferrors.NotFound, "unknown fragment: "+id)
	}
	return s.base.Extract(id, pStart, pEnd, l0, l1)
}

// RawPayload returns the literal payload bytes for id: the resident
// override if one was registered (append-ingested fragments already store
// their raw bytes verbatim), else delegated to the mount's chosen Variant.
func (s *Store) RawPayload(id string, pStart, pEnd int64) ([]byte, error) {
	s.mu.Lock()
	payload, ok := s.appended[id]
	s.mu.Unlock()
	if ok {
		return append([]byte(nil), payload...), nil
	}
	if s.base == nil {
		return nil, ferrors.New(ferrors.NotFound, "unknown fragment: "+id)
	}
	return s.base.RawPayload(id, pStart, pEnd)
}

func (s *Store) Close() error {
	if s.base == nil {
		return nil
	}
	return s.base.Close()
}
