package backing

import (
	"io"
	"os"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/delehef/fusta/internal/ferrors"
)

// Positional holds a single shared file handle and serves extracts with
// seek+read, serialized internally, per §4.2. Concurrent requests for the
// same (id, window) are deduplicated with singleflight, the same pattern
// avogabo-EDRmount's rawfs.go uses (fetchGroup) to collapse concurrent
// re-downloads of one byte range onto a single fetch.
type Positional struct {
	mu sync.Mutex
	f  *os.File

	skMu sync.Mutex
	sk   map[string]*skipList

	group singleflight.Group
}

func NewPositional(path string) (*Positional, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.IO, "open source for positional reads", err)
	}
	return &Positional{f: f, sk: make(map[string]*skipList)}, nil
}

func (p *Positional) skipListFor(id string) *skipList {
	p.skMu.Lock()
	defer p.skMu.Unlock()
	sl, ok := p.sk[id]
	if !ok {
		sl = newSkipList()
		p.sk[id] = sl
	}
	return sl
}

type sfKey struct {
	id     string
	l0, l1 int64
}

func (p *Positional) Extract(id string, pStart, pEnd, l0, l1 int64) ([]byte, error) {
	sl := p.skipListFor(id)
	key := sfKeyString(id, l0, l1)
	v, err, _ := p.group.Do(key, func() (any, error) {
		read := func(dst []byte, absOff int64) (int, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, err := p.f.Seek(absOff, 0); err != nil {
				return 0, ferrors.Wrap(ferrors.IO, "seek source", err)
			}
			n, err := p.f.Read(dst)
			if err != nil && n == 0 {
				return 0, err
			}
			return n, nil
		}
		return extractLogical(read, sl, pStart, pEnd, l0, l1)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (p *Positional) RawPayload(id string, pStart, pEnd int64) ([]byte, error) {
	n := pEnd - pStart
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.f.Seek(pStart, 0); err != nil {
		return nil, ferrors.Wrap(ferrors.IO, "seek source", err)
	}
	if _, err := io.ReadFull(p.f, buf); err != nil {
		return nil, ferrors.Wrap(ferrors.IO, "read source payload", err)
	}
	return buf, nil
}

func (p *Positional) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.f.Close()
}

func sfKeyString(id string, l0, l1 int64) string {
	return id + ":" + strconv.FormatInt(l0, 10) + "-" + strconv.FormatInt(l1, 10)
}
