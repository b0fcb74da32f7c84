package overlay

import (
	"io"
	"os"
	"sync"

	"github.com/delehef/fusta/internal/ferrors"
)

// Buffer is a spillable byte region: resident in memory up to the shared
// Accountant's ceiling, after which it moves entirely to its own temp file
// (§9: "rather than a single monolithic spill file, use one temp file per
// pending fragment, to simplify truncation and release semantics").
type Buffer struct {
	mu   sync.Mutex
	acct *Accountant

	mem     []byte
	spilled bool
	path    string
	file    *os.File
	size    int64 // logical size of the buffer content, valid in both modes
}

// NewBuffer creates a buffer pre-populated with initial content (the
// "materialize the current effective payload" step of §4.6). If initial is
// larger than the accountant has room for, the buffer starts spilled.
func NewBuffer(acct *Accountant, initial []byte, spillDir, name string) (*Buffer, error) {
	b := &Buffer{acct: acct, path: spillDirJoin(spillDir, name)}
	if acct.TryReserve(int64(len(initial))) {
		b.mem = append([]byte(nil), initial...)
		b.size = int64(len(initial))
		return b, nil
	}
	if err := b.spillWith(initial); err != nil {
		return nil, err
	}
	return b, nil
}

func spillDirJoin(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(os.PathSeparator) + name
}

func (b *Buffer) spillLocked(extra []byte) error { return b.spillWith(append(b.mem, extra...)) }

// spillWith switches the buffer to file backing with content as its full
// current content. Caller must hold b.mu.
func (b *Buffer) spillWith(content []byte) error {
	f, err := os.OpenFile(b.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return ferrors.Wrap(ferrors.OutOfSpace, "create overlay spill file", err)
	}
	if len(content) > 0 {
		if _, err := f.WriteAt(content, 0); err != nil {
			f.Close()
			os.Remove(b.path)
			return ferrors.Wrap(ferrors.OutOfSpace, "write overlay spill file", err)
		}
	}
	if b.mem != nil {
		b.acct.Release(int64(len(b.mem)))
	}
	b.mem = nil
	b.file = f
	b.spilled = true
	b.size = int64(len(content))
	return nil
}

// WriteAt writes data at the given logical offset, growing the buffer (with
// a zero-filled gap, matching ordinary sparse-file semantics) if needed.
// Writes are atomic per call: callers must pre-validate content (§4.6 "prior
// valid bytes in the same write are not partially applied") since Buffer
// itself has no notion of the seqs/ charset restriction.
func (b *Buffer) WriteAt(offset int64, data []byte) error {
	if offset < 0 {
		return ferrors.New(ferrors.InvalidArgument, "negative write offset")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	newEnd := offset + int64(len(data))

	if b.spilled {
		if newEnd > b.size {
			b.size = newEnd
		}
		if len(data) == 0 {
			return nil
		}
		if _, err := b.file.WriteAt(data, offset); err != nil {
			return ferrors.Wrap(ferrors.IO, "write overlay spill file", err)
		}
		return nil
	}

	if newEnd <= int64(len(b.mem)) {
		copy(b.mem[offset:], data)
		return nil
	}

	grow := newEnd - int64(len(b.mem))
	if !b.acct.TryReserve(grow) {
		if err := b.spillLocked(nil); err != nil {
			return err
		}
		if newEnd > b.size {
			b.size = newEnd
		}
		if len(data) == 0 {
			return nil
		}
		if _, err := b.file.WriteAt(data, offset); err != nil {
			return ferrors.Wrap(ferrors.IO, "write overlay spill file", err)
		}
		return nil
	}
	grown := make([]byte, newEnd)
	copy(grown, b.mem)
	copy(grown[offset:], data)
	b.mem = grown
	b.size = newEnd
	return nil
}

// Truncate resizes the buffer, zero-filling on growth and discarding bytes
// beyond newSize on shrink (§4.6 truncate(new_size)).
func (b *Buffer) Truncate(newSize int64) error {
	if newSize < 0 {
		return ferrors.New(ferrors.InvalidArgument, "negative truncate size")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.spilled {
		if err := b.file.Truncate(newSize); err != nil {
			return ferrors.Wrap(ferrors.IO, "truncate overlay spill file", err)
		}
		b.size = newSize
		return nil
	}

	if newSize <= int64(len(b.mem)) {
		b.acct.Release(int64(len(b.mem)) - newSize)
		b.mem = b.mem[:newSize]
		b.size = newSize
		return nil
	}
	grow := newSize - int64(len(b.mem))
	if !b.acct.TryReserve(grow) {
		return b.spillWith(append(b.mem, make([]byte, grow)...))
	}
	grown := make([]byte, newSize)
	copy(grown, b.mem)
	b.mem = grown
	b.size = newSize
	return nil
}

// ReadAt reads up to len(dst) bytes starting at offset, returning the
// number of bytes copied. Reads past the end of the buffer return 0, nil
// (not io.EOF), mirroring how FUSE Read handlers treat short reads.
func (b *Buffer) ReadAt(dst []byte, offset int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset < 0 || offset >= b.size {
		return 0, nil
	}
	end := offset + int64(len(dst))
	if end > b.size {
		end = b.size
	}
	want := int(end - offset)
	if b.spilled {
		n, err := b.file.ReadAt(dst[:want], offset)
		if err != nil && err != io.EOF {
			return n, ferrors.Wrap(ferrors.IO, "read overlay spill file", err)
		}
		return n, nil
	}
	return copy(dst[:want], b.mem[offset:end]), nil
}

// Bytes returns the full current content. Used when materializing a
// fragment's effective payload for fasta/<id>.fa rendering or commit.
func (b *Buffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.spilled {
		return append([]byte(nil), b.mem...), nil
	}
	out := make([]byte, b.size)
	if _, err := b.file.ReadAt(out, 0); err != nil && err != io.EOF {
		return nil, ferrors.Wrap(ferrors.IO, "read overlay spill file", err)
	}
	return out, nil
}

func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Close releases accounted memory and removes any spill file.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mem != nil {
		b.acct.Release(int64(len(b.mem)))
		b.mem = nil
	}
	if b.file != nil {
		b.file.Close()
		os.Remove(b.path)
		b.file = nil
	}
	return nil
}
