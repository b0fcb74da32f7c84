// Package vfs implements the Virtual Tree (§4.4): the bazil.org/fuse Node
// and Handle bindings presenting the Fragment Catalog, Backing Store, and
// Write Overlay as the fixed FUSTA directory layout.
//
// Every FUSE callback that touches the Catalog or Overlay does so under FS's
// single coarse mutex (§5: "parallel threads with a single shared state
// protected by a coarse mutex around the Catalog + Virtual Tree + Overlay,
// released during long byte copies where possible"), the same shape as
// avogabo-EDRmount's Node methods querying n.fs.Jobs.DB() directly — except
// here the lock is explicit rather than delegated to sqlite's own connection
// serialization, since the Overlay and the fragment-inode bookkeeping are
// plain Go state with no driver-level locking of their own.
package vfs

import (
	"context"
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/delehef/fusta/internal/backing"
	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/commit"
	"github.com/delehef/fusta/internal/ferrors"
	"github.com/delehef/fusta/internal/overlay"
)

const wrapWidth = 60

type genKind int

const (
	genInfosCSV genKind = iota
	genInfosTxt
	genLabelsTxt
)

type genCacheEntry struct {
	gen  uint64
	data []byte
}

// FS is the root of the Virtual Tree and the fs.FS/fs.FSDestroyer
// implementation bazil.org/fuse serves.
type FS struct {
	mu    sync.Mutex
	cat   *catalog.Catalog
	store *backing.Store
	ov    *overlay.Overlay

	sourcePath     string
	sep            rune
	allowOverwrite bool
	log            *log.Logger

	appendMu   sync.Mutex
	appendAcct *overlay.Accountant
	appendBufs map[string]*overlay.Buffer
	spillDir   string

	genMu    sync.Mutex
	genCache map[genKind]genCacheEntry

	ephMu      sync.Mutex
	nextEphIno uint64

	commitMu  sync.Mutex
	committed bool
}

// New assembles the Virtual Tree over an already-initialized catalog,
// backing store, and overlay (§9 initialization order: "parse source →
// build catalog → initialize backing store → register FUSE callbacks").
func New(sourcePath string, sep rune, allowOverwrite bool, cat *catalog.Catalog, store *backing.Store, ov *overlay.Overlay, spillDir string, maxCacheMB int64, logger *log.Logger) *FS {
	return &FS{
		cat:            cat,
		store:          store,
		ov:             ov,
		sourcePath:     sourcePath,
		sep:            sep,
		allowOverwrite: allowOverwrite,
		log:            logger,
		appendAcct:     overlay.NewAccountant(maxCacheMB * 1 << 20),
		appendBufs:     make(map[string]*overlay.Buffer),
		spillDir:       spillDir,
		genCache:       make(map[genKind]genCacheEntry),
		nextEphIno:     1 << 40,
	}
}

func (f *FS) Root() (fs.Node, error) {
	return &rootDir{fs: f}, nil
}

// Destroy runs the Commit Engine exactly once (§4.8, §5: "signal handling
// must be idempotent — a repeated signal must not re-enter commit").
func (f *FS) Destroy() {
	f.commitMu.Lock()
	defer f.commitMu.Unlock()
	if f.committed {
		return
	}
	f.committed = true

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := commit.Write(context.Background(), f.sourcePath, f.cat, f.store, f.ov); err != nil {
		f.log.Printf("commit failed: %v", err)
		return
	}
	f.log.Printf("commit succeeded, rewrote %s", f.sourcePath)
}

// nextEphemeralIno hands out an inode for a get/ lookup result. The range
// resolver's entries are not enumerable and not cached by id, so they simply
// count up from a range disjoint from the catalog's dynamic fragment inodes.
func (f *FS) nextEphemeralIno() uint64 {
	f.ephMu.Lock()
	defer f.ephMu.Unlock()
	ino := f.nextEphIno
	f.nextEphIno++
	return ino
}

func (f *FS) AllocateInodeTriple() (fa, seq, get uint64) { return f.cat.AllocateInodeTriple() }

func (f *FS) Insert(ctx context.Context, frag catalog.Fragment, allowOverwrite bool) error {
	return f.cat.Insert(ctx, frag, allowOverwrite)
}

func (f *FS) AddResident(id string, payload []byte) { f.store.AddResident(id, payload) }

// toErrno translates a ferrors.Error at the FUSE callback boundary; anything
// that does not carry a recognized Kind maps to fuse.EIO.
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	kind, ok := ferrors.KindOf(err)
	if !ok {
		return fuse.EIO
	}
	switch kind {
	case ferrors.NotFound:
		return fuse.ENOENT
	case ferrors.InvalidArgument:
		return fuse.Errno(syscall.EINVAL)
	case ferrors.Exists:
		return fuse.Errno(syscall.EEXIST)
	case ferrors.PermissionDenied:
		return fuse.Errno(syscall.EACCES)
	case ferrors.OutOfSpace:
		return fuse.Errno(syscall.ENOSPC)
	default:
		return fuse.EIO
	}
}

type rootDir struct{ fs *FS }

func (n *rootDir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = catalog.InoRoot
	a.Mode = os.ModeDir | 0o755
	a.Mtime = time.Now()
	return nil
}

func (n *rootDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	return []fuse.Dirent{
		{Inode: catalog.InoAppend, Name: "append", Type: fuse.DT_Dir},
		{Inode: catalog.InoFasta, Name: "fasta", Type: fuse.DT_Dir},
		{Inode: catalog.InoGet, Name: "get", Type: fuse.DT_Dir},
		{Inode: catalog.InoSeqs, Name: "seqs", Type: fuse.DT_Dir},
		{Inode: catalog.InoInfosCSV, Name: "infos.csv", Type: fuse.DT_File},
		{Inode: catalog.InoInfosTxt, Name: "infos.txt", Type: fuse.DT_File},
		{Inode: catalog.InoLabelsTxt, Name: "labels.txt", Type: fuse.DT_File},
	}, nil
}

func (n *rootDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	switch name {
	case "append":
		return &appendDir{fs: n.fs}, nil
	case "fasta":
		return &fastaDir{fs: n.fs}, nil
	case "get":
		return &getDir{fs: n.fs}, nil
	case "seqs":
		return &seqsDir{fs: n.fs}, nil
	case "infos.csv":
		return &genFile{fs: n.fs, kind: genInfosCSV}, nil
	case "infos.txt":
		return &genFile{fs: n.fs, kind: genInfosTxt}, nil
	case "labels.txt":
		return &genFile{fs: n.fs, kind: genLabelsTxt}, nil
	}
	return nil, fuse.ENOENT
}

var (
	_ fs.FS          = (*FS)(nil)
	_ fs.FSDestroyer = (*FS)(nil)

	_ fs.Node               = (*rootDir)(nil)
	_ fs.HandleReadDirAller = (*rootDir)(nil)
	_ fs.NodeStringLookuper = (*rootDir)(nil)
)
