package vfs

import (
	"context"
	"os"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/ingest"
	"github.com/delehef/fusta/internal/overlay"
)

// appendDir is the Append Ingestor's staging directory (§4.7): files created
// here accumulate arbitrary FASTA bytes and are parsed and ingested into the
// catalog on release. Listing is always empty; staged names never resolve
// through Lookup, since a file ceases to exist as soon as it is released.
type appendDir struct{ fs *FS }

func (n *appendDir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = catalog.InoAppend
	a.Mode = os.ModeDir | 0o755
	a.Mtime = time.Now()
	return nil
}

func (n *appendDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) { return nil, nil }

func (n *appendDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	return nil, fuse.ENOENT
}

func (n *appendDir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	n.fs.appendMu.Lock()
	defer n.fs.appendMu.Unlock()

	if old, ok := n.fs.appendBufs[req.Name]; ok {
		old.Close()
	}
	buf, err := overlay.NewBuffer(n.fs.appendAcct, nil, n.fs.spillDir, "fusta-append-"+sanitizeStageName(req.Name))
	if err != nil {
		return nil, nil, toErrno(err)
	}
	n.fs.appendBufs[req.Name] = buf

	file := &appendFile{fs: n.fs, name: req.Name}
	resp.Attr.Mode = 0o644
	return file, file, nil
}

func sanitizeStageName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b == '/' || b == 0 {
			b = '_'
		}
		out[i] = b
	}
	return string(out)
}

// appendFile is a single staged upload in progress. It is never looked up by
// name; the kernel only ever reaches it through the Handle returned by
// Create.
type appendFile struct {
	fs   *FS
	name string
}

func (n *appendFile) Attr(ctx context.Context, a *fuse.Attr) error {
	n.fs.appendMu.Lock()
	buf, ok := n.fs.appendBufs[n.name]
	n.fs.appendMu.Unlock()
	a.Mode = 0o644
	a.Mtime = time.Now()
	if ok {
		a.Size = uint64(buf.Size())
	}
	return nil
}

func (n *appendFile) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n.fs.appendMu.Lock()
	buf, ok := n.fs.appendBufs[n.name]
	n.fs.appendMu.Unlock()
	if !ok {
		return fuse.ENOENT
	}
	if err := buf.WriteAt(req.Offset, req.Data); err != nil {
		return toErrno(err)
	}
	resp.Size = len(req.Data)
	return nil
}

// Release parses the staged buffer and ingests every fragment it contains
// (§4.7). The staging buffer is discarded unconditionally, whether ingestion
// succeeds or fails, so a rejected upload never lingers in append/.
func (n *appendFile) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	n.fs.appendMu.Lock()
	buf, ok := n.fs.appendBufs[n.name]
	delete(n.fs.appendBufs, n.name)
	n.fs.appendMu.Unlock()
	if !ok {
		return nil
	}
	defer buf.Close()

	raw, err := buf.Bytes()
	if err != nil {
		return toErrno(err)
	}
	if len(raw) == 0 {
		return nil
	}

	n.fs.mu.Lock()
	_, err = ingest.Ingest(ctx, n.fs, raw, n.fs.allowOverwrite)
	n.fs.mu.Unlock()
	if err != nil {
		return toErrno(err)
	}
	return nil
}

var (
	_ fs.Node               = (*appendDir)(nil)
	_ fs.HandleReadDirAller = (*appendDir)(nil)
	_ fs.NodeStringLookuper = (*appendDir)(nil)
	_ fs.NodeCreater        = (*appendDir)(nil)

	_ fs.Node           = (*appendFile)(nil)
	_ fs.HandleWriter   = (*appendFile)(nil)
	_ fs.HandleReleaser = (*appendFile)(nil)
)
