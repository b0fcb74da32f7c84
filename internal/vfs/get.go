package vfs

import (
	"context"
	"os"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/delehef/fusta/internal/backing"
	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/overlay"
	"github.com/delehef/fusta/internal/rangeresolver"
)

// getDir implements the Range Resolver's directory surface (§4.5): always
// empty on listing, synthesizing an ephemeral entry on lookup.
type getDir struct{ fs *FS }

func (n *getDir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = catalog.InoGet
	a.Mode = os.ModeDir | 0o555
	a.Mtime = time.Now()
	return nil
}

func (n *getDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) { return nil, nil }

func (n *getDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	r, err := rangeresolver.Parse(name)
	if err != nil {
		return nil, toErrno(err)
	}

	n.fs.mu.Lock()
	f, ok, err := n.fs.cat.GetActiveByID(ctx, r.ID)
	if err != nil {
		n.fs.mu.Unlock()
		return nil, toErrno(err)
	}
	if !ok {
		n.fs.mu.Unlock()
		return nil, fuse.ENOENT
	}
	if err := rangeresolver.Validate(r, f.LogicalLength); err != nil {
		n.fs.mu.Unlock()
		return nil, toErrno(err)
	}
	data, err := rangeBytes(f, r, n.fs.store, n.fs.ov)
	n.fs.mu.Unlock()
	if err != nil {
		return nil, toErrno(err)
	}

	return &getFile{ino: n.fs.nextEphemeralIno(), data: data}, nil
}

// rangeBytes resolves r's logical window for f, directing through the
// overlay when pending, else the backing store's direct logical-range
// extract (avoiding materializing the whole fragment for a narrow request).
// Caller must hold fs.mu.
func rangeBytes(f catalog.Fragment, r rangeresolver.Range, store *backing.Store, ov *overlay.Overlay) ([]byte, error) {
	if !f.Pending {
		return store.Extract(f.ID, f.PayloadStart, f.PayloadEnd, r.Start-1, r.End)
	}
	buf, ok := ov.Get(f.ID)
	if !ok {
		return nil, nil
	}
	raw, err := buf.Bytes()
	if err != nil {
		return nil, err
	}
	logical := overlay.StripNewlines(raw)
	return sliceWindow(logical, r.Start-1, int(r.Len())), nil
}

type getFile struct {
	ino  uint64
	data []byte
}

func (n *getFile) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = n.ino
	a.Mode = 0o444
	a.Size = uint64(len(n.data))
	a.Mtime = time.Now()
	return nil
}

func (n *getFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	resp.Data = sliceWindow(n.data, req.Offset, req.Size)
	return nil
}

var (
	_ fs.Node               = (*getDir)(nil)
	_ fs.HandleReadDirAller = (*getDir)(nil)
	_ fs.NodeStringLookuper = (*getDir)(nil)

	_ fs.Node         = (*getFile)(nil)
	_ fs.HandleReader = (*getFile)(nil)
)
