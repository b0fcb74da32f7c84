package vfs

import (
	"context"
	"os"
	"strings"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/ferrors"
)

type fastaDir struct{ fs *FS }

func (n *fastaDir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = catalog.InoFasta
	a.Mode = os.ModeDir | 0o555
	a.Mtime = time.Now()
	return nil
}

func (n *fastaDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	n.fs.mu.Lock()
	frags, err := n.fs.cat.IterActive(ctx)
	n.fs.mu.Unlock()
	if err != nil {
		return nil, toErrno(err)
	}
	out := make([]fuse.Dirent, 0, len(frags))
	for _, f := range frags {
		out = append(out, fuse.Dirent{Inode: f.InoFasta, Name: f.ID + ".fa", Type: fuse.DT_File})
	}
	return out, nil
}

func (n *fastaDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	id := strings.TrimSuffix(name, ".fa")
	if id == name {
		return nil, fuse.ENOENT
	}
	n.fs.mu.Lock()
	_, ok, err := n.fs.cat.GetActiveByID(ctx, id)
	n.fs.mu.Unlock()
	if err != nil {
		return nil, toErrno(err)
	}
	if !ok {
		return nil, fuse.ENOENT
	}
	return &fastaFile{fs: n.fs, id: id}, nil
}

type fastaFile struct {
	fs *FS
	id string
}

func (n *fastaFile) content(ctx context.Context) ([]byte, error) {
	n.fs.mu.Lock()
	f, ok, err := n.fs.cat.GetActiveByID(ctx, n.id)
	if err != nil {
		n.fs.mu.Unlock()
		return nil, err
	}
	if !ok {
		n.fs.mu.Unlock()
		return nil, ferrors.Newf(ferrors.NotFound, "no such active fragment: %q", n.id)
	}
	raw, err := effectiveRawPayload(f, n.fs.store, n.fs.ov)
	n.fs.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return renderFasta(f, raw), nil
}

func (n *fastaFile) Attr(ctx context.Context, a *fuse.Attr) error {
	data, err := n.content(ctx)
	if err != nil {
		return toErrno(err)
	}
	a.Mode = 0o444
	a.Size = uint64(len(data))
	a.Mtime = time.Now()
	return nil
}

func (n *fastaFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := n.content(ctx)
	if err != nil {
		return toErrno(err)
	}
	resp.Data = sliceWindow(data, req.Offset, req.Size)
	return nil
}

var (
	_ fs.Node               = (*fastaDir)(nil)
	_ fs.HandleReadDirAller = (*fastaDir)(nil)
	_ fs.NodeStringLookuper = (*fastaDir)(nil)

	_ fs.Node         = (*fastaFile)(nil)
	_ fs.HandleReader = (*fastaFile)(nil)
)
