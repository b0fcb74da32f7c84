package vfs

import (
	"context"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/delehef/fusta/internal/catalog"
	fgen "github.com/delehef/fusta/internal/gen"
)

// genFile is one of the three generated summary files at the mount root
// (§4.4, §6): infos.csv, infos.txt, labels.txt. Content is memoized against
// the catalog's generation counter so repeated reads of an unchanged catalog
// don't re-render on every call.
type genFile struct {
	fs   *FS
	kind genKind
}

func (n *genFile) inode() uint64 {
	switch n.kind {
	case genInfosCSV:
		return catalog.InoInfosCSV
	case genInfosTxt:
		return catalog.InoInfosTxt
	default:
		return catalog.InoLabelsTxt
	}
}

// render returns the current bytes for n.kind, re-rendering only when the
// catalog's generation has advanced since the last render.
func (n *genFile) render(ctx context.Context) ([]byte, error) {
	n.fs.mu.Lock()
	gen := n.fs.cat.Generation()

	n.fs.genMu.Lock()
	if cached, ok := n.fs.genCache[n.kind]; ok && cached.gen == gen {
		n.fs.genMu.Unlock()
		n.fs.mu.Unlock()
		return cached.data, nil
	}
	n.fs.genMu.Unlock()

	frags, err := n.fs.cat.IterActive(ctx)
	n.fs.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var data []byte
	switch n.kind {
	case genInfosCSV:
		data = fgen.InfosCSV(frags, n.fs.sep)
	case genInfosTxt:
		data = fgen.InfosTxt(frags)
	default:
		data = fgen.LabelsTxt(frags)
	}

	n.fs.genMu.Lock()
	n.fs.genCache[n.kind] = genCacheEntry{gen: gen, data: data}
	n.fs.genMu.Unlock()
	return data, nil
}

func (n *genFile) Attr(ctx context.Context, a *fuse.Attr) error {
	data, err := n.render(ctx)
	if err != nil {
		return toErrno(err)
	}
	a.Inode = n.inode()
	a.Mode = 0o444
	a.Size = uint64(len(data))
	a.Mtime = time.Now()
	return nil
}

func (n *genFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := n.render(ctx)
	if err != nil {
		return toErrno(err)
	}
	resp.Data = sliceWindow(data, req.Offset, req.Size)
	return nil
}

var (
	_ fs.Node         = (*genFile)(nil)
	_ fs.HandleReader = (*genFile)(nil)
)
