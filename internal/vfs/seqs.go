package vfs

import (
	"context"
	"os"
	"strings"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/fastaparse"
	"github.com/delehef/fusta/internal/ferrors"
	"github.com/delehef/fusta/internal/overlay"
)

type seqsDir struct{ fs *FS }

func (n *seqsDir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = catalog.InoSeqs
	a.Mode = os.ModeDir | 0o755
	a.Mtime = time.Now()
	return nil
}

func (n *seqsDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	n.fs.mu.Lock()
	frags, err := n.fs.cat.IterActive(ctx)
	n.fs.mu.Unlock()
	if err != nil {
		return nil, toErrno(err)
	}
	out := make([]fuse.Dirent, 0, len(frags))
	for _, f := range frags {
		out = append(out, fuse.Dirent{Inode: f.InoSeq, Name: f.ID + ".seq", Type: fuse.DT_File})
	}
	return out, nil
}

func (n *seqsDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	id := strings.TrimSuffix(name, ".seq")
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
	return &seqsFile{fs: n.fs, id: id}, nil
}

func (n *seqsDir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	if req.Dir {
		return fuse.ENOENT
	}
	id := strings.TrimSuffix(req.Name, ".seq")
	if id == req.Name {
		return fuse.ENOENT
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.fs.cat.Tombstone(ctx, id); err != nil {
		return toErrno(err)
	}
	n.fs.ov.Drop(id)
	n.fs.store.Forget(id)
	return nil
}

func (n *seqsDir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	other, ok := newDir.(*seqsDir)
	if !ok || other.fs != n.fs {
		return fuse.Errno(syscall.ENOTSUP)
	}
	oldID := strings.TrimSuffix(req.OldName, ".seq")
	newID := strings.TrimSuffix(req.NewName, ".seq")
	if oldID == req.OldName || newID == req.NewName {
		return fuse.Errno(syscall.EINVAL)
	}
	if ok, reason := fastaparse.ValidID(newID); !ok {
		return toErrno(ferrors.Newf(ferrors.InvalidArgument, "invalid fragment id %q: %s", newID, reason))
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.fs.cat.Rename(ctx, oldID, newID, n.fs.allowOverwrite); err != nil {
		return toErrno(err)
	}
	if oldID != newID {
		// A successful rename onto an existing id tombstoned that fragment;
		// discard its pending buffer and resident payload.
		n.fs.ov.Drop(newID)
		n.fs.store.Forget(newID)
	}
	n.fs.ov.Rename(oldID, newID)
	n.fs.store.Rename(oldID, newID)
	return nil
}

type seqsFile struct {
	fs *FS
	id string
}

func (n *seqsFile) Attr(ctx context.Context, a *fuse.Attr) error {
	n.fs.mu.Lock()
	f, ok, err := n.fs.cat.GetActiveByID(ctx, n.id)
	if err != nil {
		n.fs.mu.Unlock()
		return toErrno(err)
	}
	if !ok {
		n.fs.mu.Unlock()
		return fuse.ENOENT
	}
	raw, err := effectiveRawPayload(f, n.fs.store, n.fs.ov)
	n.fs.mu.Unlock()
	if err != nil {
		return toErrno(err)
	}
	a.Mode = 0o644
	a.Size = uint64(len(raw))
	a.Mtime = time.Now()
	return nil
}

func (n *seqsFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	n.fs.mu.Lock()
	f, ok, err := n.fs.cat.GetActiveByID(ctx, n.id)
	if err != nil {
		n.fs.mu.Unlock()
		return toErrno(err)
	}
	if !ok {
		n.fs.mu.Unlock()
		return fuse.ENOENT
	}
	if f.Pending {
		buf, _ := n.fs.ov.Get(n.id)
		n.fs.mu.Unlock()
		dst := make([]byte, req.Size)
		got, err := buf.ReadAt(dst, req.Offset)
		if err != nil {
			return toErrno(err)
		}
		resp.Data = dst[:got]
		return nil
	}
	n.fs.mu.Unlock()

	// Release the coarse lock for the actual byte copy (§5).
	raw, err := n.fs.store.RawPayload(n.id, f.PayloadStart, f.PayloadEnd)
	if err != nil {
		return toErrno(err)
	}
	resp.Data = sliceWindow(raw, req.Offset, req.Size)
	return nil
}

func (n *seqsFile) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	if err := overlay.ValidateSeqWrite(req.Data); err != nil {
		return toErrno(err)
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	f, ok, err := n.fs.cat.GetActiveByID(ctx, n.id)
	if err != nil {
		return toErrno(err)
	}
	if !ok {
		return fuse.ENOENT
	}
	buf, err := n.fs.ov.EnsureBuffer(n.id, func() ([]byte, error) {
		return n.fs.store.RawPayload(n.id, f.PayloadStart, f.PayloadEnd)
	})
	if err != nil {
		return toErrno(err)
	}
	if err := buf.WriteAt(req.Offset, req.Data); err != nil {
		return toErrno(err)
	}
	if err := n.fs.cat.SetPending(ctx, n.id, true); err != nil {
		return toErrno(err)
	}
	if err := n.recomputeLength(ctx, buf); err != nil {
		return toErrno(err)
	}
	resp.Size = len(req.Data)
	return nil
}

// Setattr only handles truncation (§4.6 "mutable by arbitrary ...
// truncate(new_size) operations"); other attribute changes are accepted
// as no-ops, matching the teacher's read-only nodes which never implement
// Setattr at all and so never reject any attribute write from the kernel.
func (n *seqsFile) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if !req.Valid.Size() {
		return nil
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	f, ok, err := n.fs.cat.GetActiveByID(ctx, n.id)
	if err != nil {
		return toErrno(err)
	}
	if !ok {
		return fuse.ENOENT
	}
	buf, err := n.fs.ov.EnsureBuffer(n.id, func() ([]byte, error) {
		return n.fs.store.RawPayload(n.id, f.PayloadStart, f.PayloadEnd)
	})
	if err != nil {
		return toErrno(err)
	}
	if err := buf.Truncate(int64(req.Size)); err != nil {
		return toErrno(err)
	}
	if err := n.fs.cat.SetPending(ctx, n.id, true); err != nil {
		return toErrno(err)
	}
	if err := n.recomputeLength(ctx, buf); err != nil {
		return toErrno(err)
	}
	resp.Attr.Mode = 0o644
	resp.Attr.Size = req.Size
	return nil
}

// recomputeLength keeps the catalog's cached logical_length in sync so
// infos.* and fasta/<id>.fa reflect the overlay immediately (§4.6). Caller
// must hold fs.mu.
func (n *seqsFile) recomputeLength(ctx context.Context, buf *overlay.Buffer) error {
	raw, err := buf.Bytes()
	if err != nil {
		return err
	}
	return n.fs.cat.SetLogicalLength(ctx, n.id, overlay.LogicalLength(raw))
}

var (
	_ fs.Node               = (*seqsDir)(nil)
	_ fs.HandleReadDirAller = (*seqsDir)(nil)
	_ fs.NodeStringLookuper = (*seqsDir)(nil)
	_ fs.NodeRemover        = (*seqsDir)(nil)
	_ fs.NodeRenamer        = (*seqsDir)(nil)

	_ fs.Node          = (*seqsFile)(nil)
	_ fs.HandleReader  = (*seqsFile)(nil)
	_ fs.HandleWriter  = (*seqsFile)(nil)
	_ fs.NodeSetattrer = (*seqsFile)(nil)
)
