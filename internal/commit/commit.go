// Package commit implements the Commit Engine (§4.8): the single rewrite of
// the backing FASTA file performed at unmount.
package commit

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/delehef/fusta/internal/backing"
	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/ferrors"
	"github.com/delehef/fusta/internal/overlay"
)

const wrapWidth = 60

// resolve produces the bytes this engine writes for one fragment's payload.
// Untouched fragments stream their exact original bytes, embedded newlines
// included; anything with an active overlay buffer, or produced by the
// Append Ingestor, is rewrapped fresh at wrapWidth columns (§4.8:
// "byte-for-byte layout equivalence is not guaranteed" for those).
func resolve(f catalog.Fragment, store *backing.Store, ov *overlay.Overlay) ([]byte, error) {
	if f.Pending {
		buf, ok := ov.Get(f.ID)
		if !ok {
			return nil, ferrors.Newf(ferrors.IO, "fragment %q marked pending with no overlay buffer", f.ID)
		}
		raw, err := buf.Bytes()
		if err != nil {
			return nil, err
		}
		return overlay.Wrap(overlay.StripNewlines(raw), wrapWidth), nil
	}

	raw, err := store.RawPayload(f.ID, f.PayloadStart, f.PayloadEnd)
	if err != nil {
		return nil, err
	}
	if f.Synthetic {
		return overlay.Wrap(overlay.StripNewlines(raw), wrapWidth), nil
	}
	return raw, nil
}

// Write rewrites destPath to reflect every active (non-tombstoned) fragment
// in cat, in insertion order, via a temporary file in the same directory
// renamed atomically over the source (§4.8). On any failure the temporary
// file is removed and destPath is left untouched.
func Write(ctx context.Context, destPath string, cat *catalog.Catalog, store *backing.Store, ov *overlay.Overlay) error {
	frags, err := cat.IterActive(ctx)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	tmpPath := filepath.Join(dir, ".fusta-commit-"+uuid.NewString())
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ferrors.Wrap(ferrors.IO, "create commit temp file", err)
	}

	payloads := make([][]byte, len(frags))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range frags {
		i, f := i, f
		g.Go(func() error {
			raw, err := resolve(f, store, ov)
			if err != nil {
				return err
			}
			payloads[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	w := bufio.NewWriterSize(tmp, 1<<20)
	for i, f := range frags {
		if err := writeHeader(w, f); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return ferrors.Wrap(ferrors.IO, "write commit header", err)
		}
		if _, err := w.Write(payloads[i]); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return ferrors.Wrap(ferrors.IO, "write commit payload", err)
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.IO, "flush commit temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.IO, "sync commit temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.IO, "close commit temp file", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return ferrors.Wrap(ferrors.IO, "rename commit temp file over source", err)
	}
	return nil
}

func writeHeader(w *bufio.Writer, f catalog.Fragment) error {
	if _, err := w.WriteString(">"); err != nil {
		return err
	}
	if _, err := w.WriteString(f.ID); err != nil {
		return err
	}
	if f.Extra != "" {
		if _, err := w.WriteString(" "); err != nil {
			return err
		}
		if _, err := w.WriteString(f.Extra); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}
