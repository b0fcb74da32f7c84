// Package catalog implements the Fragment Catalog (§4.3): the dual
// id/inode-indexed entity store, backed by an in-memory sqlite database
// queried through database/sql — the same shape avogabo-EDRmount's
// fusefs.* nodes use against their own sqlite-backed job store
// (n.fs.Jobs.DB().SQL.QueryContext(...) for every listing and lookup).
//
// Catalog is not internally synchronized: per §5's coarse-lock concurrency
// model, the caller (internal/vfs) holds a single mutex around the Catalog,
// the Virtual Tree, and the Write Overlay together, so no method here takes
// its own lock.
package catalog

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"

	"golang.org/x/text/unicode/norm"

	"github.com/delehef/fusta/internal/ferrors"
)

// Fixed inode numbers, allocated before any fragment. Dynamic fragment
// inodes start at firstDynamicIno.
const (
	InoRoot = uint64(iota + 1)
	InoFasta
	InoSeqs
	InoGet
	InoAppend
	InoInfosCSV
	InoInfosTxt
	InoLabelsTxt

	firstDynamicIno = 100
)

// Fragment mirrors the data model of §3.
type Fragment struct {
	Seq           int64 // insertion order / rewrite order
	ID            string
	Extra         string
	HeaderStart   int64
	HeaderEnd     int64
	PayloadStart  int64
	PayloadEnd    int64
	LogicalLength int64
	InoFasta      uint64
	InoSeq        uint64
	InoGet        uint64
	Pending       bool
	Synthetic     bool // true for fragments produced by the Append Ingestor
	Tombstoned    bool
}

type Catalog struct {
	db         *sql.DB
	nextIno    uint64
	generation uint64
}

func Open(ctx context.Context) (*Catalog, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return nil, ferrors.Wrap(ferrors.IO, "open catalog database", err)
	}
	db.SetMaxOpenConns(1) // single shared in-memory connection; coarse lock serializes callers anyway
	const schema = `
CREATE TABLE fragments (
	seqno          INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	extra          TEXT NOT NULL,
	h_start        INTEGER NOT NULL,
	h_end          INTEGER NOT NULL,
	p_start        INTEGER NOT NULL,
	p_end          INTEGER NOT NULL,
	logical_length INTEGER NOT NULL,
	ino_fasta      INTEGER NOT NULL,
	ino_seq        INTEGER NOT NULL,
	ino_get        INTEGER NOT NULL,
	pending        INTEGER NOT NULL DEFAULT 0,
	synthetic      INTEGER NOT NULL DEFAULT 0,
	tombstoned     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_fragments_ino_fasta ON fragments(ino_fasta);
CREATE INDEX idx_fragments_ino_seq ON fragments(ino_seq);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, ferrors.Wrap(ferrors.IO, "create catalog schema", err)
	}
	return &Catalog{db: db, nextIno: firstDynamicIno}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// Generation returns a counter bumped on every mutation, usable to
// invalidate memoized infos.csv/infos.txt/labels.txt content (§4.4).
func (c *Catalog) Generation() uint64 { return c.generation }

func (c *Catalog) bump() { c.generation++ }

// AllocateInodeTriple hands out the three stable inode numbers for a new
// fragment (§3: one for fasta/<id>.fa, one for seqs/<id>.seq, one reserved
// for symbol lookup).
func (c *Catalog) AllocateInodeTriple() (fa, seq, get uint64) {
	fa, seq, get = c.nextIno, c.nextIno+1, c.nextIno+2
	c.nextIno += 3
	return
}

// Insert adds a new fragment. If id collides with an existing, non-
// tombstoned fragment: under allowOverwrite the prior one is tombstoned
// first (§4.3, §4.7); otherwise ferrors.Exists is returned.
func (c *Catalog) Insert(ctx context.Context, f Fragment, allowOverwrite bool) error {
	f.Extra = norm.NFC.String(f.Extra)
	existing, found, err := c.GetByID(ctx, f.ID)
	if err != nil {
		return err
	}
	if found && !existing.Tombstoned {
		if !allowOverwrite {
			return ferrors.Newf(ferrors.Exists, "fragment id already exists: %q", f.ID)
		}
		if _, err := c.db.ExecContext(ctx, `UPDATE fragments SET tombstoned=1 WHERE id=?`, f.ID); err != nil {
			return ferrors.Wrap(ferrors.IO, "tombstone prior fragment", err)
		}
	}
	_, err = c.db.ExecContext(ctx, `
INSERT INTO fragments (id, extra, h_start, h_end, p_start, p_end, logical_length, ino_fasta, ino_seq, ino_get, pending, synthetic, tombstoned)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,0)`,
		f.ID, f.Extra, f.HeaderStart, f.HeaderEnd, f.PayloadStart, f.PayloadEnd, f.LogicalLength,
		f.InoFasta, f.InoSeq, f.InoGet, boolInt(f.Pending), boolInt(f.Synthetic))
	if err != nil {
		return ferrors.Wrap(ferrors.IO, "insert fragment", err)
	}
	c.bump()
	return nil
}

func (c *Catalog) scanRow(row rowScanner) (Fragment, error) {
	var f Fragment
	var pending, synthetic, tombstoned int
	err := row.Scan(&f.Seq, &f.ID, &f.Extra, &f.HeaderStart, &f.HeaderEnd, &f.PayloadStart, &f.PayloadEnd,
		&f.LogicalLength, &f.InoFasta, &f.InoSeq, &f.InoGet, &pending, &synthetic, &tombstoned)
	f.Pending = pending != 0
	f.Synthetic = synthetic != 0
	f.Tombstoned = tombstoned != 0
	return f, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

const selectCols = `seqno, id, extra, h_start, h_end, p_start, p_end, logical_length, ino_fasta, ino_seq, ino_get, pending, synthetic, tombstoned`

func (c *Catalog) GetByID(ctx context.Context, id string) (Fragment, bool, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM fragments WHERE id=?`, id)
	f, err := c.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Fragment{}, false, nil
	}
	if err != nil {
		return Fragment{}, false, ferrors.Wrap(ferrors.IO, "query fragment by id", err)
	}
	return f, true, nil
}

// GetActiveByID returns the fragment only if it exists and is not
// tombstoned, the lookup behavior the Virtual Tree wants for fasta/ and
// seqs/ entries.
func (c *Catalog) GetActiveByID(ctx context.Context, id string) (Fragment, bool, error) {
	f, ok, err := c.GetByID(ctx, id)
	if err != nil || !ok || f.Tombstoned {
		return Fragment{}, false, err
	}
	return f, true, nil
}

// GetByIno resolves either a fasta/ or seqs/ inode back to its fragment,
// and reports which kind of entry it was ("fasta" or "seqs").
func (c *Catalog) GetByIno(ctx context.Context, ino uint64) (Fragment, string, bool, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM fragments WHERE ino_fasta=? AND tombstoned=0`, ino)
	if f, err := c.scanRow(row); err == nil {
		return f, "fasta", true, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Fragment{}, "", false, ferrors.Wrap(ferrors.IO, "query fragment by fasta inode", err)
	}
	row = c.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM fragments WHERE ino_seq=? AND tombstoned=0`, ino)
	if f, err := c.scanRow(row); err == nil {
		return f, "seqs", true, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Fragment{}, "", false, ferrors.Wrap(ferrors.IO, "query fragment by seqs inode", err)
	}
	return Fragment{}, "", false, nil
}

// IterActive returns every non-tombstoned fragment in insertion order.
func (c *Catalog) IterActive(ctx context.Context) ([]Fragment, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectCols+` FROM fragments WHERE tombstoned=0 ORDER BY seqno ASC`)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.IO, "list active fragments", err)
	}
	defer rows.Close()
	var out []Fragment
	for rows.Next() {
		f, err := c.scanRow(rows)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.IO, "scan fragment row", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Tombstone marks id as deleted; it stops appearing in any listing or
// lookup and is omitted by the Commit Engine (§4.6, unlink semantics).
func (c *Catalog) Tombstone(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE fragments SET tombstoned=1 WHERE id=? AND tombstoned=0`, id)
	if err != nil {
		return ferrors.Wrap(ferrors.IO, "tombstone fragment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ferrors.Newf(ferrors.NotFound, "no such active fragment: %q", id)
	}
	c.bump()
	return nil
}

// Rename changes a fragment's id in place, preserving its insertion
// position (§4.6, §8 scenario 6). Under allowOverwrite, a pre-existing
// active fragment named newID is tombstoned first; otherwise a collision is
// ferrors.Exists.
func (c *Catalog) Rename(ctx context.Context, oldID, newID string, allowOverwrite bool) error {
	cur, ok, err := c.GetActiveByID(ctx, oldID)
	if err != nil {
		return err
	}
	if !ok {
		return ferrors.Newf(ferrors.NotFound, "no such active fragment: %q", oldID)
	}
	if newID == oldID {
		return nil
	}
	if existing, found, err := c.GetActiveByID(ctx, newID); err != nil {
		return err
	} else if found {
		if !allowOverwrite {
			return ferrors.Newf(ferrors.Exists, "fragment id already exists: %q", newID)
		}
		if _, err := c.db.ExecContext(ctx, `UPDATE fragments SET tombstoned=1 WHERE seqno=?`, existing.Seq); err != nil {
			return ferrors.Wrap(ferrors.IO, "tombstone rename target", err)
		}
	}
	if _, err := c.db.ExecContext(ctx, `UPDATE fragments SET id=? WHERE seqno=?`, newID, cur.Seq); err != nil {
		return ferrors.Wrap(ferrors.IO, "rename fragment", err)
	}
	c.bump()
	return nil
}

// SetPending marks whether a fragment currently has an active overlay
// buffer, for Attr computation and commit-time rewrap decisions.
func (c *Catalog) SetPending(ctx context.Context, id string, pending bool) error {
	if _, err := c.db.ExecContext(ctx, `UPDATE fragments SET pending=? WHERE id=?`, boolInt(pending), id); err != nil {
		return ferrors.Wrap(ferrors.IO, "set pending flag", err)
	}
	c.bump()
	return nil
}

// SetLogicalLength updates the cached logical length, recomputed by the
// Write Overlay whenever a pending buffer is written or truncated (§4.6).
func (c *Catalog) SetLogicalLength(ctx context.Context, id string, n int64) error {
	if _, err := c.db.ExecContext(ctx, `UPDATE fragments SET logical_length=? WHERE id=?`, n, id); err != nil {
		return ferrors.Wrap(ferrors.IO, "set logical length", err)
	}
	c.bump()
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
