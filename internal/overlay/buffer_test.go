package overlay

import (
	"bytes"
	"testing"
)

func TestBufferWriteReadInMemory(t *testing.T) {
	acct := NewAccountant(1 << 20)
	buf, err := NewBuffer(acct, []byte("ACGTACGT"), t.TempDir(), "f")
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if err := buf.WriteAt(2, []byte("XX")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	dst := make([]byte, 8)
	n, err := buf.ReadAt(dst, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(dst[:n], []byte("ACXXACGT")) {
		t.Errorf("content = %q", dst[:n])
	}
}

func TestBufferGrowZeroFills(t *testing.T) {
	acct := NewAccountant(1 << 20)
	buf, err := NewBuffer(acct, []byte("AB"), t.TempDir(), "f")
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if err := buf.WriteAt(5, []byte("Z")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	out, err := buf.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{'A', 'B', 0, 0, 0, 'Z'}
	if !bytes.Equal(out, want) {
		t.Errorf("content = %v, want %v", out, want)
	}
}

func TestBufferTruncate(t *testing.T) {
	acct := NewAccountant(1 << 20)
	buf, err := NewBuffer(acct, []byte("ACGTACGT"), t.TempDir(), "f")
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if err := buf.Truncate(4); err != nil {
		t.Fatalf("Truncate shrink: %v", err)
	}
	if buf.Size() != 4 {
		t.Fatalf("Size = %d, want 4", buf.Size())
	}
	if err := buf.Truncate(6); err != nil {
		t.Fatalf("Truncate grow: %v", err)
	}
	out, err := buf.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(out, []byte{'A', 'C', 'G', 'T', 0, 0}) {
		t.Errorf("content = %v", out)
	}
}

func TestBufferSpillsPastCeiling(t *testing.T) {
	acct := NewAccountant(4) // tiny ceiling forces spill
	buf, err := NewBuffer(acct, []byte("ACGTACGT"), t.TempDir(), "f")
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	out, err := buf.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(out, []byte("ACGTACGT")) {
		t.Errorf("content after spill = %q", out)
	}
	if err := buf.WriteAt(0, []byte("XX")); err != nil {
		t.Fatalf("WriteAt after spill: %v", err)
	}
	out, _ = buf.Bytes()
	if !bytes.Equal(out, []byte("XXGTACGT")) {
		t.Errorf("content after spilled write = %q", out)
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestAccountant(t *testing.T) {
	a := NewAccountant(10)
	if !a.TryReserve(6) {
		t.Fatal("TryReserve(6) should succeed")
	}
	if a.TryReserve(6) {
		t.Fatal("TryReserve(6) should fail, exceeds ceiling")
	}
	a.Release(6)
	if a.Used() != 0 {
		t.Fatalf("Used() = %d, want 0", a.Used())
	}
	if !a.TryReserve(10) {
		t.Fatal("TryReserve(10) should succeed after release")
	}
}
