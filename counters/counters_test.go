package counters

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestInMemoryBlock(t *testing.T) {
	b, err := Open("", "a", "b")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b.Get("a").Add(3)
	b.Get("a").Add(4)
	if got := b.Get("a").Value(); got != 7 {
		t.Fatalf("a = %d, want 7", got)
	}
	if got := b.Get("b").Value(); got != 0 {
		t.Fatalf("b = %d, want 0", got)
	}
}

func TestFileBackedBlock(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, "out-ipv4-frag")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b.Get("out-ipv4-frag").Add(42)

	// Another reader of the shared file sees the published value.
	raw, err := os.ReadFile(filepath.Join(dir, "out-ipv4-frag"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := binary.LittleEndian.Uint64(raw); got != 42 {
		t.Fatalf("published value = %d, want 42", got)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestReopenKeepsValue(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir, "c")
	b.Get("c").Add(5)
	b.Close()

	b2, err := Open(dir, "c")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b2.Close()
	if got := b2.Get("c").Value(); got != 5 {
		t.Fatalf("value after reopen = %d, want 5", got)
	}
}
