package cache

import (
	"bytes"
	"testing"
)

func TestAdmitAndLookup(t *testing.T) {
	c := New(1<<20, 1<<10)

	if !c.Admit("/a", []byte("hello")) {
		t.Fatal("expected admit to succeed")
	}

	entry, ok := c.Lookup("/a")
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if !bytes.Equal(entry.Payload, []byte("hello")) {
		t.Fatalf("unexpected payload: %q", entry.Payload)
	}

	if _, ok := c.Lookup("/missing"); ok {
		t.Fatal("expected lookup miss")
	}
}

func TestAdmitRejectsOversizedElement(t *testing.T) {
	c := New(1<<20, 16)

	payload := bytes.Repeat([]byte("x"), 17)
	if c.Admit("/big", payload) {
		t.Fatal("expected admit to reject payload over maxElementSize")
	}
	if _, ok := c.Lookup("/big"); ok {
		t.Fatal("rejected entry should not be cached")
	}
}

func TestAdmitBoundaryAtExactlyMaxElementSize(t *testing.T) {
	maxElem := entrySize("/k", bytes.Repeat([]byte("x"), 8))
	c := New(1<<20, maxElem)

	if !c.Admit("/k", bytes.Repeat([]byte("x"), 8)) {
		t.Fatal("expected admit to accept an entry whose accounted size is exactly maxElementSize")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	elemSize := entrySize("/0", []byte("x"))
	c := New(elemSize*2, elemSize*10)

	c.Admit("/a", []byte("x"))
	c.Admit("/b", []byte("x"))

	// Touch /a so /b becomes the least-recently-used entry.
	if _, ok := c.Lookup("/a"); !ok {
		t.Fatal("expected /a to be cached")
	}

	c.Admit("/c", []byte("x"))

	if _, ok := c.Lookup("/b"); ok {
		t.Fatal("expected /b to have been evicted as least-recently-used")
	}
	if _, ok := c.Lookup("/a"); !ok {
		t.Fatal("expected /a to survive eviction")
	}
	if _, ok := c.Lookup("/c"); !ok {
		t.Fatal("expected /c to be cached")
	}
}

func TestAdmitUpsertReplacesPayloadAndPromotes(t *testing.T) {
	c := New(1<<20, 1<<10)

	c.Admit("/a", []byte("first"))
	c.Admit("/a", []byte("second"))

	entry, ok := c.Lookup("/a")
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if string(entry.Payload) != "second" {
		t.Fatalf("expected upsert to replace payload, got %q", entry.Payload)
	}

	_, entries := c.Size()
	if entries != 1 {
		t.Fatalf("expected exactly one entry after upsert, got %d", entries)
	}
}

func TestSizeTracksTotalAndEntries(t *testing.T) {
	c := New(1<<20, 1<<10)

	c.Admit("/a", []byte("hello"))
	c.Admit("/b", []byte("world!"))

	size, entries := c.Size()
	if entries != 2 {
		t.Fatalf("expected 2 entries, got %d", entries)
	}
	want := entrySize("/a", []byte("hello")) + entrySize("/b", []byte("world!"))
	if size != want {
		t.Fatalf("expected total size %d, got %d", want, size)
	}
}
