package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	data := []byte{0x89, 'P', 'N', 'G'}
	key, err := store.Write(context.Background(), "nike_1_123.png", data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "nike_1_123.png" {
		t.Fatalf("key = %q", key)
	}
	got, err := store.Read(key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read bytes mismatch")
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"", "../escape.png", "a/../../b.png"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("key %q: expected error", key)
		}
	}
}

func TestPublicURL(t *testing.T) {
	got := PublicURL("http://localhost:3001/", "/nike_1.png")
	want := "http://localhost:3001/uploads/nike_1.png"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}
