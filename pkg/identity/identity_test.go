package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateGeneratesThenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.bin")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("first LoadOrCreate: %v", err)
	}
	if first.Peer == "" {
		t.Fatalf("expected non-empty peer id")
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate: %v", err)
	}

	if first.Peer != second.Peer {
		t.Fatalf("peer id not stable across reload: %s != %s", first.Peer, second.Peer)
	}
}

func TestLoadOrCreateRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.bin")

	if err := os.WriteFile(path, []byte{0xff, 0xff, 0xff}, 0o600); err != nil {
		t.Fatalf("seed garbage file: %v", err)
	}

	if _, err := LoadOrCreate(path); err == nil {
		t.Fatalf("expected decode error for garbage identity.bin")
	}
}
