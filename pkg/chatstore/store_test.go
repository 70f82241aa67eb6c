package chatstore

import (
	"path/filepath"
	"testing"

	"github.com/gridspeak/node/pkg/chatmodel"
)

func TestAppendIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "messages-general.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	msg := chatmodel.New("alice", "hello")
	for i := 0; i < 3; i++ {
		if err := store.Append(msg); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
	}

	if got := store.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages-general.json")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	msgs := []chatmodel.ChatMessage{
		chatmodel.New("alice", "one"),
		chatmodel.New("bob", "two"),
		chatmodel.New("alice", "three"),
	}
	for _, m := range msgs {
		if err := store.Append(m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	got := reopened.Messages()
	if len(got) != len(msgs) {
		t.Fatalf("len(Messages()) = %d, want %d", len(got), len(msgs))
	}
	for i, m := range msgs {
		if got[i].ID != m.ID || got[i].Body != m.Body {
			t.Fatalf("message %d = %+v, want %+v", i, got[i], m)
		}
	}
}

func TestMessagesIsDefensiveCopy(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "messages-general.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := store.Append(chatmodel.New("alice", "hello")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	copy1 := store.Messages()
	copy1[0].Body = "mutated"

	copy2 := store.Messages()
	if copy2[0].Body == "mutated" {
		t.Fatalf("Messages() leaked internal state")
	}
}
