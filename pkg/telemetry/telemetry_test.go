package telemetry

import "testing"

func TestNotePeerOnlineOffline(t *testing.T) {
	tel := New()
	tel.NotePeerOnline("peerA")
	tel.NotePeerOnline("peerB")

	snap := tel.Snapshot()
	if len(snap.Peers) != 2 {
		t.Fatalf("expected 2 peers, got %v", snap.Peers)
	}

	tel.NotePeerOffline("peerA")
	snap = tel.Snapshot()
	if len(snap.Peers) != 1 || snap.Peers[0] != "peerB" {
		t.Fatalf("expected only peerB, got %v", snap.Peers)
	}
}

func TestNoteMessage(t *testing.T) {
	tel := New()
	if snap := tel.Snapshot(); snap.LastMessage != "" {
		t.Fatalf("expected empty last message initially, got %q", snap.LastMessage)
	}

	tel.NoteMessage("2024-01-01T00:00:00Z")
	if got := tel.Snapshot().LastMessage; got != "2024-01-01T00:00:00Z" {
		t.Fatalf("LastMessage = %q", got)
	}
}
