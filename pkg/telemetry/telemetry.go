// Package telemetry tracks live peer reachability and the timestamp of
// the most recently observed message. The peer set and the last-message
// slot are guarded by independent locks so writers to one never contend
// with readers of the other.
package telemetry

import "sync"

// Telemetry is process-lifetime, concurrency-safe state shared across the
// mesh engine, the discovery/transport event handlers, and the API surface.
type Telemetry struct {
	peersMu sync.RWMutex
	peers   map[string]struct{}

	lastMu      sync.RWMutex
	lastMessage string
}

// New returns an empty Telemetry.
func New() *Telemetry {
	return &Telemetry{peers: make(map[string]struct{})}
}

// NotePeerOnline marks id as reachable.
func (t *Telemetry) NotePeerOnline(id string) {
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	t.peers[id] = struct{}{}
}

// NotePeerOffline marks id as no longer reachable.
func (t *Telemetry) NotePeerOffline(id string) {
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	delete(t.peers, id)
}

// NoteMessage records the RFC-3339 timestamp of the most recently observed
// message, local or remote.
func (t *Telemetry) NoteMessage(timestamp string) {
	t.lastMu.Lock()
	defer t.lastMu.Unlock()
	t.lastMessage = timestamp
}

// Snapshot is a defensive copy of the current peer set and last-message timestamp.
type Snapshot struct {
	Peers       []string
	LastMessage string
}

// Snapshot returns a copy of the peer set and the last-message timestamp.
func (t *Telemetry) Snapshot() Snapshot {
	t.peersMu.RLock()
	peers := make([]string, 0, len(t.peers))
	for p := range t.peers {
		peers = append(peers, p)
	}
	t.peersMu.RUnlock()

	t.lastMu.RLock()
	last := t.lastMessage
	t.lastMu.RUnlock()

	return Snapshot{Peers: peers, LastMessage: last}
}
