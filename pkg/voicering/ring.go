// Package voicering holds the bounded in-memory ring of recently relayed
// VoiceSignal payloads. A single writer lock guards both push and trim,
// held only briefly.
package voicering

import (
	"sync"

	"github.com/gridspeak/node/pkg/bus"
)

// DefaultCapacity bounds how many relayed signals the ring retains.
const DefaultCapacity = 200

// Ring is a bounded, push-order FIFO of voice signals.
type Ring struct {
	mu       sync.Mutex
	capacity int
	entries  []bus.VoiceSignal
}

// New constructs a Ring with the given capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{capacity: capacity}
}

// Push appends sig and, if the ring now exceeds its capacity, drains the
// oldest excess entries in one operation so the ring holds exactly the
// most recently pushed `capacity` signals, in push order.
func (r *Ring) Push(sig bus.VoiceSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, sig)
	if excess := len(r.entries) - r.capacity; excess > 0 {
		r.entries = append([]bus.VoiceSignal{}, r.entries[excess:]...)
	}
}

// Snapshot returns a defensive copy of the ring contents, in push order.
func (r *Ring) Snapshot() []bus.VoiceSignal {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]bus.VoiceSignal, len(r.entries))
	copy(out, r.entries)
	return out
}
