// Package chatstore implements the per-channel append-only chat journal:
// a JSON snapshot file, idempotent append, and a defensive-copy reader.
// Snapshots are flushed via a temp file and rename so a crash mid-write
// never leaves a truncated journal.
package chatstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gridspeak/node/pkg/chatmodel"
)

// ErrIO is returned when a disk read/write/rename fails.
var ErrIO = errors.New("chatstore: io error")

// ErrSerialization is returned when the on-disk snapshot cannot be decoded
// or a snapshot cannot be encoded for writing.
var ErrSerialization = errors.New("chatstore: serialization error")

// snapshot is the on-disk shape of a channel's journal file:
// { "messages": [ ChatMessage, ... ] }
type snapshot struct {
	Messages []chatmodel.ChatMessage `json:"messages"`
}

// Store is a single channel's append-only journal, guarded by one
// reader/writer lock protecting both the in-memory list and the file.
type Store struct {
	path string
	mu   sync.RWMutex
	data snapshot
}

// Open parses the journal at path if it exists, or creates a new empty
// snapshot and writes it. Parent directories are created as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", ErrIO, dir, err)
		}
	}

	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var snap snapshot
		if jsonErr := json.Unmarshal(raw, &snap); jsonErr != nil {
			return nil, fmt.Errorf("%w: decoding %s: %v", ErrSerialization, path, jsonErr)
		}
		s.data = snap
	case os.IsNotExist(err):
		s.data = snapshot{Messages: []chatmodel.ChatMessage{}}
		if flushErr := s.flushLocked(); flushErr != nil {
			return nil, flushErr
		}
	default:
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
	}

	return s, nil
}

// Append inserts message at the tail unless an entry with the same ID
// already exists, in which case it is a no-op (idempotent de-dup). The
// full snapshot is rewritten to disk on every successful insert.
func (s *Store) Append(message chatmodel.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.Messages {
		if existing.ID == message.ID {
			return nil
		}
	}

	s.data.Messages = append(s.data.Messages, message)
	return s.flushLocked()
}

// flushLocked writes the whole snapshot to disk. Caller must hold s.mu.
func (s *Store) flushLocked() error {
	encoded, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrSerialization, s.path, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: renaming %s: %v", ErrIO, tmp, err)
	}
	return nil
}

// Messages returns a defensive copy of the current message list.
func (s *Store) Messages() []chatmodel.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chatmodel.ChatMessage, len(s.data.Messages))
	copy(out, s.data.Messages)
	return out
}

// Len returns the current message count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Messages)
}

// Path reports the journal file path this store was opened with.
func (s *Store) Path() string {
	return s.path
}
