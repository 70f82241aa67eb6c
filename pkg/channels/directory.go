// Package channels owns the mutable channel directory: the set of known
// chat channel names and the lazily-materialized chat log store backing
// each one. Lookups take a read lock that is released before a message
// append, so a slow append flush never blocks directory reads. Creating
// a store for a newly added channel happens under the write lock.
package channels

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gridspeak/node/pkg/chatmodel"
	"github.com/gridspeak/node/pkg/chatstore"
	"github.com/gridspeak/node/pkg/logger"
)

// RootChannel is the channel guaranteed to exist on every node. It cannot
// be removed, locally or by a remote advertisement.
const RootChannel = "general"

const maxNameLength = 64

// ErrInvalidName is returned when a channel name fails the naming rules.
var ErrInvalidName = errors.New("channels: invalid channel name")

// ErrProtectedChannel is returned when the caller attempts to remove the root channel.
var ErrProtectedChannel = errors.New("channels: root channel cannot be removed")

// ConfigPersister is the subset of the config collaborator the directory
// needs to persist local mutations; it is never invoked for
// remote-originated changes.
type ConfigPersister interface {
	AddChannel(name string) error
	RemoveChannel(name string) error
}

// Directory is the ordered-with-unique-membership set of channel names,
// plus the store mapping that backs each one. Stores never reference the
// Directory back.
type Directory struct {
	dataDir string
	config  ConfigPersister

	mu     sync.RWMutex
	names  []string
	stores map[string]*chatstore.Store
}

// Open constructs the directory for the given channel names, opening
// (or creating) a Store for each one. It performs the legacy
// journal migration before opening any store: if dataDir contains
// messages.json and no messages-general.json, the legacy file is renamed
// in place.
func Open(dataDir string, initialChannels []string, config ConfigPersister) (*Directory, error) {
	if err := migrateLegacyJournal(dataDir); err != nil {
		return nil, err
	}

	d := &Directory{
		dataDir: dataDir,
		config:  config,
		stores:  make(map[string]*chatstore.Store),
	}

	channels := initialChannels
	if !containsName(channels, RootChannel) {
		channels = append([]string{RootChannel}, channels...)
	}

	for _, name := range channels {
		store, err := chatstore.Open(storePath(dataDir, name))
		if err != nil {
			return nil, err
		}
		d.names = append(d.names, name)
		d.stores[name] = store
	}

	return d, nil
}

func migrateLegacyJournal(dataDir string) error {
	legacy := filepath.Join(dataDir, "messages.json")
	target := filepath.Join(dataDir, storeFileName(RootChannel))

	if _, err := os.Stat(legacy); err != nil {
		return nil // no legacy file, nothing to do
	}
	if _, err := os.Stat(target); err == nil {
		return nil // target already exists, a prior partial migration must not be clobbered
	}

	if err := os.Rename(legacy, target); err != nil {
		return fmt.Errorf("%w: migrating legacy journal: %v", chatstore.ErrIO, err)
	}
	logger.InfoCF("directory", "migrated legacy journal", map[string]any{
		"from": legacy,
		"to":   target,
	})
	return nil
}

func storeFileName(name string) string {
	return fmt.Sprintf("messages-%s.json", name)
}

func storePath(dataDir, name string) string {
	return filepath.Join(dataDir, storeFileName(name))
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// normalizeName trims and lowercases a candidate channel name and
// validates it: length 1-64, ASCII alphanumeric, '-' or '_' only.
func normalizeName(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if len(name) < 1 || len(name) > maxNameLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, raw)
	}
	for _, r := range name {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, raw)
		}
	}
	return name, nil
}

// List returns a snapshot of the current channel names.
func (d *Directory) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// GetStore returns the store for name, or nil if the channel is unknown.
func (d *Directory) GetStore(name string) *chatstore.Store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stores[name]
}

// AddLocal validates and normalizes name, then adds it to the directory
// and persists the change via the config collaborator. A name already
// present returns success without change.
func (d *Directory) AddLocal(raw string) error {
	name, err := normalizeName(raw)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if containsName(d.names, name) {
		d.mu.Unlock()
		return nil
	}
	store, err := chatstore.Open(storePath(d.dataDir, name))
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.names = append(d.names, name)
	d.stores[name] = store
	d.mu.Unlock()

	if d.config != nil {
		if err := d.config.AddChannel(name); err != nil {
			logger.WarnCF("directory", "failed to persist channel to config", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// MergeRemote adds any unknown names from an incoming channel-list
// advertisement. It never shrinks the directory and never touches the
// config file: remote adverts are not authoritative for local
// configuration.
func (d *Directory) MergeRemote(names []string) {
	for _, raw := range names {
		name, err := normalizeName(raw)
		if err != nil {
			continue
		}

		d.mu.Lock()
		if containsName(d.names, name) {
			d.mu.Unlock()
			continue
		}
		store, err := chatstore.Open(storePath(d.dataDir, name))
		if err != nil {
			d.mu.Unlock()
			logger.WarnCF("directory", "failed to open store for merged channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
			continue
		}
		d.names = append(d.names, name)
		d.stores[name] = store
		d.mu.Unlock()
	}
}

// RemoveLocal removes name from the directory and persists the change.
// Removing the root channel is rejected with ErrProtectedChannel. The
// on-disk journal file is deliberately retained.
func (d *Directory) RemoveLocal(name string) error {
	if name == RootChannel {
		return ErrProtectedChannel
	}

	d.removeInMemory(name)

	if d.config != nil {
		if err := d.config.RemoveChannel(name); err != nil {
			logger.WarnCF("directory", "failed to persist channel removal to config", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// RemoveRemote applies an in-memory-only removal from a remote
// channel_removed envelope, ignoring attempts to remove the root channel.
func (d *Directory) RemoveRemote(name string) {
	if name == RootChannel {
		return
	}
	d.removeInMemory(name)
}

func (d *Directory) removeInMemory(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, n := range d.names {
		if n == name {
			d.names = append(d.names[:i], d.names[i+1:]...)
			break
		}
	}
	delete(d.stores, name)
}

// Append delegates to the store for channel if present. A message for an
// unknown channel is silently dropped.
func (d *Directory) Append(channel string, message chatmodel.ChatMessage) error {
	store := d.GetStore(channel)
	if store == nil {
		return nil
	}
	return store.Append(message)
}

// MessageCount sums the message count across every known channel,
// derived at query time rather than kept as a running tally that could
// drift from the logs.
func (d *Directory) MessageCount() int {
	total := 0
	for _, name := range d.List() {
		if store := d.GetStore(name); store != nil {
			total += store.Len()
		}
	}
	return total
}
