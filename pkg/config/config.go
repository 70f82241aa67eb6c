// Package config loads and saves the node's gridspeak.toml file and
// implements the channels.ConfigPersister contract so the channel
// directory can durably record locally added/removed channels. TOML
// codec: github.com/BurntSushi/toml. Environment overrides, applied
// after the file load, use github.com/caarlos0/env/v11 with the
// GRIDSPEAK_ prefix.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// DefaultBindAddr is the REST API bind address used when gridspeak.toml and
// the environment are both silent.
const DefaultBindAddr = "127.0.0.1:7070"

// DefaultTopic is the gossipsub topic every node subscribes to absent an
// override.
const DefaultTopic = "gridspeak-global"

// DefaultChannels seeds a freshly generated config; "general" is the root
// channel and is always present regardless of what's listed here.
var DefaultChannels = []string{"general"}

// ErrIO wraps filesystem failures reading or writing gridspeak.toml.
var ErrIO = errors.New("config: io error")

// Config is the node's full TOML-backed configuration. Fields are
// exported so BurntSushi/toml can (de)serialize them directly; the
// `env` tags let caarlos0/env/v11 overlay GRIDSPEAK_-prefixed variables
// on top of the file-sourced values.
type Config struct {
	DataDir        string   `toml:"data_dir" env:"DATA_DIR"`
	Topic          string   `toml:"topic" env:"TOPIC"`
	Nickname       string   `toml:"nickname" env:"NICKNAME"`
	ListenAddr     string   `toml:"listen_addr" env:"LISTEN_ADDR"`
	APIBindAddr    string   `toml:"api_bind_addr" env:"API_BIND_ADDR"`
	BootstrapNodes []string `toml:"bootstrap_nodes" env:"BOOTSTRAP_NODES" envSeparator:","`
	Channels       []string `toml:"channels" env:"CHANNELS" envSeparator:","`

	path string
	mu   sync.Mutex
}

// Load reads path, applies GRIDSPEAK_ environment overrides, and fills
// in defaults for anything still zero-valued. If path does not exist, a
// default Config is written to it first so subsequent runs and
// print-config have a file to read.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeDefault(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrIO, path, err)
	}
	cfg.path = path

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "GRIDSPEAK_"}); err != nil {
		return nil, fmt.Errorf("config: env override: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrIO, dir, err)
		}
	}

	cfg := &Config{
		DataDir:     "./data",
		Topic:       DefaultTopic,
		Nickname:    defaultNickname(),
		ListenAddr:  "/ip4/0.0.0.0/tcp/0",
		APIBindAddr: DefaultBindAddr,
		Channels:    append([]string(nil), DefaultChannels...),
	}
	return cfg.writeTo(path)
}

// defaultNickname reports the OS username, falling back to "node" if the
// current user cannot be determined.
func defaultNickname() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "node"
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Nickname == "" {
		c.Nickname = defaultNickname()
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "/ip4/0.0.0.0/tcp/0"
	}
	if c.APIBindAddr == "" {
		c.APIBindAddr = DefaultBindAddr
	}
	if len(c.Channels) == 0 {
		c.Channels = append([]string(nil), DefaultChannels...)
	}
}

func (c *Config) writeTo(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIO, tmp, err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: encode %s: %v", ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: close %s: %v", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrIO, path, err)
	}
	return nil
}

// Save persists the current in-memory config back to its source path.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeTo(c.path)
}

// AddChannel appends name to the persisted channel list if not already
// present, satisfying channels.ConfigPersister. Idempotent.
func (c *Config) AddChannel(name string) error {
	c.mu.Lock()
	for _, existing := range c.Channels {
		if existing == name {
			c.mu.Unlock()
			return nil
		}
	}
	c.Channels = append(c.Channels, name)
	c.mu.Unlock()
	return c.Save()
}

// RemoveChannel drops name from the persisted channel list, satisfying
// channels.ConfigPersister. A no-op if name is absent.
func (c *Config) RemoveChannel(name string) error {
	c.mu.Lock()
	kept := make([]string, 0, len(c.Channels))
	for _, existing := range c.Channels {
		if existing != name {
			kept = append(kept, existing)
		}
	}
	c.Channels = kept
	c.mu.Unlock()
	return c.Save()
}

// Path returns the file this config was loaded from.
func (c *Config) Path() string {
	return c.path
}
