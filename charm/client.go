// ABOUTME: Charm KV client for the partner platform store
// ABOUTME: One process-wide client over a pluggable key-value backend with batched writes

package charm

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"
)

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}

// store is what the client needs from a key-value backend. *kv.KV satisfies it.
type store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
	Reset() error
}

// batchStore writes a whole batch in one transaction.
type batchStore interface {
	SetMany(pairs map[string][]byte) map[string]error
}

// prefixStore scans keys by prefix without listing the whole keyspace.
type prefixStore interface {
	KeysWithPrefix(prefix []byte) ([][]byte, error)
}

var (
	globalClient *Client
	clientOnce   sync.Once
	clientErr    error
)

// Client wraps the partner key-value store with config and sync helpers.
type Client struct {
	store  store
	config *Config
	mu     sync.RWMutex
}

// GetClient returns the process-wide client, opening it on first use.
func GetClient() (*Client, error) {
	clientOnce.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			clientErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		globalClient, clientErr = NewClient(cfg)
	})
	return globalClient, clientErr
}

// NewClient opens the partner database against cfg.Host.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// charm reads the server from the environment
	_ = os.Setenv("CHARM_HOST", cfg.Host)

	db, err := kv.OpenWithDefaults(AppName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	if cfg.AutoSync {
		_ = db.Sync()
	}

	return &Client{store: db, config: cfg}, nil
}

// Close releases the backend if it holds resources of its own.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if closer, ok := c.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Config returns the client's config.
func (c *Client) Config() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// ID returns the charm user ID for this device.
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// Sync performs a manual sync with the charm server.
func (c *Client) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Sync()
}

// Get retrieves a value by key.
func (c *Client) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Get(key)
}

// Set stores a value and syncs if enabled.
func (c *Client) Set(key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(key, value); err != nil {
		return err
	}
	c.autoSync()
	return nil
}

// SetMany stores a batch and syncs once if anything was written.
// Failures are reported per key; a failing key does not stop the others.
func (c *Client) SetMany(pairs map[string][]byte) map[string]error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var failures map[string]error
	if bs, ok := c.store.(batchStore); ok {
		failures = bs.SetMany(pairs)
	} else {
		failures = make(map[string]error)
		for k, v := range pairs {
			if err := c.store.Set([]byte(k), v); err != nil {
				failures[k] = err
			}
		}
	}

	if len(failures) < len(pairs) {
		c.autoSync()
	}
	return failures
}

// Delete removes a key and syncs if enabled.
func (c *Client) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(key); err != nil {
		return err
	}
	c.autoSync()
	return nil
}

// Keys returns all keys.
func (c *Client) Keys() ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Keys()
}

// KeysWithPrefix returns all keys starting with prefix.
func (c *Client) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if ps, ok := c.store.(prefixStore); ok {
		return ps.KeysWithPrefix(prefix)
	}

	all, err := c.store.Keys()
	if err != nil {
		return nil, err
	}
	var matched [][]byte
	for _, k := range all {
		if bytes.HasPrefix(k, prefix) {
			matched = append(matched, k)
		}
	}
	return matched, nil
}

// Reset wipes the local replica (use with caution!)
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Reset()
}

// autoSync pushes to the server while the caller still holds the write lock.
func (c *Client) autoSync() {
	if c.config.AutoSync {
		_ = c.store.Sync()
	}
}
