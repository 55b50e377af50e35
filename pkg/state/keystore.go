// Package state provides durable client-side session state. The only
// value persisted across runs is the access key of the most recently
// established session; it is written by the session gateway and read by
// every component that issues an authenticated backend call.
//
// The store is an explicit dependency injected at application start.
// Components never reach for ambient global state, which keeps the
// missing-session error path trivially testable.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoSession is returned when an access key is required but none has
// been stored. Callers treat it as fatal for the current operation and
// never retry it silently.
var ErrNoSession = errors.New("no session established (access key not found)")

// KeyStore is the contract for persisting the session access key.
type KeyStore interface {
	// SetAccessKey stores or overwrites the access key.
	SetAccessKey(key string) error
	// AccessKey retrieves the stored key. Returns ErrNoSession if absent.
	AccessKey() (string, error)
}

// InMemoryKeyStore is a thread-safe, volatile implementation. Useful for
// tests and for sessions that should not outlive the process.
type InMemoryKeyStore struct {
	mu  sync.RWMutex
	key string
	set bool
}

// NewInMemoryKeyStore creates an empty store.
func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{}
}

// SetAccessKey stores or overwrites the key in memory.
func (s *InMemoryKeyStore) SetAccessKey(key string) error {
	if key == "" {
		return errors.New("access key cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.set = true
	return nil
}

// AccessKey returns the stored key or ErrNoSession.
func (s *InMemoryKeyStore) AccessKey() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return "", ErrNoSession
	}
	return s.key, nil
}

// fileState is the YAML shape written to disk.
type fileState struct {
	AccessKey string    `yaml:"accessKey"`
	SavedAt   time.Time `yaml:"savedAt"`
}

// FileKeyStore persists the access key to a single YAML file with 0600
// permissions. Writes are atomic (temp file + rename).
type FileKeyStore struct {
	path string
	mu   sync.Mutex
}

// NewFileKeyStore creates a store backed by path. An empty path selects
// DefaultStatePath.
func NewFileKeyStore(path string) *FileKeyStore {
	if path == "" {
		path = DefaultStatePath()
	}
	return &FileKeyStore{path: path}
}

// Path returns the backing file path.
func (s *FileKeyStore) Path() string { return s.path }

// SetAccessKey writes the key to the backing file, overwriting any prior
// value.
func (s *FileKeyStore) SetAccessKey(key string) error {
	if key == "" {
		return errors.New("access key cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("state: mkdir failed: %w", err)
	}

	out, err := yaml.Marshal(fileState{AccessKey: key, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("state: marshal failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session.tmp-*")
	if err != nil {
		return fmt.Errorf("state: temp create failed: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(out); err != nil {
		return fmt.Errorf("state: temp write failed: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("state: chmod failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("state: sync failed: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("state: atomic rename failed: %w", err)
	}
	return nil
}

// AccessKey reads the stored key. A missing or empty file yields
// ErrNoSession; any other read failure is returned as-is.
func (s *FileKeyStore) AccessKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("state: read failed: %w", err)
	}

	var fs fileState
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return "", fmt.Errorf("state: parse failed: %w", err)
	}
	if fs.AccessKey == "" {
		return "", ErrNoSession
	}
	return fs.AccessKey, nil
}

// DefaultStatePath returns the per-user location of the session file.
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		home, herr := os.UserHomeDir()
		if herr != nil || home == "" {
			return filepath.Join(".", ".devsecops-console", "session.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "devsecops-console", "session.yaml")
}
