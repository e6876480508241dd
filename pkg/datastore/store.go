package datastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	xdgAppName = "notedo"
	dataFile   = "data.json"
)

// Store is the single JSON blob shared by settings, task mappings and the
// calendar caches. Every writer merges its own keys so nobody clobbers the
// others.
type Store struct {
	Path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{Path: path}
}

// DefaultPath returns $XDG_CONFIG_HOME/notedo/data.json, falling back to
// ~/.config/notedo/data.json.
func DefaultPath() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, xdgAppName, dataFile), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName, dataFile), nil
}

// Load returns the top-level keys of the blob. A missing file is an empty blob.
func (s *Store) Load() (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (map[string]json.RawMessage, error) {
	data := make(map[string]json.RawMessage)
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.Path, err)
	}
	return data, nil
}

func (s *Store) save(data map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

// Get decodes key into v. It reports false when the key is absent.
func (s *Store) Get(key string, v any) (bool, error) {
	data, err := s.Load()
	if err != nil {
		return false, err
	}
	raw, ok := data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// Merge stores v under key, keeping every other key of the blob.
func (s *Store) Merge(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.MergeAll(map[string]json.RawMessage{key: raw})
}

// MergeAll stores several keys in one load-merge-save cycle.
func (s *Store) MergeAll(values map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		data[k] = v
	}
	return s.save(data)
}
