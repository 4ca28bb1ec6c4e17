package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store persists the configuration entry across restarts.
type Store interface {
	// Load returns the persisted entry, or (nil, nil) when none exists yet.
	Load() (*Entry, error)
	// Save replaces the persisted entry.
	Save(*Entry) error
}

// FileStore keeps the entry in a YAML file. Saves are atomic: the entry is
// written to a temp file in the same directory and renamed over the target.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (s *FileStore) Load() (*Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read entry file: %w", err)
	}
	var entry Entry
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse entry file %s: %w", s.path, err)
	}
	return &entry, nil
}

// Save implements Store.
func (s *FileStore) Save(entry *Entry) error {
	data, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".entry-*.yml")
	if err != nil {
		return fmt.Errorf("create temp entry file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	// The file holds the API token, keep it owner-only.
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp entry file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp entry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp entry file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace entry file: %w", err)
	}
	return nil
}
