package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileOverrideStore keeps the switching override document in a YAML file.
type FileOverrideStore struct {
	path string
	mu   sync.Mutex
}

// NewFileOverrideStore creates a store backed by path.
func NewFileOverrideStore(path string) *FileOverrideStore {
	return &FileOverrideStore{path: path}
}

// Path returns the backing file.
func (s *FileOverrideStore) Path() string {
	return s.path
}

// Load reads the override document. A missing file yields an empty override.
func (s *FileOverrideStore) Load() (Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var o Override
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return o, fmt.Errorf("failed to read override file %s: %w", s.path, err)
	}

	if err := yaml.Unmarshal(data, &o); err != nil {
		return Override{}, fmt.Errorf("failed to parse override file %s: %w", s.path, err)
	}
	return o, nil
}

// Save writes the override document, replacing the file atomically.
func (s *FileOverrideStore) Save(o Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal override: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create override dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write override file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace override file %s: %w", s.path, err)
	}
	return nil
}
