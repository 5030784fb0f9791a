package budget

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store defines the interface for ledger persistence backends.
// Implementations can store to JSON files, SQLite, etc.
type Store interface {
	// Save persists the given data.
	Save(data []byte) error

	// Load retrieves the stored data.
	// A nil, nil return means no prior state exists.
	Load() ([]byte, error)

	// Close releases any resources held by the store.
	Close() error
}

// JSONStore implements Store for file-based JSON persistence.
type JSONStore struct {
	FilePath string
}

// NewJSONStore creates a new JSON file store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{FilePath: path}
}

// Save writes data to the JSON file.
func (s *JSONStore) Save(data []byte) error {
	if s.FilePath == "" {
		return nil
	}

	// Ensure directory exists
	dir := filepath.Dir(s.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	if err := os.WriteFile(s.FilePath, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// Load reads data from the JSON file.
func (s *JSONStore) Load() ([]byte, error) {
	if s.FilePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No prior state yet, that's OK
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// Close is a no-op for JSON files.
func (s *JSONStore) Close() error {
	return nil
}

// MemoryStore implements Store in memory, for tests and ephemeral runs.
type MemoryStore struct {
	data []byte
}

// Save keeps a copy of data in memory.
func (s *MemoryStore) Save(data []byte) error {
	s.data = append([]byte(nil), data...)
	return nil
}

// Load returns the last saved data.
func (s *MemoryStore) Load() ([]byte, error) {
	return s.data, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure implementations satisfy Store
var (
	_ Store = (*JSONStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
