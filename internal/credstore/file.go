package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"priceoptool/pkg/domain"
)

// FileStore keeps the session blob as a single JSON file under a base
// directory. Mode 0600: the blob carries live credentials.
type FileStore struct {
	path string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("credstore base dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create credstore dir: %w", err)
	}
	return &FileStore{path: filepath.Join(baseDir, StorageKey+".json")}, nil
}

// Save writes the session blob, replacing any previous one.
func (f *FileStore) Save(user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load reads the session blob. Missing file means no stored session.
func (f *FileStore) Load() (domain.User, bool, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("read session: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return domain.User{}, false, fmt.Errorf("decode session: %w", err)
	}
	return user, true, nil
}

// Clear removes the session blob. Clearing a missing blob is a no-op.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
