// Package server persists the registered-user set as a JSON snapshot file.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// User is a registered account. Passwords are stored and compared in
// plaintext; this matches the existing on-disk contract and is not a
// security-hardened design.
type User struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ErrCorruptStore indicates the durable store exists but cannot be decoded.
// Startup must treat this as fatal; no valid directory state can be
// established from a half-readable file.
var ErrCorruptStore = errors.New("user store is corrupt")

// UserStore is the durable-store contract: load the full user set at
// startup, rewrite the full snapshot on every mutation.
type UserStore interface {
	Load() ([]User, error)
	Save(users []User) error
}

// FileStore keeps the user set in a single file holding a JSON array of
// {"name","password"} objects, rewritten wholesale on every save.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path. The file is not
// touched until Load or Save is called.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot file. A missing file is not an error and yields an
// empty user set; an unreadable or undecodable file yields ErrCorruptStore.
func (f *FileStore) Load() ([]User, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading user store %s: %w", f.path, err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, f.path, err)
	}
	return users, nil
}

// Save rewrites the snapshot file with the full user set.
func (f *FileStore) Save(users []User) error {
	if users == nil {
		users = []User{}
	}
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encoding user store: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing user store %s: %w", f.path, err)
	}
	return nil
}
