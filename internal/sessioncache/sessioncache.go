// Package sessioncache persists the last-known user snapshot to disk.
// It is a single-slot, best-effort store: one JSON value under a fixed
// path, no expiry, no versioning. The snapshot is the only state that
// survives a restart before the identity provider responds.
package sessioncache

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/skillatlas/skillatlas/internal/user"
)

// Cache is a durable single-slot store for one user snapshot.
type Cache struct {
	fileName string
}

// New creates a Cache backed by the given file path.
func New(fileName string) *Cache {
	return &Cache{fileName: fileName}
}

// Write serializes the user and stores it, overwriting any prior value.
func (c *Cache) Write(usr *user.User) error {
	data, err := json.Marshal(usr)
	if err != nil {
		return fmt.Errorf("in internal/sessioncache/sessioncache.go/Write(): error while `json.Marshal()` calling: %w", err)
	}

	if err := os.WriteFile(c.fileName, data, 0600); err != nil {
		return fmt.Errorf("in internal/sessioncache/sessioncache.go/Write(): error while `os.WriteFile()` calling: %w", err)
	}

	return nil
}

// Read returns the stored snapshot, or nil when none exists. A
// malformed snapshot is treated as corrupt: it is deleted and Read
// reports no value rather than an error.
func (c *Cache) Read() (*user.User, error) {
	data, err := os.ReadFile(c.fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("in internal/sessioncache/sessioncache.go/Read(): error while `os.ReadFile()` calling: %w", err)
	}

	var usr user.User
	if err := json.Unmarshal(data, &usr); err != nil {
		_ = c.Clear()
		return nil, nil
	}

	return &usr, nil
}

// Clear removes the stored snapshot. Clearing an empty cache is not an error.
func (c *Cache) Clear() error {
	err := os.Remove(c.fileName)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("in internal/sessioncache/sessioncache.go/Clear(): error while `os.Remove()` calling: %w", err)
	}

	return nil
}
