package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gavel.live/cli/internal/application/ports"
)

// CredentialsStore persists the identity service's token pair between CLI
// invocations, in the same dot-directory the config file lives in.
type CredentialsStore struct {
	path string
}

// NewCredentialsStore creates a store rooted at the given directory
// (typically ~/.gavel).
func NewCredentialsStore(dir string) *CredentialsStore {
	return &CredentialsStore{path: filepath.Join(dir, "credentials.json")}
}

// Save writes the token pair with owner-only permissions.
func (s *CredentialsStore) Save(pair ports.TokenPair) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Load reads the saved token pair. Returns os.ErrNotExist when the user has
// never signed in.
func (s *CredentialsStore) Load() (*ports.TokenPair, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var pair ports.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return &pair, nil
}

// Clear removes the saved credentials. Missing files are not an error.
func (s *CredentialsStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
