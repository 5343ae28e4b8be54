package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// File stores credentials as a mode-0600 JSON file. On a phone this seat is
// taken by the platform keychain; the contract is identical.
type File struct {
	path string
}

// NewFile returns a store rooted at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// DefaultPath resolves the per-user credentials location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "pocketdesk", "credentials.json"), nil
}

// Load reads stored credentials. A missing, unreadable, or malformed file
// is absence, not an error: the caller's recovery is re-pairing either way.
func (f *File) Load(ctx context.Context) (*protocol.Credentials, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, nil
	}
	var creds protocol.Credentials
	if err := protocol.Unmarshal(data, &creds); err != nil {
		return nil, nil
	}
	if err := creds.Validate(); err != nil {
		return nil, nil
	}
	return &creds, nil
}

// Save writes credentials atomically: temp file then rename, so a crash
// mid-write leaves either the old credentials or the new, never a torn file.
func (f *File) Save(ctx context.Context, creds *protocol.Credentials) error {
	data, err := protocol.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

// Clear removes stored credentials. Already-absent is success.
func (f *File) Clear(ctx context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
