package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cookie is a browser cookie as kept in the session blob.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// StorageItem is one localStorage entry.
type StorageItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OriginState holds the localStorage of one origin.
type OriginState struct {
	Origin       string        `json:"origin"`
	LocalStorage []StorageItem `json:"localStorage"`
}

// StorageState is the serialized authenticated browsing state.
type StorageState struct {
	Cookies []Cookie      `json:"cookies"`
	Origins []OriginState `json:"origins"`
}

// Expiry returns the latest cookie expiry, or the zero time for session-only cookies.
func (s *StorageState) Expiry() time.Time {
	var latest float64
	for _, c := range s.Cookies {
		if c.Expires > latest {
			latest = c.Expires
		}
	}
	if latest <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(latest), 0)
}

// StateFile stores the session blob at a fixed path. Its presence is
// what marks the session as optimistically authenticated.
type StateFile struct {
	path string
}

// NewStateFile returns a StateFile for path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the location of the blob.
func (f *StateFile) Path() string { return f.path }

// Exists reports whether a blob is present.
func (f *StateFile) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && !info.IsDir()
}

// Load reads the blob. A missing file returns (nil, nil).
func (f *StateFile) Load() (*StorageState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	var st StorageState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode session state %s: %w", f.path, err)
	}
	return &st, nil
}

// Save writes the blob through a temporary file so readers never see a partial write.
func (f *StateFile) Save(st *StorageState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session state: %w", err)
	}
	return nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (f *StateFile) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// ModTime returns when the blob was last written.
func (f *StateFile) ModTime() (time.Time, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
