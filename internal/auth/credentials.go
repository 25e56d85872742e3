// Package auth keeps the marketplace password in the OS keyring so it
// does not have to live in the config file or the environment.
package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name passwords are stored under.
const KeyringService = "cmhistory"

// ErrNoPassword means neither the caller nor the keyring supplied a password.
var ErrNoPassword = errors.New("no password stored for user")

// SavePassword stores password for username.
func SavePassword(username, password string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if err := keyring.Set(KeyringService, username, password); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return nil
}

// LoadPassword returns the stored password for username.
func LoadPassword(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username cannot be empty")
	}
	password, err := keyring.Get(KeyringService, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoPassword
	}
	if err != nil {
		return "", fmt.Errorf("failed to load from keyring: %w", err)
	}
	return password, nil
}

// DeletePassword forgets the stored password. A missing entry is not an error.
func DeletePassword(username string) error {
	err := keyring.Delete(KeyringService, username)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// ResolvePassword prefers an explicitly configured password and falls
// back to the keyring.
func ResolvePassword(username, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return LoadPassword(username)
}
