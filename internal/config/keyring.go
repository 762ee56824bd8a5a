package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "collabgraph"

	KeyringGitHubTokenItem   = "github-token"
	KeyringGitLabTokenItem   = "gitlab-token"
	KeyringNeo4jPasswordItem = "neo4j-password"
)

// KeyringManager stores platform tokens in the OS keychain
// (macOS Keychain, Windows Credential Manager, Secret Service on Linux).
type KeyringManager struct {
	logger *logrus.Entry
}

func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: logrus.WithField("component", "keyring"),
	}
}

// Get returns the stored secret, or "" when nothing is stored.
func (km *KeyringManager) Get(item string) (string, error) {
	secret, err := keyring.Get(KeyringService, item)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		km.logger.WithError(err).WithField("item", item).Debug("keychain read failed")
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return secret, nil
}

func (km *KeyringManager) Set(item, secret string) error {
	if secret == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}
	if err := keyring.Set(KeyringService, item, secret); err != nil {
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.WithField("item", item).Info("secret saved to keychain")
	return nil
}

// Delete removes a stored secret. Deleting a missing item is not an error.
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable returns false on headless systems without a keychain.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "availability-probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// MaskSecret masks a token for display: first 4 and last 4 characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:4], secret[len(secret)-4:])
}
