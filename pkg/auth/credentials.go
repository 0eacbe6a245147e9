package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrCredentialsNotFound is returned when no credentials exist for an account
	ErrCredentialsNotFound = errors.New("credentials not found")
	// ErrInvalidCredentials is returned when credentials are malformed
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStoreUnavailable is returned when a store cannot perform the operation
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Account holds Jira API credentials for one account. Public instances work
// anonymously; Jira Cloud expects email + API token sent as basic auth.
type Account struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	APIToken     string    `json:"api_token"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for a given account
	Store(account *Account) error

	// Retrieve gets credentials for a specific account name
	Retrieve(name string) (*Account, error)

	// Delete removes credentials for a specific account name
	Delete(name string) error

	// Exists checks if credentials exist for an account name
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available backends:
// system keyring first, encrypted file as fallback, environment variables
// as a read-only last resort.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit backends, mainly for tests
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return errors.New("account name is required")
	}
	if account.Email == "" {
		return errors.New("email is required")
	}
	if account.APIToken == "" {
		return errors.New("API token is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("all credential stores failed: %w", lastErr)
	}
	return errors.New("no credential stores available")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(name string) (*Account, error) {
	for _, store := range m.stores {
		account, err := store.Retrieve(name)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
	}
	return nil, ErrCredentialsNotFound
}

// Delete removes credentials from every store that holds them
func (m *Manager) Delete(name string) error {
	found := false
	for _, store := range m.stores {
		if !store.Exists(name) {
			continue
		}
		if err := store.Delete(name); err != nil && !errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		found = true
	}
	if !found {
		return ErrCredentialsNotFound
	}
	return nil
}

// Exists checks whether any store has credentials for the account
func (m *Manager) Exists(name string) bool {
	for _, store := range m.stores {
		if store.Exists(name) {
			return true
		}
	}
	return false
}

// getConfigDir returns the directory for harvester configuration data
func getConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jiraharvest"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "jiraharvest"), nil
}
