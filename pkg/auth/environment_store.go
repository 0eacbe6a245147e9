package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and mainly serves CI and container environments.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	email := os.Getenv("JIRAHARVEST_EMAIL")
	apiToken := os.Getenv("JIRAHARVEST_API_TOKEN")

	if email == "" || apiToken == "" {
		return nil, ErrCredentialsNotFound
	}

	// The environment holds a single identity; any requested name maps to it
	if name == "" {
		name = "default"
	}

	return &Account{
		Name:         name,
		Email:        email,
		APIToken:     apiToken,
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials are set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("JIRAHARVEST_EMAIL") != "" && os.Getenv("JIRAHARVEST_API_TOKEN") != ""
}
