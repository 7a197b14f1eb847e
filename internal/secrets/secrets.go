// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package secrets

// DefaultService is the keyring service name under which memex stores
// its secrets.
const DefaultService = "memex"

// APIKeyName is the key under which the embedding provider credential
// is stored.
const APIKeyName = "api_key"

// Store provides secure secret storage operations.
// Implementations may use OS keyrings, encrypted files, or other backends.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Missing keys return CodeSecretNotFound (via memexerr.HasCode).
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Missing keys return CodeSecretNotFound (via memexerr.HasCode).
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}
