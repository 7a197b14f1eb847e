// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// indexSuffix is appended to the service name to form the keyring entry
// holding the JSON list of stored key names. go-keyring cannot enumerate
// keys, so List works off this side index.
const indexSuffix = "::keys-index"

// KeyringStore implements Store on the OS keyring via zalando/go-keyring:
// Keychain on macOS, secret-service (D-Bus) on Linux, Credential Manager
// on Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// checkRef validates a service/key pair before touching the keyring.
func checkRef(op, service, key string) error {
	if service == "" {
		return memexerr.New(memexerr.CodeSecretInputInvalid, "secret "+op+": service must not be empty")
	}
	if key == "" {
		return memexerr.New(memexerr.CodeSecretInputInvalid, "secret "+op+": key must not be empty")
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	return s.indexAdd(service, key)
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", memexerr.Errorf(memexerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return memexerr.Errorf(memexerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}

	return s.indexRemove(service, key)
}

// List returns the key names previously stored for service, in storage order.
func (s *KeyringStore) List(service string) ([]string, error) {
	return s.indexLoad(service)
}

// indexLoad reads the service's key index; a missing index means no keys.
func (s *KeyringStore) indexLoad(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

// indexSave writes the key index back, dropping the entry once it is empty
// so deleting the last secret leaves nothing behind.
func (s *KeyringStore) indexSave(service string, keys []string) error {
	entry := service + indexSuffix

	if len(keys) == 0 {
		if err := keyring.Delete(service, entry); err != nil {
			slog.Debug("failed to clean up empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, entry, string(data)); err != nil {
		return memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "saving key index for service %s", service)
	}
	return nil
}

func (s *KeyringStore) indexAdd(service, key string) error {
	keys, err := s.indexLoad(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.indexSave(service, append(keys, key))
}

func (s *KeyringStore) indexRemove(service, key string) error {
	keys, err := s.indexLoad(service)
	if err != nil {
		return err
	}
	return s.indexSave(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}
