// Package keyring stores the master key in the OS keychain and adapts it to
// the crypto.KeyProvider chain.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/cruxvault/cruxvault/internal/crypto"
)

const (
	serviceName = "cruxvault"
	accountName = "master-key"
)

// Provider exposes the OS keychain as a crypto.KeyProvider. A missing entry
// reports "absent" so key resolution falls through to the next provider.
type Provider struct{}

// GetKey retrieves the master key from the OS keychain
func (Provider) GetKey() ([]byte, error) {
	s, err := keyring.Get(serviceName, accountName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return crypto.KeyFromString(s)
}

// StoreKey saves the master key in the OS keychain
func (Provider) StoreKey(key []byte) error {
	return keyring.Set(serviceName, accountName, crypto.KeyToString(key))
}

// DeleteKey removes the master key from the OS keychain
func DeleteKey() error {
	return keyring.Delete(serviceName, accountName)
}

// HasKey checks if a master key is stored in the keychain
func HasKey() bool {
	_, err := keyring.Get(serviceName, accountName)
	return err == nil
}
