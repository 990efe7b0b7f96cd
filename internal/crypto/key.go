package crypto

import (
	"errors"
	"os"
)

// Environment variables consulted by the env providers.
const (
	EnvMasterKey  = "CRUXVAULT_MASTER_KEY"
	EnvPassphrase = "CRUXVAULT_PASSPHRASE"
)

var (
	ErrKeyUnavailable   = errors.New("no master key available")
	ErrStoreUnsupported = errors.New("provider cannot store keys")
)

// KeyProvider supplies and optionally persists a master key. GetKey returns
// (nil, nil) when the provider has no key, which makes ResolveKey fall
// through to the next provider in the chain.
type KeyProvider interface {
	GetKey() ([]byte, error)
	StoreKey(key []byte) error
}

// EnvKeyProvider reads a base64-encoded master key from CRUXVAULT_MASTER_KEY.
type EnvKeyProvider struct{}

func (EnvKeyProvider) GetKey() ([]byte, error) {
	s := os.Getenv(EnvMasterKey)
	if s == "" {
		return nil, nil
	}
	return KeyFromString(s)
}

func (EnvKeyProvider) StoreKey([]byte) error {
	return ErrStoreUnsupported
}

// PassphraseProvider derives the master key from CRUXVAULT_PASSPHRASE using
// the persisted KDF salt.
type PassphraseProvider struct {
	KDF *KDF
}

func (p PassphraseProvider) GetKey() ([]byte, error) {
	s := os.Getenv(EnvPassphrase)
	if s == "" || p.KDF == nil {
		return nil, nil
	}
	return p.KDF.DeriveKey([]byte(s)), nil
}

func (PassphraseProvider) StoreKey([]byte) error {
	return ErrStoreUnsupported
}

// ResolveKey walks the provider chain in order and returns the first key
// found. A provider error counts as "absent"; resolution never retries a
// flaky provider. When no provider has a key and generate is true, a fresh
// key is generated and offered to each provider for persistence; the first
// successful store wins, and failure to store is not an error.
func ResolveKey(providers []KeyProvider, generate bool) ([]byte, error) {
	for _, p := range providers {
		key, err := p.GetKey()
		if err != nil || key == nil {
			continue
		}
		if len(key) != KeySize {
			continue
		}
		return key, nil
	}

	if !generate {
		return nil, ErrKeyUnavailable
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	for _, p := range providers {
		if err := p.StoreKey(key); err == nil {
			break
		}
	}

	return key, nil
}
