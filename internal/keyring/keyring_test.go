package keyring

import (
	"bytes"
	"testing"

	zkeyring "github.com/zalando/go-keyring"

	"github.com/cruxvault/cruxvault/internal/crypto"
)

func TestProviderRoundTrip(t *testing.T) {
	zkeyring.MockInit()

	p := Provider{}

	key, err := p.GetKey()
	if err != nil || key != nil {
		t.Fatalf("GetKey on empty keychain = %v, %v, want nil, nil", key, err)
	}
	if HasKey() {
		t.Error("HasKey on empty keychain should be false")
	}

	want, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	if err := p.StoreKey(want); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}

	got, err := p.GetKey()
	if err != nil {
		t.Fatalf("GetKey failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("Keychain round trip mismatch")
	}
	if !HasKey() {
		t.Error("HasKey after store should be true")
	}

	if err := DeleteKey(); err != nil {
		t.Fatalf("DeleteKey failed: %v", err)
	}
	key, err = p.GetKey()
	if err != nil || key != nil {
		t.Errorf("GetKey after delete = %v, %v, want nil, nil", key, err)
	}
}
