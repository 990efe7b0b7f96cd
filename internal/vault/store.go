package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/cruxvault/cruxvault/internal/crypto"
	"github.com/cruxvault/cruxvault/internal/model"
)

// Put encrypts value and stages it in the working tree under path, assigning
// the next version number for the path. The previous head value (if any)
// stays reachable through history.
func (s *Session) Put(path, value string, typ model.SecretType, tags []string) (*model.Secret, error) {
	secret, err := s.putValue(path, value, typ, tags)
	s.record("put", path, err, map[string]any{"tags": tags})
	return secret, err
}

func (s *Session) putValue(path, value string, typ model.SecretType, tags []string) (*model.Secret, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if typ == "" {
		typ = model.TypeSecret
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%q: %w", typ, ErrInvalidType)
	}

	ciphertext, nonce, err := s.enc.Encrypt([]byte(value))
	if err != nil {
		return nil, err
	}

	latest, err := s.db.LatestVersion(path)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	createdAt := now
	if latest > 0 {
		// Carry the original creation time across versions
		if prev, err := s.db.GetVersion(path, latest); err == nil {
			createdAt = prev.CreatedAt
		}
	}

	rec := model.Version{
		Path:       path,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Version:    latest + 1,
		Type:       typ,
		Tags:       tags,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
	if err := s.db.PutVersion(rec); err != nil {
		return nil, err
	}

	s.pending[path] = change{version: rec.Version}

	if err := s.db.UpdateModified(); err != nil {
		return nil, err
	}
	return secretView(&rec, value), nil
}

// Get returns the decrypted, variable-expanded value of path at its current
// working-tree version.
func (s *Session) Get(path string) (*model.Secret, error) {
	secret, err := s.get(path)
	s.record("get", path, err, nil)
	return secret, err
}

func (s *Session) get(path string) (*model.Secret, error) {
	version, ok := s.resolveVersion(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	rec, value, err := s.loadVersion(path, version)
	if err != nil {
		return nil, err
	}

	expanded, err := s.expandFrom(path, value)
	if err != nil {
		return nil, err
	}
	return secretView(rec, expanded), nil
}

// GetVersion returns the decrypted, variable-expanded value recorded at an
// explicit version of path. History stays reachable even for paths deleted
// from the working tree.
func (s *Session) GetVersion(path string, version int) (*model.Secret, error) {
	secret, err := s.getVersion(path, version)
	s.record("get", path, err, map[string]any{"version": version})
	return secret, err
}

func (s *Session) getVersion(path string, version int) (*model.Secret, error) {
	rec, value, err := s.loadVersion(path, version)
	if err != nil {
		return nil, err
	}

	expanded, err := s.expandFrom(path, value)
	if err != nil {
		return nil, err
	}
	return secretView(rec, expanded), nil
}

// Delete records a tombstone for path in the working tree. History is
// retained; only Commit makes the deletion part of a snapshot.
func (s *Session) Delete(path string) error {
	err := s.delete(path)
	s.record("delete", path, err, nil)
	return err
}

func (s *Session) delete(path string) error {
	if _, ok := s.resolveVersion(path); !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	s.pending[path] = change{tombstone: true}
	return nil
}

// List returns the live secrets whose path starts with prefix, decrypted and
// expanded, newest version of each, ordered by path. An empty prefix lists
// everything.
func (s *Session) List(prefix string) ([]model.Secret, error) {
	secrets, err := s.list(prefix)
	s.record("list", prefix, err, nil)
	return secrets, err
}

func (s *Session) list(prefix string) ([]model.Secret, error) {
	var secrets []model.Secret
	for _, path := range s.livePaths() {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		secret, err := s.get(path)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, *secret)
	}
	return secrets, nil
}

// History returns every recorded version of path, newest first, with raw
// decrypted values (no variable expansion).
func (s *Session) History(path string) ([]model.Secret, error) {
	versions, err := s.history(path)
	s.record("history", path, err, nil)
	return versions, err
}

func (s *Session) history(path string) ([]model.Secret, error) {
	records, err := s.db.VersionsForPath(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	versions := make([]model.Secret, 0, len(records))
	for i := range records {
		plaintext, err := s.enc.Decrypt(records[i].Ciphertext, records[i].Nonce)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", path, err)
		}
		versions = append(versions, *secretView(&records[i], string(plaintext)))
		crypto.ClearBytes(plaintext)
	}
	return versions, nil
}

// Rollback re-stages the value recorded at version of path as a fresh
// version. The rolled-back content keeps its original type and tags; the
// version counter keeps climbing.
func (s *Session) Rollback(path string, version int) (*model.Secret, error) {
	secret, err := s.rollback(path, version)
	s.record("rollback", path, err, map[string]any{"rollback_version": version})
	return secret, err
}

func (s *Session) rollback(path string, version int) (*model.Secret, error) {
	rec, value, err := s.loadVersion(path, version)
	if err != nil {
		return nil, err
	}
	return s.putValue(path, value, rec.Type, rec.Tags)
}
