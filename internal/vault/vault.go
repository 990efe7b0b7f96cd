package vault

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/cruxvault/cruxvault/internal/audit"
	"github.com/cruxvault/cruxvault/internal/crypto"
	"github.com/cruxvault/cruxvault/internal/keyring"
	"github.com/cruxvault/cruxvault/internal/model"
	"github.com/cruxvault/cruxvault/internal/storage"
)

// DefaultBranch is created when a store is initialized
const DefaultBranch = "main"

var (
	ErrNotFound        = errors.New("not found")
	ErrBranchExists    = errors.New("branch already exists")
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrCurrentBranch   = errors.New("cannot delete the current branch")
	ErrSelfMerge       = errors.New("cannot merge a branch into itself")
	ErrEmptyPath       = errors.New("secret path must not be empty")
	ErrEmptyBranchName = errors.New("branch name must not be empty")
	ErrInvalidType     = errors.New("invalid secret type")
)

// change is one uncommitted working-tree entry: either a reference to a new
// arena version or a tombstone.
type change struct {
	version   int
	tombstone bool
}

// Session is one working session over a store. It holds the current branch,
// the head snapshot, and the uncommitted overlay. The working tree itself is
// never persisted; only Commit realizes it into history. Callers needing
// isolation open independent sessions over separate stores.
type Session struct {
	db      *storage.Storage
	enc     *crypto.Encryptor
	sink    audit.Sink
	branch  string
	base    map[string]int    // head snapshot: path -> arena version
	pending map[string]change // uncommitted overlay
}

// Open opens (initializing if necessary) the store at path with an explicit
// 32-byte master key. A nil sink discards audit events.
func Open(path string, key []byte, sink audit.Sink) (*Session, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}

	s, err := open(db, key, sink)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenWithProviders opens the store at path, resolving the master key
// through the standard provider chain: OS keychain, environment key,
// environment passphrase (derived with the store's persisted salt), then
// generation (persisted back through the keychain when possible).
func OpenWithProviders(path string, sink audit.Sink) (*Session, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}

	if err := ensureInitialized(db); err != nil {
		db.Close()
		return nil, err
	}

	salt, err := db.GetSalt()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read KDF salt: %w", err)
	}

	providers := []crypto.KeyProvider{
		keyring.Provider{},
		crypto.EnvKeyProvider{},
		crypto.PassphraseProvider{KDF: &crypto.KDF{Salt: salt, Iterations: crypto.DefaultIters}},
	}
	key, err := crypto.ResolveKey(providers, true)
	if err != nil {
		db.Close()
		return nil, err
	}

	s, err := open(db, key, sink)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func open(db *storage.Storage, key []byte, sink audit.Sink) (*Session, error) {
	if sink == nil {
		sink = audit.NopSink{}
	}

	if err := ensureInitialized(db); err != nil {
		return nil, err
	}

	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		return nil, err
	}

	s := &Session{db: db, enc: enc, sink: sink}

	name, err := db.GetCurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("failed to read current branch: %w", err)
	}
	if err := s.load(name); err != nil {
		return nil, err
	}

	return s, nil
}

// ensureInitialized creates the schema, the default branch and the KDF salt
// on first open.
func ensureInitialized(db *storage.Storage) error {
	initialized, err := db.IsInitialized()
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}

	if err := db.Initialize(); err != nil {
		return err
	}

	kdf, err := crypto.NewKDF()
	if err != nil {
		return err
	}
	if err := db.SetSalt(kdf.Salt); err != nil {
		return fmt.Errorf("failed to store salt: %w", err)
	}

	if err := db.PutBranch(model.Branch{Name: DefaultBranch, CreatedAt: time.Now()}); err != nil {
		return fmt.Errorf("failed to create default branch: %w", err)
	}
	return db.SetCurrentBranch(DefaultBranch)
}

// Close destroys the in-memory key and closes the store
func (s *Session) Close() error {
	s.enc.Destroy()
	return s.db.Close()
}

// load switches the session to branch name, discarding any uncommitted
// working-tree state and materializing the head snapshot.
func (s *Session) load(name string) error {
	branch, err := s.db.GetBranch(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("branch %q: %w", name, ErrNotFound)
		}
		return err
	}

	base, err := s.snapshotOf(branch.HeadCommitID)
	if err != nil {
		return err
	}

	s.branch = branch.Name
	s.base = base
	s.pending = make(map[string]change)
	return nil
}

// snapshotOf returns a copy of the snapshot for commit id, or an empty
// snapshot when id is empty (branch with no commits).
func (s *Session) snapshotOf(id string) (map[string]int, error) {
	if id == "" {
		return make(map[string]int), nil
	}

	commit, err := s.db.GetCommit(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("commit %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	snapshot := make(map[string]int, len(commit.Snapshot))
	for path, version := range commit.Snapshot {
		snapshot[path] = version
	}
	return snapshot, nil
}

// resolveVersion returns the arena version path maps to in the working tree,
// pending overlay first. ok is false for absent or tombstoned paths.
func (s *Session) resolveVersion(path string) (version int, ok bool) {
	if ch, dirty := s.pending[path]; dirty {
		if ch.tombstone {
			return 0, false
		}
		return ch.version, true
	}
	version, ok = s.base[path]
	return version, ok
}

// livePaths returns the sorted set of non-tombstoned paths in the working tree
func (s *Session) livePaths() []string {
	paths := make([]string, 0, len(s.base)+len(s.pending))
	for path := range s.base {
		if _, ok := s.resolveVersion(path); ok {
			paths = append(paths, path)
		}
	}
	for path, ch := range s.pending {
		if _, inBase := s.base[path]; inBase || ch.tombstone {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// loadVersion fetches and decrypts one arena record
func (s *Session) loadVersion(path string, version int) (*model.Version, string, error) {
	rec, err := s.db.GetVersion(path, version)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", fmt.Errorf("version %d of %s: %w", version, path, ErrNotFound)
		}
		return nil, "", err
	}

	plaintext, err := s.enc.Decrypt(rec.Ciphertext, rec.Nonce)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt %s: %w", path, err)
	}
	value := string(plaintext)
	crypto.ClearBytes(plaintext)
	return rec, value, nil
}

// secretView builds the decrypted view of one version record
func secretView(rec *model.Version, value string) *model.Secret {
	return &model.Secret{
		Path:      rec.Path,
		Value:     value,
		Type:      rec.Type,
		Tags:      rec.Tags,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// record emits one audit event for an operation outcome
func (s *Session) record(action, path string, err error, metadata map[string]any) {
	e := audit.NewEvent(action, path, err == nil)
	if err != nil {
		e.Error = err.Error()
	}
	e.Metadata = metadata
	s.sink.Record(e)
}

// currentUser mirrors the author attribution on commits
func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}
