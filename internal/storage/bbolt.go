package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cruxvault/cruxvault/internal/model"
)

// Bucket names
var (
	ConfigBucket   = []byte("config")   // Schema version, timestamps, KDF salt, current branch
	VersionsBucket = []byte("versions") // Version arena: encrypted value records
	CommitsBucket  = []byte("commits")  // Immutable commit nodes
	BranchesBucket = []byte("branches") // Branch pointers
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
	ConfigSalt     = []byte("salt")
	ConfigBranch   = []byte("current_branch")
)

var ErrNotFound = errors.New("not found")

// Storage provides BBolt-based persistence for cruxvault
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a cruxvault database
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Initialize creates the bucket structure for a new store
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, VersionsBucket, CommitsBucket, BranchesBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		now := time.Now()
		created, _ := now.MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// SetSalt stores the KDF salt
func (s *Storage) SetSalt(salt []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ConfigBucket).Put(ConfigSalt, salt)
	})
}

// GetSalt retrieves the KDF salt
func (s *Storage) GetSalt() ([]byte, error) {
	var salt []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket: %w", ErrNotFound)
		}
		salt = config.Get(ConfigSalt)
		if salt == nil {
			return fmt.Errorf("salt: %w", ErrNotFound)
		}
		// Copy out: the slice is only valid during the transaction
		salt = append([]byte(nil), salt...)
		return nil
	})
	return salt, err
}

// SetCurrentBranch records the session's active branch name
func (s *Storage) SetCurrentBranch(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ConfigBucket).Put(ConfigBranch, []byte(name))
	})
}

// GetCurrentBranch retrieves the active branch name
func (s *Storage) GetCurrentBranch() (string, error) {
	var name string
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket: %w", ErrNotFound)
		}
		data := config.Get(ConfigBranch)
		if data == nil {
			return fmt.Errorf("current branch: %w", ErrNotFound)
		}
		name = string(data)
		return nil
	})
	return name, err
}

// UpdateModified updates the last modified timestamp
func (s *Storage) UpdateModified() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		now := time.Now()
		modified, _ := now.MarshalBinary()
		return tx.Bucket(ConfigBucket).Put(ConfigModified, modified)
	})
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket: %w", ErrNotFound)
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time: %w", ErrNotFound)
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// versionKey builds the arena key for one (path, version) pair. The NUL
// separator keeps paths from colliding with each other's version suffixes,
// and the big-endian counter keeps versions ordered under a cursor.
func versionKey(path string, version int) []byte {
	key := make([]byte, len(path)+1+8)
	copy(key, path)
	binary.BigEndian.PutUint64(key[len(path)+1:], uint64(version))
	return key
}

func versionPrefix(path string) []byte {
	return append([]byte(path), 0)
}

// PutVersion appends an immutable version record to the arena
func (s *Storage) PutVersion(v model.Version) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal version: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(VersionsBucket).Put(versionKey(v.Path, v.Version), data)
	})
}

// GetVersion retrieves one version record from the arena
func (s *Storage) GetVersion(path string, version int) (*model.Version, error) {
	var v model.Version
	err := s.db.View(func(tx *bolt.Tx) error {
		versions := tx.Bucket(VersionsBucket)
		if versions == nil {
			return fmt.Errorf("versions bucket: %w", ErrNotFound)
		}
		data := versions.Get(versionKey(path, version))
		if data == nil {
			return fmt.Errorf("version %d of %s: %w", version, path, ErrNotFound)
		}
		return json.Unmarshal(data, &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// LatestVersion returns the highest version number recorded for path,
// or 0 when the path has never been written.
func (s *Storage) LatestVersion(path string) (int, error) {
	var latest int
	err := s.db.View(func(tx *bolt.Tx) error {
		versions := tx.Bucket(VersionsBucket)
		if versions == nil {
			return fmt.Errorf("versions bucket: %w", ErrNotFound)
		}
		prefix := versionPrefix(path)
		c := versions.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			latest = int(binary.BigEndian.Uint64(k[len(prefix):]))
		}
		return nil
	})
	return latest, err
}

// VersionsForPath returns all version records for path, newest first
func (s *Storage) VersionsForPath(path string) ([]model.Version, error) {
	var records []model.Version
	err := s.db.View(func(tx *bolt.Tx) error {
		versions := tx.Bucket(VersionsBucket)
		if versions == nil {
			return fmt.Errorf("versions bucket: %w", ErrNotFound)
		}
		prefix := versionPrefix(path)
		c := versions.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec model.Version
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal version: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Cursor order is oldest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// PutCommit stores an immutable commit node
func (s *Storage) PutCommit(c model.Commit) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal commit: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(CommitsBucket).Put([]byte(c.ID), data)
	})
}

// GetCommit retrieves a commit by id
func (s *Storage) GetCommit(id string) (*model.Commit, error) {
	var c model.Commit
	err := s.db.View(func(tx *bolt.Tx) error {
		commits := tx.Bucket(CommitsBucket)
		if commits == nil {
			return fmt.Errorf("commits bucket: %w", ErrNotFound)
		}
		data := commits.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("commit %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountCommits returns the number of commit nodes in the graph
func (s *Storage) CountCommits() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		commits := tx.Bucket(CommitsBucket)
		if commits == nil {
			return nil
		}
		n = commits.Stats().KeyN
		return nil
	})
	return n, err
}

// PutBranch stores or updates a branch pointer
func (s *Storage) PutBranch(b model.Branch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal branch: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BranchesBucket).Put([]byte(b.Name), data)
	})
}

// GetBranch retrieves a branch by name
func (s *Storage) GetBranch(name string) (*model.Branch, error) {
	var b model.Branch
	err := s.db.View(func(tx *bolt.Tx) error {
		branches := tx.Bucket(BranchesBucket)
		if branches == nil {
			return fmt.Errorf("branches bucket: %w", ErrNotFound)
		}
		data := branches.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("branch %s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBranch removes a branch pointer. Commits it pointed to remain.
func (s *Storage) DeleteBranch(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BranchesBucket).Delete([]byte(name))
	})
}

// ListBranches returns all branches ordered by name
func (s *Storage) ListBranches() ([]model.Branch, error) {
	var branches []model.Branch
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BranchesBucket)
		if bucket == nil {
			return fmt.Errorf("branches bucket: %w", ErrNotFound)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var b model.Branch
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("failed to unmarshal branch: %w", err)
			}
			branches = append(branches, b)
			return nil
		})
	})
	return branches, err
}

// Compact creates a compacted copy of the database, removing unused space.
// Useful after long version histories accumulate.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
