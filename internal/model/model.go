// Package model defines the persisted and in-memory value types shared by
// the storage and vault layers.
package model

import (
	"time"
)

// SecretType classifies what kind of value a path holds.
type SecretType string

const (
	TypeSecret SecretType = "secret"
	TypeConfig SecretType = "config"
	TypeFlag   SecretType = "flag"
)

// Valid reports whether t is one of the known secret types.
func (t SecretType) Valid() bool {
	switch t {
	case TypeSecret, TypeConfig, TypeFlag:
		return true
	}
	return false
}

// Secret is the decrypted view of one path as seen through a working tree.
type Secret struct {
	Path      string     `json:"path"`
	Value     string     `json:"value"`
	Type      SecretType `json:"type"`
	Tags      []string   `json:"tags,omitempty"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Version is one immutable encrypted record in the version arena.
// Version numbers are per path, monotonically increasing and never reused.
// CreatedAt is carried forward from the path's first version; UpdatedAt is
// when this particular version was written.
type Version struct {
	Path       string     `json:"path"`
	Ciphertext []byte     `json:"ciphertext"`
	Nonce      []byte     `json:"nonce"`
	Version    int        `json:"version"`
	Type       SecretType `json:"type"`
	Tags       []string   `json:"tags,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Commit is an immutable snapshot node in the history graph. Snapshot maps
// every path live at commit time to a specific version number in the arena,
// so commits share version records instead of copying values.
type Commit struct {
	ID        string         `json:"id"`
	ParentID  string         `json:"parent_id,omitempty"`
	Branch    string         `json:"branch"`
	Message   string         `json:"message"`
	Author    string         `json:"author,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Snapshot  map[string]int `json:"snapshot"`
}

// Branch is a named, advanceable pointer to a head commit.
type Branch struct {
	Name         string    `json:"name"`
	HeadCommitID string    `json:"head_commit_id,omitempty"`
	ForkedFrom   string    `json:"forked_from,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChangeKind classifies a path in a diff or status result.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// DiffEntry describes how one path differs between two snapshots. Patch
// holds a line-level patch for modified multi-line values and is empty
// otherwise.
type DiffEntry struct {
	Path     string     `json:"path"`
	Status   ChangeKind `json:"status"`
	OldValue string     `json:"old_value,omitempty"`
	NewValue string     `json:"new_value,omitempty"`
	Patch    string     `json:"patch,omitempty"`
}

// Conflict records one path changed to different values on both sides of a
// merge since their common ancestor.
type Conflict struct {
	Path          string `json:"path"`
	CurrentValue  string `json:"current_value"`
	IncomingValue string `json:"incoming_value"`
}
