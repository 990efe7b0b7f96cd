// Package storage provides the BBolt database interface for cruxvault.
//
// Database structure uses four buckets:
//   - config: schema version, timestamps, KDF salt, current branch (unencrypted)
//   - versions: the version arena - one immutable encrypted record per
//     (path, version) pair, keyed path\x00 + big-endian version
//   - commits: immutable commit nodes whose snapshots reference arena
//     versions by number, giving structural sharing across commits
//   - branches: named head pointers with fork origin
//
// Version records and commit nodes are append-only; nothing in the arena or
// the commit graph is ever rewritten. Branch pointers and the config bucket
// are the only mutable state.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
