// Package vault implements the versioned, encrypted secret store.
//
// A Session is one working session over a store:
//   - Put/Get/Delete/List: CRUD over the working tree, values encrypted
//     at rest and variable-expanded on every read
//   - History/Rollback: per-path version history and restoration
//   - CreateBranch/Checkout/Commit/DeleteBranch/Log/Reset: immutable
//     snapshot history with named, advanceable branch pointers
//   - Status/Diff: working tree vs head, and commit vs commit comparison
//   - Merge: three-way reconciliation with fast-forward detection and a
//     full conflict list on divergence
//
// Commits reference version records by number, so snapshots share storage
// instead of copying values. The working tree is an in-memory overlay over
// the head snapshot and is only persisted by Commit.
//
// Values are read through ${NAME} variable expansion with explicit cycle
// detection; see expand.go.
package vault
