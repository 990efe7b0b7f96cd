package vault

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cruxvault/cruxvault/internal/model"
)

// WorkStatus classifies the working tree against the head snapshot
type WorkStatus struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// Clean reports whether the working tree matches the head snapshot
func (w *WorkStatus) Clean() bool {
	return len(w.Added) == 0 && len(w.Modified) == 0 && len(w.Deleted) == 0
}

// Status compares the working tree to the current branch's head snapshot.
// Classification is by decrypted value and metadata, not ciphertext, since
// encryption is non-deterministic. Read-only.
func (s *Session) Status() (*WorkStatus, error) {
	status, err := s.status()
	s.record("status", s.branch, err, nil)
	return status, err
}

func (s *Session) status() (*WorkStatus, error) {
	changes, err := s.workingChanges()
	if err != nil {
		return nil, err
	}

	status := &WorkStatus{}
	for path, kind := range changes {
		switch kind {
		case model.ChangeAdded:
			status.Added = append(status.Added, path)
		case model.ChangeModified:
			status.Modified = append(status.Modified, path)
		case model.ChangeDeleted:
			status.Deleted = append(status.Deleted, path)
		}
	}
	sort.Strings(status.Added)
	sort.Strings(status.Modified)
	sort.Strings(status.Deleted)
	return status, nil
}

// workingChanges resolves the pending overlay into effective changes against
// the head snapshot. A re-put of an identical value, type and tags is not a
// change.
func (s *Session) workingChanges() (map[string]model.ChangeKind, error) {
	changes := make(map[string]model.ChangeKind)
	for path, ch := range s.pending {
		baseVersion, inBase := s.base[path]

		if ch.tombstone {
			if inBase {
				changes[path] = model.ChangeDeleted
			}
			continue
		}
		if !inBase {
			changes[path] = model.ChangeAdded
			continue
		}
		if ch.version == baseVersion {
			continue
		}

		baseRec, baseValue, err := s.loadVersion(path, baseVersion)
		if err != nil {
			return nil, err
		}
		rec, value, err := s.loadVersion(path, ch.version)
		if err != nil {
			return nil, err
		}
		if !sameContent(baseRec, baseValue, rec, value) {
			changes[path] = model.ChangeModified
		}
	}
	return changes, nil
}

// sameContent compares two decrypted versions by value, type and tags
func sameContent(a *model.Version, aValue string, b *model.Version, bValue string) bool {
	if aValue != bValue || a.Type != b.Type {
		return false
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}

// Diff compares two commits: path-set differences plus value changes for
// shared paths. Unchanged paths are omitted. Read-only.
func (s *Session) Diff(commitA, commitB string) ([]model.DiffEntry, error) {
	entries, err := s.diff(commitA, commitB)
	s.record("diff", commitA+".."+commitB, err, nil)
	return entries, err
}

func (s *Session) diff(commitA, commitB string) ([]model.DiffEntry, error) {
	snapA, err := s.snapshotOf(commitA)
	if err != nil {
		return nil, err
	}
	snapB, err := s.snapshotOf(commitB)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(snapA)+len(snapB))
	seen := make(map[string]bool, len(snapA)+len(snapB))
	for path := range snapA {
		paths = append(paths, path)
		seen[path] = true
	}
	for path := range snapB {
		if !seen[path] {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	var entries []model.DiffEntry
	for _, path := range paths {
		verA, inA := snapA[path]
		verB, inB := snapB[path]

		switch {
		case !inA:
			_, value, err := s.loadVersion(path, verB)
			if err != nil {
				return nil, err
			}
			entries = append(entries, model.DiffEntry{Path: path, Status: model.ChangeAdded, NewValue: value})

		case !inB:
			_, value, err := s.loadVersion(path, verA)
			if err != nil {
				return nil, err
			}
			entries = append(entries, model.DiffEntry{Path: path, Status: model.ChangeDeleted, OldValue: value})

		case verA == verB:
			// Shared arena version: identical by construction

		default:
			recA, valueA, err := s.loadVersion(path, verA)
			if err != nil {
				return nil, err
			}
			recB, valueB, err := s.loadVersion(path, verB)
			if err != nil {
				return nil, err
			}
			if sameContent(recA, valueA, recB, valueB) {
				continue
			}
			entries = append(entries, model.DiffEntry{
				Path:     path,
				Status:   model.ChangeModified,
				OldValue: valueA,
				NewValue: valueB,
				Patch:    renderPatch(path, valueA, valueB),
			})
		}
	}
	return entries, nil
}

// renderPatch produces a line-level patch for modified values. Single-line
// values render as nothing; old/new fields already carry them whole.
func renderPatch(path, oldValue, newValue string) string {
	if !strings.Contains(oldValue, "\n") && !strings.Contains(newValue, "\n") {
		return ""
	}

	dmp := diffmatchpatch.New()

	a, b, lineArray := dmp.DiffLinesToChars(oldValue, newValue)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(oldValue, diffs)
	if len(patches) == 0 {
		return ""
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- a/%s\n", path))
	result.WriteString(fmt.Sprintf("+++ b/%s\n", path))
	result.WriteString(dmp.PatchToText(patches))
	return result.String()
}
