package vault

import (
	"errors"
	"fmt"

	"github.com/cruxvault/cruxvault/internal/model"
	"github.com/cruxvault/cruxvault/internal/storage"
)

// MergeConflictError reports a non-forced merge that found divergent
// changes. Nothing was applied; Conflicts carries the full list.
type MergeConflictError struct {
	Source    string
	Conflicts []model.Conflict
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge of %q produced %d conflict(s)", e.Source, len(e.Conflicts))
}

// mergeChange is one path's change on a branch since the common ancestor
type mergeChange struct {
	kind    model.ChangeKind
	version int
	value   string
}

// Merge performs a three-way merge of source into the current branch.
//
// The nearest common ancestor is located by ancestor-set intersection over
// parent chains. When one head is an ancestor of the other the merge is a
// fast-forward (or a no-op). Otherwise every path changed on either side
// since the ancestor is reconciled:
//
//   - changed on one side only: take that side
//   - changed identically on both: keep it
//   - changed differently on both (including delete vs modify): conflict
//   - deleted on both: stays deleted
//
// Without force, any conflict aborts with *MergeConflictError and nothing is
// applied. With force, conflicts resolve to the incoming value. The merge
// result becomes the working tree's uncommitted state; Merge never commits.
func (s *Session) Merge(source string, force bool) error {
	err := s.merge(source, force)
	s.record("merge", source, err, map[string]any{"force": force})
	return err
}

func (s *Session) merge(source string, force bool) error {
	if source == s.branch {
		return ErrSelfMerge
	}

	src, err := s.db.GetBranch(source)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("branch %q: %w", source, ErrNotFound)
		}
		return err
	}
	cur, err := s.db.GetBranch(s.branch)
	if err != nil {
		return err
	}

	// Nothing on the source branch yet
	if src.HeadCommitID == "" {
		return nil
	}

	curAncestors, err := s.ancestors(cur.HeadCommitID)
	if err != nil {
		return err
	}

	// Source already merged
	if curAncestors[src.HeadCommitID] {
		return nil
	}

	// Walk the source chain towards the root; the first commit also reachable
	// from the current head is the nearest common ancestor.
	nca := ""
	for id := src.HeadCommitID; id != ""; {
		if curAncestors[id] {
			nca = id
			break
		}
		commit, err := s.db.GetCommit(id)
		if err != nil {
			return err
		}
		id = commit.ParentID
	}

	// Fast-forward: the current head (possibly the empty root) is an ancestor
	// of the source head, so the pointer just moves.
	if nca == cur.HeadCommitID {
		cur.HeadCommitID = src.HeadCommitID
		if err := s.db.PutBranch(*cur); err != nil {
			return err
		}
		return s.load(s.branch)
	}

	ancestorSnap, err := s.snapshotOf(nca)
	if err != nil {
		return err
	}
	curSnap, err := s.snapshotOf(cur.HeadCommitID)
	if err != nil {
		return err
	}
	srcSnap, err := s.snapshotOf(src.HeadCommitID)
	if err != nil {
		return err
	}

	curChanges, err := s.changesSince(ancestorSnap, curSnap)
	if err != nil {
		return err
	}
	srcChanges, err := s.changesSince(ancestorSnap, srcSnap)
	if err != nil {
		return err
	}

	merged := make(map[string]change)
	var conflicts []model.Conflict

	for path, incoming := range srcChanges {
		ours, changedHere := curChanges[path]

		if !changedHere {
			// Changed only in source: take it
			if incoming.kind == model.ChangeDeleted {
				if _, inCur := curSnap[path]; inCur {
					merged[path] = change{tombstone: true}
				}
			} else {
				merged[path] = change{version: incoming.version}
			}
			continue
		}

		// Both sides deleted: stays deleted, no conflict
		if ours.kind == model.ChangeDeleted && incoming.kind == model.ChangeDeleted {
			continue
		}

		// Identical change on both sides: current snapshot already has it
		if ours.kind != model.ChangeDeleted && incoming.kind != model.ChangeDeleted && ours.value == incoming.value {
			continue
		}

		conflicts = append(conflicts, model.Conflict{
			Path:          path,
			CurrentValue:  ours.value,
			IncomingValue: incoming.value,
		})

		if force {
			// Conflicts resolve to the incoming side
			if incoming.kind == model.ChangeDeleted {
				merged[path] = change{tombstone: true}
			} else {
				merged[path] = change{version: incoming.version}
			}
		}
	}

	if len(conflicts) > 0 && !force {
		return &MergeConflictError{Source: source, Conflicts: conflicts}
	}

	// Paths changed only on the current branch are already in its head
	// snapshot; the overlay holds just the incoming side.
	s.base = curSnap
	s.pending = merged
	return nil
}

// ancestors returns the set of commit ids reachable from id, inclusive
func (s *Session) ancestors(id string) (map[string]bool, error) {
	set := make(map[string]bool)
	for id != "" {
		set[id] = true
		commit, err := s.db.GetCommit(id)
		if err != nil {
			return nil, err
		}
		id = commit.ParentID
	}
	return set, nil
}

// changesSince classifies every path that differs between an ancestor
// snapshot and a head snapshot, carrying the head's decrypted value for
// conflict detection. Shared version numbers short-circuit the comparison.
func (s *Session) changesSince(ancestor, head map[string]int) (map[string]mergeChange, error) {
	changes := make(map[string]mergeChange)

	for path, headVer := range head {
		ancVer, inAncestor := ancestor[path]
		if inAncestor && ancVer == headVer {
			continue
		}

		_, headValue, err := s.loadVersion(path, headVer)
		if err != nil {
			return nil, err
		}

		if !inAncestor {
			changes[path] = mergeChange{kind: model.ChangeAdded, version: headVer, value: headValue}
			continue
		}

		_, ancValue, err := s.loadVersion(path, ancVer)
		if err != nil {
			return nil, err
		}
		if ancValue == headValue {
			continue
		}
		changes[path] = mergeChange{kind: model.ChangeModified, version: headVer, value: headValue}
	}

	for path := range ancestor {
		if _, ok := head[path]; !ok {
			changes[path] = mergeChange{kind: model.ChangeDeleted}
		}
	}

	return changes, nil
}
