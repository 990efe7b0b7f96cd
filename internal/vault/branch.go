package vault

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cruxvault/cruxvault/internal/model"
	"github.com/cruxvault/cruxvault/internal/storage"
)

// CurrentBranch returns the name of the branch this session works on
func (s *Session) CurrentBranch() string {
	return s.branch
}

// Branches lists all branch pointers ordered by name
func (s *Session) Branches() ([]model.Branch, error) {
	return s.db.ListBranches()
}

// CreateBranch creates a new branch pointing at the source branch's current
// head. No snapshot is copied; commits are shared. An empty from means the
// current branch.
func (s *Session) CreateBranch(name, from string) (*model.Branch, error) {
	branch, err := s.createBranch(name, from)
	s.record("branch", name, err, map[string]any{"from": from})
	return branch, err
}

func (s *Session) createBranch(name, from string) (*model.Branch, error) {
	if name == "" {
		return nil, ErrEmptyBranchName
	}
	if _, err := s.db.GetBranch(name); err == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrBranchExists)
	}

	if from == "" {
		from = s.branch
	}
	source, err := s.db.GetBranch(from)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("branch %q: %w", from, ErrNotFound)
		}
		return nil, err
	}

	branch := model.Branch{
		Name:         name,
		HeadCommitID: source.HeadCommitID,
		ForkedFrom:   source.Name,
		CreatedAt:    time.Now(),
	}
	if err := s.db.PutBranch(branch); err != nil {
		return nil, err
	}
	return &branch, nil
}

// Checkout switches the session to branch name. Uncommitted working-tree
// changes are discarded and the tree is rebuilt from the target's head.
func (s *Session) Checkout(name string) error {
	err := s.checkout(name)
	s.record("checkout", name, err, nil)
	return err
}

func (s *Session) checkout(name string) error {
	if err := s.load(name); err != nil {
		return err
	}
	return s.db.SetCurrentBranch(name)
}

// Commit realizes the working tree into a new immutable commit, advances the
// branch head and clears the dirty overlay. Returns ErrNothingToCommit when
// the tree matches the head snapshot.
func (s *Session) Commit(message string) (*model.Commit, error) {
	commit, err := s.commit(message)
	s.record("commit", s.branch, err, map[string]any{"message": message})
	return commit, err
}

func (s *Session) commit(message string) (*model.Commit, error) {
	changes, err := s.workingChanges()
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, ErrNothingToCommit
	}

	branch, err := s.db.GetBranch(s.branch)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]int, len(s.base))
	for path, version := range s.base {
		snapshot[path] = version
	}
	for path, kind := range changes {
		if kind == model.ChangeDeleted {
			delete(snapshot, path)
			continue
		}
		snapshot[path] = s.pending[path].version
	}

	commit := model.Commit{
		ID:        uuid.NewString(),
		ParentID:  branch.HeadCommitID,
		Branch:    s.branch,
		Message:   message,
		Author:    currentUser(),
		Timestamp: time.Now(),
		Snapshot:  snapshot,
	}
	if err := s.db.PutCommit(commit); err != nil {
		return nil, err
	}

	branch.HeadCommitID = commit.ID
	if err := s.db.PutBranch(*branch); err != nil {
		return nil, err
	}

	s.base = snapshot
	s.pending = make(map[string]change)

	if err := s.db.UpdateModified(); err != nil {
		return nil, err
	}
	return &commit, nil
}

// DeleteBranch removes a branch pointer. The current branch cannot be
// deleted.
func (s *Session) DeleteBranch(name string) error {
	err := s.deleteBranch(name)
	s.record("delete_branch", name, err, nil)
	return err
}

func (s *Session) deleteBranch(name string) error {
	if name == s.branch {
		return fmt.Errorf("%s: %w", name, ErrCurrentBranch)
	}
	if _, err := s.db.GetBranch(name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("branch %q: %w", name, ErrNotFound)
		}
		return err
	}
	return s.db.DeleteBranch(name)
}

// Log walks parent pointers from the branch head, newest first. An empty
// branch name means the current branch; limit <= 0 returns the full chain.
func (s *Session) Log(branch string, limit int) ([]model.Commit, error) {
	commits, err := s.log(branch, limit)
	s.record("log", branch, err, map[string]any{"limit": limit})
	return commits, err
}

func (s *Session) log(branch string, limit int) ([]model.Commit, error) {
	if branch == "" {
		branch = s.branch
	}
	b, err := s.db.GetBranch(branch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("branch %q: %w", branch, ErrNotFound)
		}
		return nil, err
	}

	var commits []model.Commit
	for id := b.HeadCommitID; id != ""; {
		commit, err := s.db.GetCommit(id)
		if err != nil {
			return nil, err
		}
		commits = append(commits, *commit)
		if limit > 0 && len(commits) >= limit {
			break
		}
		id = commit.ParentID
	}
	return commits, nil
}

// Reset moves the current branch head back to an earlier commit on its own
// chain and rebuilds the working tree from it. Uncommitted changes are
// discarded; later commits stay in the graph but become unreachable from
// this branch.
func (s *Session) Reset(commitID string) error {
	err := s.reset(commitID)
	s.record("reset", s.branch, err, map[string]any{"commit": commitID})
	return err
}

func (s *Session) reset(commitID string) error {
	branch, err := s.db.GetBranch(s.branch)
	if err != nil {
		return err
	}

	found := false
	for id := branch.HeadCommitID; id != ""; {
		if id == commitID {
			found = true
			break
		}
		commit, err := s.db.GetCommit(id)
		if err != nil {
			return err
		}
		id = commit.ParentID
	}
	if !found {
		return fmt.Errorf("commit %s on branch %q: %w", commitID, s.branch, ErrNotFound)
	}

	branch.HeadCommitID = commitID
	if err := s.db.PutBranch(*branch); err != nil {
		return err
	}
	return s.load(s.branch)
}
