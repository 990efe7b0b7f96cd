package vault

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cruxvault/cruxvault/internal/model"
)

func mustPut(t *testing.T, s *Session, path, value string) {
	t.Helper()
	_, err := s.Put(path, value, model.TypeConfig, nil)
	require.NoError(t, err)
}

func mustCommit(t *testing.T, s *Session, message string) *model.Commit {
	t.Helper()
	commit, err := s.Commit(message)
	require.NoError(t, err)
	return commit
}

func TestCommitEmptyTree(t *testing.T) {
	s := testSession(t)

	_, err := s.Commit("nothing staged")
	require.ErrorIs(t, err, ErrNothingToCommit)
}

func TestCommitAdvancesHead(t *testing.T) {
	s := testSession(t)

	mustPut(t, s, "db/host", "localhost")
	c1 := mustCommit(t, s, "add db host")
	require.Empty(t, c1.ParentID)
	require.Equal(t, DefaultBranch, c1.Branch)
	require.Equal(t, "add db host", c1.Message)
	require.Equal(t, map[string]int{"db/host": 1}, c1.Snapshot)

	mustPut(t, s, "db/port", "5432")
	c2 := mustCommit(t, s, "add db port")
	require.Equal(t, c1.ID, c2.ParentID)
	require.Len(t, c2.Snapshot, 2)

	// A re-put of the head value is not a change
	mustPut(t, s, "db/port", "5432")
	_, err := s.Commit("no-op")
	require.ErrorIs(t, err, ErrNothingToCommit)
}

func TestCommitDropsDeletedPaths(t *testing.T) {
	s := testSession(t)

	mustPut(t, s, "a", "1")
	mustPut(t, s, "b", "2")
	mustCommit(t, s, "two values")

	require.NoError(t, s.Delete("a"))
	c := mustCommit(t, s, "drop a")
	require.Equal(t, map[string]int{"b": 1}, c.Snapshot)

	_, err := s.Get("a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLog(t *testing.T) {
	s := testSession(t)

	mustPut(t, s, "a", "1")
	c1 := mustCommit(t, s, "first")
	mustPut(t, s, "a", "2")
	c2 := mustCommit(t, s, "second")

	commits, err := s.Log("", 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	require.Equal(t, c2.ID, commits[0].ID)
	require.Equal(t, c1.ID, commits[1].ID)

	limited, err := s.Log(DefaultBranch, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, c2.ID, limited[0].ID)

	_, err = s.Log("ghost", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBranch(t *testing.T) {
	s := testSession(t)

	mustPut(t, s, "a", "1")
	c1 := mustCommit(t, s, "base")

	branch, err := s.CreateBranch("dev", "")
	require.NoError(t, err)
	require.Equal(t, c1.ID, branch.HeadCommitID)
	require.Equal(t, DefaultBranch, branch.ForkedFrom)

	_, err = s.CreateBranch("dev", "")
	require.ErrorIs(t, err, ErrBranchExists)

	_, err = s.CreateBranch("", "")
	require.ErrorIs(t, err, ErrEmptyBranchName)

	_, err = s.CreateBranch("feature", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBranchIsolation(t *testing.T) {
	s := testSession(t)

	mustPut(t, s, "db/host", "localhost")
	mustCommit(t, s, "base")

	_, err := s.CreateBranch("dev", "")
	require.NoError(t, err)
	require.NoError(t, s.Checkout("dev"))
	require.Equal(t, "dev", s.CurrentBranch())

	mustPut(t, s, "db/host", "dev-db.internal")
	mustCommit(t, s, "point at dev db")

	got, err := s.Get("db/host")
	require.NoError(t, err)
	require.Equal(t, "dev-db.internal", got.Value)

	require.NoError(t, s.Checkout(DefaultBranch))
	got, err = s.Get("db/host")
	require.NoError(t, err)
	require.Equal(t, "localhost", got.Value)
}

func TestCheckoutDiscardsUncommitted(t *testing.T) {
	s := testSession(t)

	mustPut(t, s, "a", "committed")
	mustCommit(t, s, "base")
	_, err := s.CreateBranch("dev", "")
	require.NoError(t, err)

	mustPut(t, s, "a", "dirty")
	require.NoError(t, s.Checkout("dev"))
	require.NoError(t, s.Checkout(DefaultBranch))

	got, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, "committed", got.Value)

	status, err := s.Status()
	require.NoError(t, err)
	require.True(t, status.Clean())
}

func TestCheckoutMissingBranch(t *testing.T) {
	s := testSession(t)

	require.ErrorIs(t, s.Checkout("ghost"), ErrNotFound)
	require.Equal(t, DefaultBranch, s.CurrentBranch())
}

func TestDeleteBranch(t *testing.T) {
	s := testSession(t)

	_, err := s.CreateBranch("dev", "")
	require.NoError(t, err)

	require.ErrorIs(t, s.DeleteBranch(DefaultBranch), ErrCurrentBranch)
	require.ErrorIs(t, s.DeleteBranch("ghost"), ErrNotFound)

	require.NoError(t, s.DeleteBranch("dev"))
	branches, err := s.Branches()
	require.NoError(t, err)
	require.Len(t, branches, 1)
}

func TestReset(t *testing.T) {
	s := testSession(t)

	mustPut(t, s, "a", "1")
	c1 := mustCommit(t, s, "first")
	mustPut(t, s, "a", "2")
	mustCommit(t, s, "second")

	require.NoError(t, s.Reset(c1.ID))

	got, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, "1", got.Value)

	commits, err := s.Log("", 0)
	require.NoError(t, err)
	require.Len(t, commits, 1)

	require.ErrorIs(t, s.Reset("not-a-commit"), ErrNotFound)
}
