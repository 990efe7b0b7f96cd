package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cruxvault/cruxvault/internal/crypto"
	"github.com/cruxvault/cruxvault/internal/model"
)

func testSession(t *testing.T) *Session {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s, err := Open(filepath.Join(t.TempDir(), "store.db"), key, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenInitializesDefaultBranch(t *testing.T) {
	s := testSession(t)

	require.Equal(t, DefaultBranch, s.CurrentBranch())

	branches, err := s.Branches()
	require.NoError(t, err)
	require.Len(t, branches, 1)
	require.Equal(t, DefaultBranch, branches[0].Name)
	require.Empty(t, branches[0].HeadCommitID)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := testSession(t)

	put, err := s.Put("db/password", "hunter2", model.TypeSecret, []string{"prod", "db"})
	require.NoError(t, err)
	require.Equal(t, 1, put.Version)

	got, err := s.Get("db/password")
	require.NoError(t, err)
	require.Equal(t, "hunter2", got.Value)
	require.Equal(t, model.TypeSecret, got.Type)
	require.Equal(t, []string{"prod", "db"}, got.Tags)
	require.Equal(t, 1, got.Version)
}

func TestPutDefaultsAndValidation(t *testing.T) {
	s := testSession(t)

	put, err := s.Put("api/key", "k", "", nil)
	require.NoError(t, err)
	require.Equal(t, model.TypeSecret, put.Type)

	_, err = s.Put("", "v", model.TypeSecret, nil)
	require.ErrorIs(t, err, ErrEmptyPath)

	_, err = s.Put("x", "v", "certificate", nil)
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestPutVersioning(t *testing.T) {
	s := testSession(t)

	_, err := s.Put("app/token", "v1", model.TypeSecret, nil)
	require.NoError(t, err)

	put, err := s.Put("app/token", "v2", model.TypeSecret, nil)
	require.NoError(t, err)
	require.Equal(t, 2, put.Version)

	got, err := s.Get("app/token")
	require.NoError(t, err)
	require.Equal(t, "v2", got.Value)

	old, err := s.GetVersion("app/token", 1)
	require.NoError(t, err)
	require.Equal(t, "v1", old.Value)
	require.Equal(t, put.CreatedAt, old.CreatedAt)
}

func TestGetMissing(t *testing.T) {
	s := testSession(t)

	_, err := s.Get("no/such/path")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := testSession(t)

	_, err := s.Put("tmp/key", "v", model.TypeSecret, nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete("tmp/key"))

	_, err = s.Get("tmp/key")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Delete("tmp/key"), ErrNotFound)

	// History outlives working-tree deletion
	versions, err := s.History("tmp/key")
	require.NoError(t, err)
	require.Len(t, versions, 1)
}

func TestListPrefix(t *testing.T) {
	s := testSession(t)

	for path, value := range map[string]string{
		"db/host":  "localhost",
		"db/port":  "5432",
		"api/key":  "k",
		"database": "not under db/",
	} {
		_, err := s.Put(path, value, model.TypeConfig, nil)
		require.NoError(t, err)
	}

	secrets, err := s.List("db/")
	require.NoError(t, err)
	require.Len(t, secrets, 2)
	require.Equal(t, "db/host", secrets[0].Path)
	require.Equal(t, "db/port", secrets[1].Path)

	all, err := s.List("")
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestHistoryNewestFirst(t *testing.T) {
	s := testSession(t)

	for _, v := range []string{"one", "two", "three"} {
		_, err := s.Put("app/setting", v, model.TypeConfig, nil)
		require.NoError(t, err)
	}

	versions, err := s.History("app/setting")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	require.Equal(t, 3, versions[0].Version)
	require.Equal(t, "three", versions[0].Value)
	require.Equal(t, "one", versions[2].Value)

	_, err = s.History("never/written")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRollback(t *testing.T) {
	s := testSession(t)

	_, err := s.Put("db/password", "original", model.TypeSecret, []string{"db"})
	require.NoError(t, err)
	_, err = s.Put("db/password", "rotated", model.TypeSecret, []string{"db"})
	require.NoError(t, err)

	rolled, err := s.Rollback("db/password", 1)
	require.NoError(t, err)
	require.Equal(t, 3, rolled.Version)
	require.Equal(t, "original", rolled.Value)
	require.Equal(t, []string{"db"}, rolled.Tags)

	got, err := s.Get("db/password")
	require.NoError(t, err)
	require.Equal(t, "original", got.Value)

	_, err = s.Rollback("db/password", 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCloseDestroysKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(path, key, nil)
	require.NoError(t, err)
	_, err = s.Put("a", "1", model.TypeSecret, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// A fresh session with the same key still reads the store
	s2, err := Open(path, key, nil)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.Get("a")
	require.ErrorIs(t, err, ErrNotFound, "uncommitted writes must not survive reopen")
}
