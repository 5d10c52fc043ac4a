package kv

import (
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	memFS, err := NewFS(memfs.New())
	require.NoError(t, err)

	osFS, err := OpenDir(t.TempDir())
	require.NoError(t, err)

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemory(),
		"memfs":  memFS,
		"osfs":   osFS,
		"sqlite": sqlite,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get("missing")
			assert.True(t, IsNotFound(err), "Get(missing) = %v", err)

			require.NoError(t, s.Set("project_a", []byte(`{"id":"a"}`)))
			require.NoError(t, s.Set("project_b", []byte(`{"id":"b"}`)))
			require.NoError(t, s.Set("currentProject", []byte("a")))
			require.NoError(t, s.Set("fileHistory_x/y", []byte("{}")))

			v, err := s.Get("project_a")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"a"}`, string(v))

			require.NoError(t, s.Set("project_a", []byte(`{"id":"a","v":2}`)))
			v, err = s.Get("project_a")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"a","v":2}`, string(v))

			keys, err := s.Keys("project_")
			require.NoError(t, err)
			assert.Equal(t, []string{"project_a", "project_b"}, keys)

			keys, err = s.Keys("fileHistory_")
			require.NoError(t, err)
			assert.Equal(t, []string{"fileHistory_x/y"}, keys)

			require.NoError(t, s.Delete("project_b"))
			require.NoError(t, s.Delete("project_b"), "deleting twice is not an error")
			_, err = s.Get("project_b")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestFSStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenDir(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("project_p1", []byte("payload")))
	require.NoError(t, s.Close())

	s, err = OpenDir(dir)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("project_p1")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(v))
}

func TestFSStoreIgnoresLeftoverTempFiles(t *testing.T) {
	fs := memfs.New()
	s, err := NewFS(fs)
	require.NoError(t, err)

	require.NoError(t, util.WriteFile(fs, fs.Join(fsDir, "project_x"+tmpSuffix), []byte("torn"), 0644))
	require.NoError(t, s.Set("project_y", []byte("ok")))

	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"project_y"}, keys)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
}

func TestClosedStore(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Set("k", nil), ErrClosed)
}

func TestQuota(t *testing.T) {
	inner := NewMemory()
	require.NoError(t, inner.Set("aa", []byte("1234"))) // 6 bytes

	s, err := WithQuota(inner, 20)
	require.NoError(t, err)
	q := s.(*QuotaStore)
	assert.Equal(t, int64(6), q.Used())

	require.NoError(t, s.Set("bb", []byte("12345678"))) // 6 + 10
	assert.Equal(t, int64(16), q.Used())

	err = s.Set("cc", []byte("1234"))
	require.Error(t, err)
	assert.Equal(t, CodeQuotaExceeded, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))

	_, err = inner.Get("cc")
	assert.True(t, IsNotFound(err), "rejected write must not reach the backend")

	// Overwriting an existing key only counts the difference.
	require.NoError(t, s.Set("bb", []byte("123456789012")))
	assert.Equal(t, int64(20), q.Used())

	require.NoError(t, s.Delete("aa"))
	assert.Equal(t, int64(14), q.Used())
	require.NoError(t, s.Set("cc", []byte("1234")))
}

func TestQuotaDisabled(t *testing.T) {
	inner := NewMemory()
	s, err := WithQuota(inner, 0)
	require.NoError(t, err)
	assert.Same(t, inner, s)
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open("indexeddb", t.TempDir(), 0)
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
}
