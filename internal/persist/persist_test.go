package persist

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/projectfs/internal/kv"
	"github.com/fruitsalade/projectfs/pkg/models"
	"github.com/fruitsalade/projectfs/pkg/tree"
)

func sampleProject(id string) *models.ProjectFolder {
	src := &models.FileNode{ID: "f-src", Name: "src", Kind: models.KindFolder}
	main := &models.FileNode{ID: "f-main", Name: "main.py", Kind: models.KindFile, Content: "print(1)", Language: "python", IsDirty: true}
	src.Children = []*models.FileNode{main}
	p := &models.ProjectFolder{ID: id, Name: "Demo", Files: []*models.FileNode{src}, SyncStatus: models.SyncPending}
	tree.RefreshPaths(p.Files)
	return p
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(kv.NewMemory())
	p := sampleProject("p1")

	require.NoError(t, s.Save(p))

	got, ok := s.Load("p1")
	require.True(t, ok)
	assert.Equal(t, "Demo", got.Name)

	main, ok := tree.FindNode(got.Files, "f-main")
	require.True(t, ok)
	assert.Equal(t, "/src/main.py", main.Path)
	assert.Equal(t, "f-src", main.ParentID)
	assert.True(t, main.IsDirty)
}

func TestLoadMissing(t *testing.T) {
	s := New(kv.NewMemory())
	_, ok := s.Load("nope")
	assert.False(t, ok)
}

func TestCorruptValuesAreNotFound(t *testing.T) {
	store := kv.NewMemory()
	s := New(store)
	require.NoError(t, s.Save(sampleProject("p1")))

	tests := []struct {
		name  string
		value func(t *testing.T) []byte
	}{
		{"not json", func(*testing.T) []byte { return []byte("{garbage") }},
		{"bad checksum", func(t *testing.T) []byte {
			raw, err := store.Get(ProjectKey("p1"))
			require.NoError(t, err)
			var env envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			env.Data = json.RawMessage(`{"id":"p1","name":"Tampered","files":[]}`)
			out, err := json.Marshal(env)
			require.NoError(t, err)
			return out
		}},
		{"invalid tree", func(t *testing.T) []byte {
			data := []byte(`{"id":"p1","name":"x","files":[{"id":"a","name":"a","type":"symlink","path":"/a"}]}`)
			out, err := json.Marshal(envelope{SchemaVersion: schemaVersion, Checksum: checksum(data), Data: data})
			require.NoError(t, err)
			return out
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.Set(ProjectKey("p1"), tt.value(t)))
			_, ok := s.Load("p1")
			assert.False(t, ok)
		})
	}
}

func TestSaveFailurePropagates(t *testing.T) {
	quota, err := kv.WithQuota(kv.NewMemory(), 64)
	require.NoError(t, err)
	s := New(quota)

	err = s.Save(sampleProject("p1"))
	require.Error(t, err)
	assert.Equal(t, CodePersistenceFailed, errors.GetCode(err))
	assert.True(t, IsQuotaExceeded(err))

	_, ok := s.Load("p1")
	assert.False(t, ok)
}

func TestSaveRejectsMissingID(t *testing.T) {
	s := New(kv.NewMemory())
	err := s.Save(&models.ProjectFolder{Name: "x"})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestCurrentPointer(t *testing.T) {
	s := New(kv.NewMemory())

	_, ok := s.GetCurrent()
	assert.False(t, ok)

	require.NoError(t, s.SetCurrent("p1"))
	id, ok := s.GetCurrent()
	assert.True(t, ok)
	assert.Equal(t, "p1", id)

	require.NoError(t, s.Save(sampleProject("p1")))
	require.NoError(t, s.Delete("p1"))
	_, ok = s.GetCurrent()
	assert.False(t, ok, "deleting the current project clears the pointer")
}

func TestHistory(t *testing.T) {
	s := New(kv.NewMemory())
	h := models.HistoryState{Past: []string{"a", "b"}, Present: "c", Future: []string{"d"}}

	require.NoError(t, s.SaveHistory("f1", h))
	got, ok := s.LoadHistory("f1")
	require.True(t, ok)
	assert.Equal(t, h, got)

	require.NoError(t, s.DeleteHistory("f1"))
	_, ok = s.LoadHistory("f1")
	assert.False(t, ok)
}

func TestSettingsAndRecent(t *testing.T) {
	s := New(kv.NewMemory())
	assert.Equal(t, models.DefaultEditorSettings(), s.LoadSettings())

	for i := 0; i < 12; i++ {
		require.NoError(t, s.AddRecent(string(rune('a'+i))))
	}
	require.NoError(t, s.AddRecent("c"))

	recent := s.LoadSettings().RecentProjects
	require.Len(t, recent, MaxRecent)
	assert.Equal(t, "c", recent[0])
	assert.Equal(t, "l", recent[1])
	assert.NotContains(t, recent[1:], "c")
	assert.Equal(t, 30*time.Second, s.LoadSettings().AutoSaveInterval)
}

func TestListProjects(t *testing.T) {
	store := kv.NewMemory()
	s := New(store)
	require.NoError(t, s.Save(sampleProject("p1")))
	require.NoError(t, s.Save(sampleProject("p2")))
	require.NoError(t, store.Set(ProjectKey("broken"), []byte("nope")))
	require.NoError(t, s.SetCurrent("p1"))

	list, err := s.ListProjects()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, 2, list[0].FileCount)
}

func TestSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := kv.OpenDir(dir)
	require.NoError(t, err)
	require.NoError(t, New(store).Save(sampleProject("p1")))
	require.NoError(t, store.Close())

	store, err = kv.OpenDir(dir)
	require.NoError(t, err)
	defer store.Close()

	got, ok := New(store).Load("p1")
	require.True(t, ok)
	assert.Equal(t, "Demo", got.Name)
}

func TestDeleteDropsHistoryAndRecent(t *testing.T) {
	store := kv.NewMemory()
	s := New(store)
	require.NoError(t, s.Save(sampleProject("p1")))
	require.NoError(t, s.SaveHistory("f-main", models.HistoryState{Past: []string{""}, Present: "print(1)"}))
	require.NoError(t, s.SaveHistory("other-file", models.HistoryState{Present: "x"}))
	require.NoError(t, s.SetCurrent("p1"))
	require.NoError(t, s.AddRecent("p2"))
	require.NoError(t, s.AddRecent("p1"))

	require.NoError(t, s.Delete("p1"))

	_, ok := s.Load("p1")
	assert.False(t, ok)
	_, ok = s.GetCurrent()
	assert.False(t, ok)
	keys, err := store.Keys(historyPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{HistoryKey("other-file")}, keys)
	assert.Equal(t, []string{"p2"}, s.LoadSettings().RecentProjects)
}
