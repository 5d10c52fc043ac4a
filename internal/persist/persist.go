// Package persist is the local persistence adapter: it stores project trees,
// the current-project pointer, per-file history and editor settings in a
// kv.Store.
//
// Every JSON value is wrapped in an envelope carrying a BLAKE2b checksum.
// Values that fail to decode or verify are treated as absent.
package persist

import (
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/fruitsalade/projectfs/internal/kv"
	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/internal/metrics"
	"github.com/fruitsalade/projectfs/pkg/models"
	"github.com/fruitsalade/projectfs/pkg/tree"
)

// CodePersistenceFailed marks a local store write that did not happen.
const CodePersistenceFailed errors.ErrorCode = "PERSISTENCE_FAILED"

const (
	projectPrefix = "project_"
	historyPrefix = "fileHistory_"
	currentKey    = "currentProject"
	settingsKey   = "editorSettings"

	// MaxRecent bounds the recently opened projects list.
	MaxRecent = 10

	schemaVersion = 1
)

type envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	SavedAt       time.Time       `json:"savedAt"`
	Checksum      string          `json:"checksum"`
	Data          json.RawMessage `json:"data"`
}

// Summary describes a stored project without its contents.
type Summary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	FileCount int        `json:"fileCount"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
}

// Store is the persistence adapter.
type Store struct {
	kv  kv.Store
	log *zap.Logger
	now func() time.Time
}

// New creates an adapter over store.
func New(store kv.Store) *Store {
	return &Store{
		kv:  store,
		log: logging.Named("persist"),
		now: time.Now,
	}
}

// ProjectKey returns the key a project is stored under.
func ProjectKey(id string) string { return projectPrefix + id }

// HistoryKey returns the key a file's history is stored under.
func HistoryKey(fileID string) string { return historyPrefix + fileID }

func checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) put(key string, v interface{}) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, errors.Wrapf(err, CodePersistenceFailed, "encode %s", key)
	}
	raw, err := json.Marshal(envelope{
		SchemaVersion: schemaVersion,
		SavedAt:       s.now().UTC(),
		Checksum:      checksum(data),
		Data:          data,
	})
	if err != nil {
		return 0, errors.Wrapf(err, CodePersistenceFailed, "encode %s", key)
	}
	if err := s.kv.Set(key, raw); err != nil {
		return 0, errors.Wrapf(err, CodePersistenceFailed, "write %s", key)
	}
	return len(raw), nil
}

// get decodes the value at key into v. It returns false when the key is
// missing or its value is corrupt.
func (s *Store) get(key string, v interface{}) bool {
	raw, err := s.kv.Get(key)
	if err != nil {
		if !kv.IsNotFound(err) {
			s.log.Warn("read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn("discarding corrupt value", zap.String("key", key), zap.Error(err))
		return false
	}
	if env.SchemaVersion != schemaVersion || env.Checksum != checksum(env.Data) {
		s.log.Warn("discarding value with bad checksum or version",
			zap.String("key", key),
			zap.Int("schema_version", env.SchemaVersion),
		)
		return false
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		s.log.Warn("discarding undecodable value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Save stores the full project tree. After it returns nil the tree survives
// a process restart. Failures carry CodePersistenceFailed.
func (s *Store) Save(p *models.ProjectFolder) error {
	if p == nil || p.ID == "" {
		return errors.New(errors.CodeInvalidInput, "project has no id")
	}

	size, err := s.put(ProjectKey(p.ID), p)
	metrics.RecordPersist(err == nil, size)
	if err != nil {
		s.log.Error("save project failed", logging.ProjectID(p.ID), zap.Error(err))
		return errors.WithContext(err, "project_id", p.ID)
	}
	s.log.Debug("project saved", logging.ProjectID(p.ID), zap.Int("bytes", size))
	return nil
}

// Load returns the stored project, or false if it is absent or corrupt.
func (s *Store) Load(id string) (*models.ProjectFolder, bool) {
	var p models.ProjectFolder
	if !s.get(ProjectKey(id), &p) {
		return nil, false
	}
	if p.ID != id {
		s.log.Warn("project id mismatch", zap.String("key_id", id), zap.String("stored_id", p.ID))
		return nil, false
	}
	if err := tree.Validate(p.Files); err != nil {
		s.log.Warn("discarding structurally invalid project", logging.ProjectID(id), zap.Error(err))
		return nil, false
	}
	return &p, true
}

// Delete removes a project together with the undo/redo history of its files,
// its entry in the recent list and the current pointer if it points at it.
// History of an unreadable project cannot be enumerated and is left alone.
func (s *Store) Delete(id string) error {
	if p, ok := s.Load(id); ok {
		var failed int
		tree.Walk(p.Files, func(n *models.FileNode) {
			if !n.IsFile() {
				return
			}
			if err := s.DeleteHistory(n.ID); err != nil {
				failed++
				s.log.Warn("delete history failed", logging.ProjectID(id), logging.FileID(n.ID), zap.Error(err))
			}
		})
		if failed > 0 {
			return errors.WithContext(
				errors.Newf(CodePersistenceFailed, "delete history of %d file(s)", failed),
				"project_id", id)
		}
	}

	if err := s.kv.Delete(ProjectKey(id)); err != nil {
		return errors.Wrapf(err, CodePersistenceFailed, "delete project %s", id)
	}
	if cur, ok := s.GetCurrent(); ok && cur == id {
		if err := s.kv.Delete(currentKey); err != nil {
			return errors.Wrap(err, CodePersistenceFailed, "clear current project")
		}
	}
	return s.RemoveRecent(id)
}

// ListProjects returns a summary of every stored, readable project.
func (s *Store) ListProjects() ([]Summary, error) {
	keys, err := s.kv.Keys(projectPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		p, ok := s.Load(strings.TrimPrefix(k, projectPrefix))
		if !ok {
			continue
		}
		out = append(out, Summary{
			ID:        p.ID,
			Name:      p.Name,
			FileCount: tree.CountNodes(p.Files),
			LastSync:  p.LastSync,
		})
	}
	return out, nil
}

// SetCurrent stores the active project pointer.
func (s *Store) SetCurrent(id string) error {
	if err := s.kv.Set(currentKey, []byte(id)); err != nil {
		return errors.Wrap(err, CodePersistenceFailed, "write current project")
	}
	return nil
}

// GetCurrent returns the active project pointer.
func (s *Store) GetCurrent() (string, bool) {
	v, err := s.kv.Get(currentKey)
	if err != nil || len(v) == 0 {
		return "", false
	}
	return string(v), true
}

// SaveHistory stores a file's undo/redo state.
func (s *Store) SaveHistory(fileID string, h models.HistoryState) error {
	_, err := s.put(HistoryKey(fileID), h)
	return err
}

// LoadHistory returns a file's undo/redo state.
func (s *Store) LoadHistory(fileID string) (models.HistoryState, bool) {
	var h models.HistoryState
	ok := s.get(HistoryKey(fileID), &h)
	return h, ok
}

// DeleteHistory drops a file's undo/redo state.
func (s *Store) DeleteHistory(fileID string) error {
	if err := s.kv.Delete(HistoryKey(fileID)); err != nil {
		return errors.Wrapf(err, CodePersistenceFailed, "delete history %s", fileID)
	}
	return nil
}

// LoadSettings returns the stored editor settings or the defaults.
func (s *Store) LoadSettings() models.EditorSettings {
	settings := models.DefaultEditorSettings()
	var stored models.EditorSettings
	if s.get(settingsKey, &stored) {
		settings = stored
	}
	return settings
}

// SaveSettings stores editor settings, trimming the recent list.
func (s *Store) SaveSettings(settings models.EditorSettings) error {
	if len(settings.RecentProjects) > MaxRecent {
		settings.RecentProjects = settings.RecentProjects[:MaxRecent]
	}
	_, err := s.put(settingsKey, settings)
	return err
}

// AddRecent moves id to the front of the recent projects list.
func (s *Store) AddRecent(id string) error {
	settings := s.LoadSettings()
	recent := make([]string, 0, MaxRecent)
	recent = append(recent, id)
	for _, r := range settings.RecentProjects {
		if r != id && len(recent) < MaxRecent {
			recent = append(recent, r)
		}
	}
	settings.RecentProjects = recent
	return s.SaveSettings(settings)
}

// RemoveRecent drops id from the recent projects list.
func (s *Store) RemoveRecent(id string) error {
	settings := s.LoadSettings()
	kept := settings.RecentProjects[:0]
	for _, r := range settings.RecentProjects {
		if r != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(settings.RecentProjects) {
		return nil
	}
	settings.RecentProjects = kept
	return s.SaveSettings(settings)
}

// IsQuotaExceeded reports whether err was caused by the store quota.
func IsQuotaExceeded(err error) bool {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if pe, ok := e.(errors.PlatformError); ok && pe.Code() == kv.CodeQuotaExceeded {
			return true
		}
	}
	return false
}
