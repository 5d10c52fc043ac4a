// Package workspace is the project store service: project lifecycle, file
// operations and per-file undo/redo on top of the sync engine, the
// persistence adapter and the autosave scheduler.
package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/autosave"
	"github.com/fruitsalade/projectfs/internal/history"
	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/internal/persist"
	"github.com/fruitsalade/projectfs/internal/syncer"
	"github.com/fruitsalade/projectfs/internal/templates"
	"github.com/fruitsalade/projectfs/pkg/models"
	"github.com/fruitsalade/projectfs/pkg/tree"
)

// Options wires a Service. Scheduler may be nil.
type Options struct {
	Store      *persist.Store
	Engine     *syncer.Engine
	Scheduler  *autosave.Scheduler
	MaxHistory int
	Now        func() time.Time
	NewID      func() string
}

// Service is an explicitly constructed project store. It holds no global state.
type Service struct {
	store     *persist.Store
	engine    *syncer.Engine
	scheduler *autosave.Scheduler
	maxHist   int
	now       func() time.Time
	newID     func() string
	log       *zap.Logger

	mu      sync.Mutex
	history map[string]*history.Ring
}

// New creates a service.
func New(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = history.DefaultMax
	}
	return &Service{
		store:     opts.Store,
		engine:    opts.Engine,
		scheduler: opts.Scheduler,
		maxHist:   opts.MaxHistory,
		now:       opts.Now,
		newID:     opts.NewID,
		log:       logging.Named("workspace"),
		history:   make(map[string]*history.Ring),
	}
}

// errUnchanged aborts a mutation that would not change anything.
var errUnchanged = errors.New(errors.CodeConflict, "unchanged")

func (s *Service) touch() {
	if s.scheduler != nil {
		s.scheduler.Touch()
	}
}

func (s *Service) mutate(fn func(p *models.ProjectFolder) error) error {
	err := s.engine.Mutate(fn)
	if err == errUnchanged {
		return nil
	}
	if err != nil {
		return err
	}
	s.touch()
	return nil
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New(errors.CodeInvalidInput, "name must not be empty")
	case name == "." || name == "..":
		return errors.Newf(errors.CodeInvalidInput, "invalid name %q", name)
	case strings.Contains(name, tree.Separator):
		return errors.Newf(errors.CodeInvalidInput, "name %q must not contain %q", name, tree.Separator)
	}
	return nil
}

func notFound(id string) error {
	return errors.WithContext(errors.Newf(errors.CodeNotFound, "node %s not found", id), "file_id", id)
}

// NewProject creates a project seeded with the starter files, persists it
// and makes it the active project.
func (s *Service) NewProject(ctx context.Context, name string) (*models.ProjectFolder, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := s.flushActive(); err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.ProjectFolder{
		ID:         s.newID(),
		Name:       name,
		SyncStatus: models.SyncPending,
	}
	for _, f := range templates.StarterFiles(name) {
		p.Files = append(p.Files, &models.FileNode{
			ID:           s.newID(),
			Name:         f.Name,
			Kind:         models.KindFile,
			Content:      f.Content,
			Language:     f.Language,
			LastModified: now,
		})
	}
	tree.RefreshPaths(p.Files)

	if err := s.store.Save(p); err != nil {
		return nil, err
	}
	if err := s.activate(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("project created", logging.ProjectID(p.ID), zap.String("name", name))
	return p.Clone(), nil
}

// OpenProject loads a stored project and makes it active. A pending sync of
// the previous project is awaited first.
func (s *Service) OpenProject(ctx context.Context, id string) (*models.ProjectFolder, error) {
	if err := s.flushActive(); err != nil {
		return nil, err
	}
	p, ok := s.store.Load(id)
	if !ok {
		return nil, errors.WithContext(errors.Newf(errors.CodeNotFound, "project %s not found", id), "project_id", id)
	}
	if err := s.activate(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("project opened", logging.ProjectID(id))
	return p.Clone(), nil
}

// Resume reopens the project the current-project pointer names, if any.
func (s *Service) Resume(ctx context.Context) (bool, error) {
	id, ok := s.store.GetCurrent()
	if !ok {
		return false, nil
	}
	if _, err := s.OpenProject(ctx, id); err != nil {
		if errors.GetCode(err) == errors.CodeNotFound {
			s.log.Warn("current project pointer is stale", logging.ProjectID(id))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) activate(ctx context.Context, p *models.ProjectFolder) error {
	if err := s.engine.SwitchProject(ctx, p); err != nil {
		return err
	}
	s.mu.Lock()
	s.history = make(map[string]*history.Ring)
	s.mu.Unlock()

	if err := s.store.SetCurrent(p.ID); err != nil {
		return err
	}
	if err := s.store.AddRecent(p.ID); err != nil {
		s.log.Warn("update recent projects", zap.Error(err))
	}
	return nil
}

// flushActive saves unsaved changes of the active project before a switch.
func (s *Service) flushActive() error {
	if s.scheduler == nil || !s.engine.HasProject() || !s.scheduler.Unsaved() {
		return nil
	}
	return s.scheduler.Flush()
}

// ListProjects summarizes the stored projects.
func (s *Service) ListProjects() ([]persist.Summary, error) {
	return s.store.ListProjects()
}

// DeleteProject removes a stored project that is not active.
func (s *Service) DeleteProject(id string) error {
	if p, ok := s.engine.Project(); ok && p.ID == id {
		return errors.New(errors.CodeConflict, "cannot delete the active project")
	}
	return s.store.Delete(id)
}

// Project returns a copy of the active project.
func (s *Service) Project() (*models.ProjectFolder, error) {
	p, ok := s.engine.Project()
	if !ok {
		return nil, syncer.ErrNoProject
	}
	return p, nil
}

// Settings returns the stored editor settings.
func (s *Service) Settings() models.EditorSettings { return s.store.LoadSettings() }

// UpdateSettings applies fn to the stored editor settings and saves them.
func (s *Service) UpdateSettings(fn func(*models.EditorSettings)) (models.EditorSettings, error) {
	settings := s.store.LoadSettings()
	fn(&settings)
	if settings.FontSize <= 0 || settings.TabSize <= 0 {
		return settings, errors.New(errors.CodeInvalidInput, "font and tab size must be positive")
	}
	if err := s.store.SaveSettings(settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// Status returns the sync status.
func (s *Service) Status() models.SyncStatus { return s.engine.Status() }

// CreateFile adds a file under parentID (empty for the project root). The
// language is detected from the name when empty; content is seeded from the
// language boilerplate.
func (s *Service) CreateFile(parentID, name, language string) (*models.FileNode, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if language == "" {
		language = templates.Detect(name)
	}
	node := &models.FileNode{
		ID:       s.newID(),
		Name:     name,
		Kind:     models.KindFile,
		Content:  templates.Content(language),
		Language: language,
	}
	node.Touch(s.now())
	return s.insert(parentID, node)
}

// CreateFolder adds an empty folder under parentID.
func (s *Service) CreateFolder(parentID, name string) (*models.FileNode, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	node := &models.FileNode{
		ID:           s.newID(),
		Name:         name,
		Kind:         models.KindFolder,
		LastModified: s.now(),
	}
	return s.insert(parentID, node)
}

func (s *Service) insert(parentID string, node *models.FileNode) (*models.FileNode, error) {
	err := s.mutate(func(p *models.ProjectFolder) error {
		files, err := tree.Insert(p.Files, parentID, node)
		if err != nil {
			return err
		}
		p.Files = files
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("node created", logging.FileID(node.ID), zap.String("path", node.Path))
	return node.Clone(), nil
}

// ReadFile returns a file's content.
func (s *Service) ReadFile(id string) (string, error) {
	var content string
	err := s.engine.View(func(p *models.ProjectFolder) error {
		n, err := fileNode(p, id)
		if err != nil {
			return err
		}
		content = n.Content
		return nil
	})
	return content, err
}

// Lookup resolves a materialized path to a node copy. The leading separator
// is optional.
func (s *Service) Lookup(path string) (*models.FileNode, error) {
	if !strings.HasPrefix(path, tree.Separator) {
		path = tree.Separator + path
	}
	var out *models.FileNode
	err := s.engine.View(func(p *models.ProjectFolder) error {
		n, ok := tree.FindByPath(p.Files, path)
		if !ok {
			return errors.WithContext(errors.Newf(errors.CodeNotFound, "path %s not found", path), "path", path)
		}
		out = n.Clone()
		return nil
	})
	return out, err
}

func fileNode(p *models.ProjectFolder, id string) (*models.FileNode, error) {
	n, ok := tree.FindNode(p.Files, id)
	if !ok {
		return nil, notFound(id)
	}
	switch n.Kind {
	case models.KindFile:
		return n, nil
	case models.KindFolder:
		return nil, errors.WithContext(errors.Newf(errors.CodeInvalidInput, "%s is a folder", n.Path), "file_id", id)
	default:
		return nil, errors.Newf(errors.CodeSchemaFailed, "node %s has unknown kind %q", id, n.Kind)
	}
}

// SaveFile replaces a file's content, marks it dirty and records the
// previous content for undo. Saving identical content changes nothing.
func (s *Service) SaveFile(id, content string) error {
	var ring *history.Ring
	err := s.mutate(func(p *models.ProjectFolder) error {
		n, err := fileNode(p, id)
		if err != nil {
			return err
		}
		if n.Content == content {
			return errUnchanged
		}
		ring = s.ring(id, n.Content)
		ring.Push(content)
		n.Content = content
		n.Touch(s.now())
		return nil
	})
	if err != nil || ring == nil {
		return err
	}
	s.saveHistory(id, ring)
	return nil
}

// Undo restores the previous content of a file.
func (s *Service) Undo(id string) (string, error) {
	return s.step(id, (*history.Ring).Undo)
}

// Redo re-applies the content undone last.
func (s *Service) Redo(id string) (string, error) {
	return s.step(id, (*history.Ring).Redo)
}

// HistoryAvailable reports whether Undo and Redo of a file would succeed.
func (s *Service) HistoryAvailable(id string) (undo, redo bool, err error) {
	err = s.engine.View(func(p *models.ProjectFolder) error {
		n, err := fileNode(p, id)
		if err != nil {
			return err
		}
		r := s.ring(id, n.Content)
		undo, redo = r.CanUndo(), r.CanRedo()
		return nil
	})
	return undo, redo, err
}

func (s *Service) step(id string, move func(*history.Ring) (string, error)) (string, error) {
	var (
		ring    *history.Ring
		content string
	)
	err := s.mutate(func(p *models.ProjectFolder) error {
		n, err := fileNode(p, id)
		if err != nil {
			return err
		}
		ring = s.ring(id, n.Content)
		c, err := move(ring)
		if err != nil {
			return err
		}
		content = c
		n.Content = c
		n.Touch(s.now())
		return nil
	})
	if err != nil {
		return "", err
	}
	s.saveHistory(id, ring)
	return content, nil
}

// ring returns the history of a file, loading it on first use. A ring whose
// present no longer matches the file records the file's content first.
func (s *Service) ring(id, current string) *history.Ring {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.history[id]
	if !ok {
		if st, found := s.store.LoadHistory(id); found {
			r = history.FromState(s.maxHist, st)
		} else {
			r = history.FromState(s.maxHist, models.HistoryState{Present: current})
		}
		s.history[id] = r
	}
	r.Push(current)
	return r
}

func (s *Service) saveHistory(id string, r *history.Ring) {
	if err := s.store.SaveHistory(id, r.State()); err != nil {
		s.log.Warn("save history failed", logging.FileID(id), zap.Error(err))
	}
}

// Rename changes a node's name. Paths of the node and every descendant are
// recomputed.
func (s *Service) Rename(id, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	return s.mutate(func(p *models.ProjectFolder) error {
		n, ok := tree.FindNode(p.Files, id)
		if !ok {
			return notFound(id)
		}
		if n.Name == newName {
			return errUnchanged
		}
		siblings, _ := tree.Siblings(p.Files, id)
		for _, sib := range siblings {
			if sib.ID != id && sib.Name == newName {
				return errors.Newf(errors.CodeAlreadyExists, "%q already exists", newName)
			}
		}

		parentPath := ""
		if parent, _ := tree.FindParent(p.Files, id); parent != nil {
			parentPath = parent.Path
		}
		n.Name = newName
		tree.RefreshSubtree(n, parentPath)

		switch n.Kind {
		case models.KindFile:
			n.Touch(s.now())
		case models.KindFolder:
			n.LastModified = s.now()
		default:
			return errors.Newf(errors.CodeSchemaFailed, "node %s has unknown kind %q", id, n.Kind)
		}
		return nil
	})
}

// Delete removes a node and its subtree.
func (s *Service) Delete(id string) error {
	var removed []string
	err := s.mutate(func(p *models.ProjectFolder) error {
		n, ok := tree.FindNode(p.Files, id)
		if !ok {
			return notFound(id)
		}
		tree.Walk([]*models.FileNode{n}, func(d *models.FileNode) {
			if d.IsFile() {
				removed = append(removed, d.ID)
			}
		})
		p.Files, _ = tree.RemoveNode(p.Files, id)
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, fid := range removed {
		delete(s.history, fid)
	}
	s.mu.Unlock()
	for _, fid := range removed {
		if err := s.store.DeleteHistory(fid); err != nil {
			s.log.Warn("delete history failed", logging.FileID(fid), zap.Error(err))
		}
	}
	return nil
}

// Sync triggers a sync of the active project.
func (s *Service) Sync(ctx context.Context) error {
	return s.engine.Sync(ctx)
}

// Flush persists the active project now.
func (s *Service) Flush() error {
	if s.scheduler != nil {
		return s.scheduler.Flush()
	}
	return s.engine.Save()
}

// Close stops the scheduler and makes a final best-effort save.
func (s *Service) Close(ctx context.Context) error {
	if err := s.engine.WaitIdle(ctx); err != nil {
		s.log.Warn("closing with a sync in flight", zap.Error(err))
	}
	if s.scheduler != nil {
		return s.scheduler.Shutdown()
	}
	if s.engine.HasProject() {
		return s.engine.Save()
	}
	return nil
}
