package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/autosave"
	"github.com/fruitsalade/projectfs/internal/config"
	"github.com/fruitsalade/projectfs/internal/connectivity"
	"github.com/fruitsalade/projectfs/internal/kv"
	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/internal/persist"
	"github.com/fruitsalade/projectfs/internal/remote"
	"github.com/fruitsalade/projectfs/internal/syncer"
	"github.com/fruitsalade/projectfs/internal/workspace"
	"github.com/fruitsalade/projectfs/pkg/models"
	"github.com/fruitsalade/projectfs/pkg/retry"
	"github.com/fruitsalade/projectfs/pkg/tree"
)

// app is the process-wide wiring of one CLI invocation.
type app struct {
	kv      kv.Store
	store   *persist.Store
	remote  *remote.Client
	engine  *syncer.Engine
	sched   *autosave.Scheduler
	monitor *connectivity.Monitor
	svc     *workspace.Service
}

func newApp(cfg *config.Client) (*app, error) {
	backing, err := kv.Open(cfg.Store, cfg.DataDir, cfg.StoreQuota)
	if err != nil {
		return nil, err
	}
	store := persist.New(backing)

	a := &app{kv: backing, store: store}
	opts := syncer.Options{Store: store}
	if cfg.SyncURL != "" {
		rc := retry.DefaultConfig()
		rc.MaxAttempts = cfg.SyncAttempts
		a.remote = remote.New(remote.Config{
			BaseURL:     cfg.SyncURL,
			Timeout:     cfg.HTTPTimeout,
			RetryConfig: rc,
			Tokens:      tokenSource(cfg),
		})
		opts.Remote = a.remote
	}
	a.engine = syncer.New(opts)
	a.sched = autosave.New(a.engine, autosave.Options{
		Enabled:          cfg.AutosaveEnabled,
		AutosaveInterval: cfg.AutosaveInterval,
		SyncInterval:     cfg.SyncInterval,
		Debounce:         cfg.Debounce,
	})
	if a.remote != nil {
		a.monitor = connectivity.New(a.remote, cfg.HealthInterval, a.engine.SetOnline)
	}
	a.svc = workspace.New(workspace.Options{
		Store:      store,
		Engine:     a.engine,
		Scheduler:  a.sched,
		MaxHistory: cfg.MaxHistory,
	})
	return a, nil
}

func tokenSource(cfg *config.Client) remote.TokenSource {
	if cfg.TokenFile != "" {
		return &remote.FileTokenSource{Path: cfg.TokenFile, Margin: time.Minute}
	}
	return remote.StaticToken(cfg.Token)
}

// probe checks the sync endpoint once. Coming online syncs at once.
func (a *app) probe(ctx context.Context) bool {
	if a.monitor == nil {
		return false
	}
	return a.monitor.Check(ctx)
}

// close saves unsaved changes and releases the store.
func (a *app) close(ctx context.Context) error {
	err := a.svc.Close(ctx)
	if cerr := a.kv.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// withApp opens the store, resumes the current project when requireProject is
// set and always closes (and thereby saves) afterwards.
func withApp(ctx context.Context, requireProject bool, fn func(a *app) error) (err error) {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(ctx); cerr != nil {
			logging.Error("close store", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()

	if requireProject {
		ok, err := a.svc.Resume(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.CodeInvalidInput, `no current project; run "projectfs new" or "projectfs open" first`)
		}
	}
	return fn(a)
}

// splitPath returns the parent path and the last element of p.
func splitPath(p string) (string, string) {
	p = strings.Trim(p, tree.Separator)
	i := strings.LastIndex(p, tree.Separator)
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// parentID resolves a parent folder path ("" is the project root).
func parentID(svc *workspace.Service, parentPath string) (string, error) {
	if parentPath == "" {
		return "", nil
	}
	n, err := svc.Lookup(parentPath)
	if err != nil {
		return "", err
	}
	if !n.IsFolder() {
		return "", errors.Newf(errors.CodeInvalidInput, "%s is not a folder", parentPath)
	}
	return n.ID, nil
}

func printTree(w io.Writer, nodes []*models.FileNode, indent string) {
	for _, n := range nodes {
		marker := " "
		if n.IsDirty {
			marker = "*"
		}
		switch n.Kind {
		case models.KindFolder:
			fmt.Fprintf(w, "%s%s %s/\n", indent, marker, n.Name)
			printTree(w, n.Children, indent+"  ")
		case models.KindFile:
			fmt.Fprintf(w, "%s%s %s\n", indent, marker, n.Name)
		default:
			fmt.Fprintf(w, "%s? %s\n", indent, n.Name)
		}
	}
}

func printStatus(w io.Writer, st models.SyncStatus) {
	fmt.Fprintf(w, "state:    %s\n", st.State)
	fmt.Fprintf(w, "online:   %t\n", st.IsOnline)
	fmt.Fprintf(w, "pending:  %d\n", st.PendingChanges)
	if st.LastSync != nil {
		fmt.Fprintf(w, "lastSync: %s\n", st.LastSync.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "lastSync: never")
	}
	if st.Error != "" {
		fmt.Fprintf(w, "error:    %s\n", st.Error)
	}
}
