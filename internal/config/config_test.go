package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
)

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("PROJECTFS_CONFIG", "")
	cfg, err := LoadClient("")
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.AutosaveInterval != 30*time.Second {
		t.Errorf("AutosaveInterval = %v, want 30s", cfg.AutosaveInterval)
	}
	if cfg.SyncInterval != 60*time.Second {
		t.Errorf("SyncInterval = %v, want 60s", cfg.SyncInterval)
	}
	if cfg.MaxHistory != 50 {
		t.Errorf("MaxHistory = %d, want 50", cfg.MaxHistory)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Debounce)
	}
}

func TestLoadClientFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projectfs.yaml")
	yaml := "store: sqlite\ndata_dir: /var/lib/projectfs\nsync_url: http://files.local\nautosave_interval: 10s\nmax_history: 20\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PROJECTFS_MAX_HISTORY", "5")
	t.Setenv("PROJECTFS_DEBOUNCE", "250ms")

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.Store != "sqlite" || cfg.DataDir != "/var/lib/projectfs" {
		t.Errorf("store = %s %s", cfg.Store, cfg.DataDir)
	}
	if cfg.SyncURL != "http://files.local" {
		t.Errorf("SyncURL = %q", cfg.SyncURL)
	}
	if cfg.AutosaveInterval != 10*time.Second {
		t.Errorf("AutosaveInterval = %v, want 10s from file", cfg.AutosaveInterval)
	}
	if cfg.MaxHistory != 5 {
		t.Errorf("MaxHistory = %d, want env override 5", cfg.MaxHistory)
	}
	if cfg.Debounce != 250*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Debounce)
	}
}

func TestLoadClientRejectsUnknownStore(t *testing.T) {
	t.Setenv("PROJECTFS_STORE", "indexeddb")
	_, err := LoadClient("")
	if errors.GetCode(err) != errors.CodeInvalidConfig {
		t.Errorf("got %v, want invalid config", err)
	}
}

func TestLoadClientMissingFile(t *testing.T) {
	_, err := LoadClient(filepath.Join(t.TempDir(), "nope.yaml"))
	if errors.GetCode(err) != errors.CodeInvalidConfig {
		t.Errorf("got %v, want invalid config", err)
	}
}

func TestLoadReceiver(t *testing.T) {
	t.Setenv("SYNCD_CONFIG", "")
	cfg, err := LoadReceiver("")
	if err != nil {
		t.Fatalf("LoadReceiver: %v", err)
	}
	if cfg.SnapshotBackend != "memory" || cfg.ListenAddr != ":8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("SNAPSHOT_BACKEND", "postgres")
	if _, err := LoadReceiver(""); err == nil {
		t.Error("postgres without DATABASE_URL should fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/projectfs")
	cfg, err = LoadReceiver("")
	if err != nil || cfg.DatabaseURL == "" {
		t.Errorf("LoadReceiver(postgres) = %v, %v", cfg, err)
	}
}
