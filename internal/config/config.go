// Package config loads configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"
)

// Client holds the configuration of the project store client.
type Client struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Local store ("memory", "fs" or "sqlite")
	Store      string `yaml:"store"`
	DataDir    string `yaml:"data_dir"`
	StoreQuota int64  `yaml:"store_quota"` // bytes, 0 = unlimited

	// Remote sync endpoint (empty = offline-only)
	SyncURL        string        `yaml:"sync_url"`
	Token          string        `yaml:"token"`
	TokenFile      string        `yaml:"token_file"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	SyncAttempts   int           `yaml:"sync_attempts"`
	HealthInterval time.Duration `yaml:"health_interval"`

	// Scheduler
	AutosaveEnabled  bool          `yaml:"autosave_enabled"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	SyncInterval     time.Duration `yaml:"sync_interval"`
	Debounce         time.Duration `yaml:"debounce"`

	// History
	MaxHistory int `yaml:"max_history"`
}

// Receiver holds the configuration of the reference sync endpoint.
type Receiver struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Snapshot backend ("memory", "postgres" or "s3")
	SnapshotBackend string `yaml:"snapshot_backend"`
	DatabaseURL     string `yaml:"database_url"`

	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Region    string `yaml:"s3_region"`

	// Optional: when set, bearer tokens must be HMAC-signed JWTs.
	JWTSecret string `yaml:"jwt_secret"`

	MaxBodySize int64 `yaml:"max_body_size"`
}

// DefaultClient returns the client defaults.
func DefaultClient() Client {
	home, _ := os.UserHomeDir()
	return Client{
		LogLevel:         "info",
		LogFormat:        "console",
		Store:            "fs",
		DataDir:          filepath.Join(home, ".local", "share", "projectfs"),
		StoreQuota:       5 << 20,
		HTTPTimeout:      30 * time.Second,
		SyncAttempts:     1,
		HealthInterval:   15 * time.Second,
		AutosaveEnabled:  true,
		AutosaveInterval: 30 * time.Second,
		SyncInterval:     60 * time.Second,
		Debounce:         time.Second,
		MaxHistory:       50,
	}
}

// DefaultReceiver returns the receiver defaults.
func DefaultReceiver() Receiver {
	return Receiver{
		ListenAddr:      ":8080",
		MetricsAddr:     ":9090",
		LogLevel:        "info",
		LogFormat:       "json",
		SnapshotBackend: "memory",
		S3Endpoint:      "http://localhost:9000",
		S3Bucket:        "projectfs",
		S3AccessKey:     "minioadmin",
		S3SecretKey:     "minioadmin",
		S3Region:        "us-east-1",
		MaxBodySize:     16 << 20,
	}
}

// LoadClient reads the client configuration. path may be empty; otherwise
// PROJECTFS_CONFIG is consulted.
func LoadClient(path string) (*Client, error) {
	cfg := DefaultClient()
	if err := loadFile(firstNonEmpty(path, os.Getenv("PROJECTFS_CONFIG")), &cfg); err != nil {
		return nil, err
	}

	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.Store = envOr("PROJECTFS_STORE", cfg.Store)
	cfg.DataDir = envOr("PROJECTFS_DATA_DIR", cfg.DataDir)
	cfg.StoreQuota = envInt64("PROJECTFS_STORE_QUOTA", cfg.StoreQuota)
	cfg.SyncURL = envOr("PROJECTFS_SYNC_URL", cfg.SyncURL)
	cfg.Token = envOr("PROJECTFS_TOKEN", cfg.Token)
	cfg.TokenFile = envOr("PROJECTFS_TOKEN_FILE", cfg.TokenFile)
	cfg.HTTPTimeout = envDuration("PROJECTFS_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.SyncAttempts = envInt("PROJECTFS_SYNC_ATTEMPTS", cfg.SyncAttempts)
	cfg.HealthInterval = envDuration("PROJECTFS_HEALTH_INTERVAL", cfg.HealthInterval)
	cfg.AutosaveEnabled = envBool("PROJECTFS_AUTOSAVE_ENABLED", cfg.AutosaveEnabled)
	cfg.AutosaveInterval = envDuration("PROJECTFS_AUTOSAVE_INTERVAL", cfg.AutosaveInterval)
	cfg.SyncInterval = envDuration("PROJECTFS_SYNC_INTERVAL", cfg.SyncInterval)
	cfg.Debounce = envDuration("PROJECTFS_DEBOUNCE", cfg.Debounce)
	cfg.MaxHistory = envInt("PROJECTFS_MAX_HISTORY", cfg.MaxHistory)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Client) Validate() error {
	switch c.Store {
	case "memory", "fs", "sqlite":
	default:
		return errors.Newf(errors.CodeInvalidConfig, "unknown store %q (want memory, fs or sqlite)", c.Store)
	}
	if c.Store != "memory" && c.DataDir == "" {
		return errors.New(errors.CodeInvalidConfig, "data_dir is required for persistent stores")
	}
	if c.AutosaveInterval <= 0 || c.SyncInterval <= 0 {
		return errors.New(errors.CodeInvalidConfig, "autosave and sync intervals must be positive")
	}
	if c.Debounce < 0 {
		return errors.New(errors.CodeInvalidConfig, "debounce must not be negative")
	}
	if c.MaxHistory <= 0 {
		return errors.New(errors.CodeInvalidConfig, "max_history must be positive")
	}
	if c.SyncAttempts <= 0 {
		c.SyncAttempts = 1
	}
	return nil
}

// LoadReceiver reads the receiver configuration.
func LoadReceiver(path string) (*Receiver, error) {
	cfg := DefaultReceiver()
	if err := loadFile(firstNonEmpty(path, os.Getenv("SYNCD_CONFIG")), &cfg); err != nil {
		return nil, err
	}

	cfg.ListenAddr = envOr("LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = envOr("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.SnapshotBackend = envOr("SNAPSHOT_BACKEND", cfg.SnapshotBackend)
	cfg.DatabaseURL = envOr("DATABASE_URL", cfg.DatabaseURL)
	cfg.S3Endpoint = envOr("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Bucket = envOr("S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = envOr("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = envOr("S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3Region = envOr("S3_REGION", cfg.S3Region)
	cfg.JWTSecret = envOr("JWT_SECRET", cfg.JWTSecret)
	cfg.MaxBodySize = envInt64("MAX_BODY_SIZE", cfg.MaxBodySize)

	switch cfg.SnapshotBackend {
	case "memory", "s3":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New(errors.CodeInvalidConfig, "DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown snapshot backend %q", cfg.SnapshotBackend)
	}
	return &cfg, nil
}

func loadFile(path string, out interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.CodeInvalidConfig, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, errors.CodeInvalidConfig, "parse config %s", path)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
