// Package logging holds the process-wide zap logger shared by the client and
// the sync endpoint.
package logging

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader carries the request id between client, endpoint and logs.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const (
	ctxLogger ctxKey = iota
	ctxRequestID
)

var (
	mu     sync.RWMutex
	global *zap.Logger
	// wrapped skips the package-level helpers when reporting the caller.
	wrapped *zap.Logger
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config selects level, encoding and sink.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json (default) or console
	OutputPath string // stdout, stderr or a file; empty keeps zap's default
}

// Init builds the global logger from cfg. An unknown level falls back to info.
func Init(cfg Config) error {
	var zc zap.Config
	switch cfg.Format {
	case "", "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if !SetLevel(cfg.Level) {
		level.SetLevel(zapcore.InfoLevel)
	}
	zc.Level = level
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}

	logger, err := zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}
	Replace(logger)
	return nil
}

// InitDefault installs a production logger.
func InitDefault() {
	logger, _ := zap.NewProduction()
	Replace(logger)
}

// Replace swaps the global logger. Tests install observers or zap.NewNop.
func Replace(logger *zap.Logger) {
	mu.Lock()
	global = logger
	wrapped = logger.WithOptions(zap.AddCallerSkip(1))
	mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return nil
	}
	return global.Sync()
}

// SetLevel changes the level at runtime and reports whether level was valid.
func SetLevel(name string) bool {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return false
	}
	level.SetLevel(l)
	return true
}

// L returns the global logger, installing the default one on first use.
func L() *zap.Logger {
	mu.RLock()
	logger := global
	mu.RUnlock()
	if logger != nil {
		return logger
	}
	InitDefault()
	return L()
}

// Named returns the logger of a component.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// WithContext returns the request-scoped logger stored in ctx, or the global one.
func WithContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(ctxLogger).(*zap.Logger); ok {
		return logger
	}
	return L()
}

// WithRequestID stores id and a logger tagged with it in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	logger := WithContext(ctx).With(zap.String("request_id", id))
	ctx = context.WithValue(ctx, ctxLogger, logger)
	return context.WithValue(ctx, ctxRequestID, id)
}

// GetRequestID returns the request id stored in ctx.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

func skipped() *zap.Logger {
	L()
	mu.RLock()
	defer mu.RUnlock()
	return wrapped
}

func Debug(msg string, fields ...zap.Field) { skipped().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { skipped().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { skipped().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { skipped().Error(msg, fields...) }

// Fatal logs and exits the process.
func Fatal(msg string, fields ...zap.Field) { skipped().Fatal(msg, fields...) }

// ProjectID tags an entry with a project.
func ProjectID(id string) zap.Field { return zap.String("project_id", id) }

// FileID tags an entry with a file node.
func FileID(id string) zap.Field { return zap.String("file_id", id) }

type recorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// Middleware assigns (or echoes) a request id and logs each request once it
// completes.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		WithContext(ctx).Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Int64("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
