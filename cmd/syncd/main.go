// syncd is a reference sync endpoint for projectfs clients.
//
// Features:
// - POST /api/v1/sync stores the latest tree per project (last write wins)
// - GET /api/v1/projects/{id} returns the stored tree
// - Optional HMAC JWT verification
// - Snapshot backends: memory, PostgreSQL, S3/MinIO
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/config"
	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/internal/metrics"
	"github.com/fruitsalade/projectfs/internal/receiver"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $SYNCD_CONFIG)")
	issueFor := flag.String("issue-token", "", "print a signed token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.LoadReceiver(*configPath)
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	if *issueFor != "" {
		if cfg.JWTSecret == "" {
			logging.Fatal("JWT_SECRET is required to issue tokens")
		}
		token, err := receiver.NewAuth(cfg.JWTSecret).IssueToken(*issueFor, *tokenTTL)
		if err != nil {
			logging.Fatal("issue token failed", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	logging.Info("syncd starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("backend", cfg.SnapshotBackend),
		zap.Bool("auth", cfg.JWTSecret != ""))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := receiver.OpenStore(ctx, *cfg)
	if err != nil {
		logging.Fatal("snapshot store init failed", zap.Error(err))
	}
	defer store.Close()

	srv := receiver.NewServer(receiver.Options{
		Store:       store,
		JWTSecret:   cfg.JWTSecret,
		MaxBodySize: cfg.MaxBodySize,
	})

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
