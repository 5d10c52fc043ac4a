// Package receiver is a reference implementation of the sync endpoint. It
// keeps the latest pushed tree of every project (last write wins).
package receiver

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/internal/metrics"
	"github.com/fruitsalade/projectfs/pkg/models"
	"github.com/fruitsalade/projectfs/pkg/protocol"
	"github.com/fruitsalade/projectfs/pkg/tree"
)

// DefaultMaxBodySize bounds a pushed tree.
const DefaultMaxBodySize = 16 << 20

// Options configures a Server.
type Options struct {
	Store SnapshotStore
	// JWTSecret enables bearer token verification on the API routes.
	JWTSecret   string
	MaxBodySize int64
	Now         func() time.Time
}

// Server is the sync endpoint HTTP server.
type Server struct {
	store   SnapshotStore
	auth    *Auth
	maxBody int64
	now     func() time.Time
	log     *zap.Logger
}

// NewServer creates a server.
func NewServer(opts Options) *Server {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		store:   opts.Store,
		maxBody: opts.MaxBodySize,
		now:     opts.Now,
		log:     logging.Named("receiver"),
	}
	if opts.JWTSecret != "" {
		s.auth = NewAuth(opts.JWTSecret)
	}
	return s
}

// Auth returns the token verifier, or nil when authentication is disabled.
func (s *Server) Auth() *Auth { return s.auth }

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+protocol.HealthPath, s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("POST "+protocol.SyncPath, s.handleSync)
	api.HandleFunc("GET /api/v1/projects/{id}", s.handleSnapshot)

	if s.auth != nil {
		mux.Handle("/api/v1/", s.auth.Middleware(api))
	} else {
		mux.Handle("/api/v1/", api)
	}

	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return
		}
		sendError(w, http.StatusBadRequest, "read body", err.Error())
		return
	}

	var req protocol.SyncRequest
	if err := json.Unmarshal(body, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	if req.ProjectID == "" {
		sendError(w, http.StatusBadRequest, "projectId is required", "")
		return
	}
	if err := tree.Validate(req.Files); err != nil {
		sendError(w, http.StatusBadRequest, "invalid tree", err.Error())
		return
	}

	snap := &protocol.SnapshotResponse{SyncRequest: req, ReceivedAt: s.now().UTC()}
	if err := s.store.Put(r.Context(), snap); err != nil {
		s.log.Error("store snapshot failed", logging.ProjectID(req.ProjectID), zap.Error(err))
		sendError(w, statusFor(err), "store snapshot", errors.ToJSON(err).Message)
		return
	}
	metrics.RecordSnapshot(int64(len(body)))

	files := countFiles(req.Files)
	fields := []zap.Field{logging.ProjectID(req.ProjectID), zap.Int("files", files), zap.Int("bytes", len(body))}
	if claims := GetClaims(r.Context()); claims != nil {
		fields = append(fields, zap.String("subject", claims.Subject))
	}
	logging.WithContext(r.Context()).Info("snapshot stored", fields...)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.SyncResponse{
		ProjectID:  req.ProjectID,
		ReceivedAt: snap.ReceivedAt,
		FileCount:  files,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.store.Get(r.Context(), id)
	if err != nil {
		sendError(w, statusFor(err), "get snapshot", errors.ToJSON(err).Message)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// countFiles counts file nodes, folders excluded.
func countFiles(roots []*models.FileNode) int {
	n := 0
	tree.Walk(roots, func(node *models.FileNode) {
		if node.IsFile() {
			n++
		}
	})
	return n
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeSchemaFailed:
		return http.StatusBadRequest
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodeUnavailable, errors.CodeDatabase, errors.CodeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func sendError(w http.ResponseWriter, code int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
