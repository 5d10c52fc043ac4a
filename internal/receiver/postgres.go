package receiver

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmgilman/go/errors"
	_ "github.com/lib/pq"

	"github.com/fruitsalade/projectfs/pkg/protocol"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS project_snapshots (
	project_id   TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	body         JSONB NOT NULL,
	file_count   INTEGER NOT NULL,
	received_at  TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps snapshots in the project_snapshots table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to databaseURL and creates the table if needed.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "open database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodeDatabase, "ping database")
	}
	return NewPostgres(ctx, db)
}

// NewPostgres uses an existing connection pool.
func NewPostgres(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, createSnapshotsTable); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "create project_snapshots")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Put(ctx context.Context, snap *protocol.SnapshotResponse) error {
	body, err := json.Marshal(snap.Files)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "encode snapshot")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_snapshots (project_id, project_name, body, file_count, received_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id) DO UPDATE SET
			project_name = EXCLUDED.project_name,
			body = EXCLUDED.body,
			file_count = EXCLUDED.file_count,
			received_at = EXCLUDED.received_at`,
		snap.ProjectID, snap.ProjectName, body, countFiles(snap.Files), snap.ReceivedAt)
	if err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeDatabase, "upsert snapshot"), "project_id", snap.ProjectID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, projectID string) (*protocol.SnapshotResponse, error) {
	var (
		snap protocol.SnapshotResponse
		body []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, project_name, body, received_at
		 FROM project_snapshots WHERE project_id = $1`, projectID,
	).Scan(&snap.ProjectID, &snap.ProjectName, &body, &snap.ReceivedAt)
	if err == sql.ErrNoRows {
		return nil, snapshotNotFound(projectID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "query snapshot")
	}
	if err := json.Unmarshal(body, &snap.Files); err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, "decode snapshot")
	}
	return &snap, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
