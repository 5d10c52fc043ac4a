// Package protocol defines the request/response types of the remote sync endpoint.
package protocol

import (
	"time"

	"github.com/fruitsalade/projectfs/pkg/models"
)

// SyncPath is the endpoint that receives full-tree pushes.
const SyncPath = "/api/v1/sync"

// HealthPath is probed by the connectivity monitor.
const HealthPath = "/health"

// SyncRequest is the body of POST /api/v1/sync.
type SyncRequest struct {
	ProjectID   string             `json:"projectId"`
	ProjectName string             `json:"projectName"`
	Files       []*models.FileNode `json:"files"`
	LastSync    *time.Time         `json:"lastSync"`
}

// SyncResponse is returned by a successful sync. Clients only rely on the
// status code; the body is informational.
type SyncResponse struct {
	ProjectID  string    `json:"projectId"`
	ReceivedAt time.Time `json:"receivedAt"`
	FileCount  int       `json:"fileCount"`
}

// SnapshotResponse is returned by GET /api/v1/projects/{id}.
type SnapshotResponse struct {
	SyncRequest
	ReceivedAt time.Time `json:"receivedAt"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}
