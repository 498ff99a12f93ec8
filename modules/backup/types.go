package backup

import (
	domain "github.com/wighaven/storefront/domain/backup"
)

// RunRequest is the request for services.backup.run.
type RunRequest struct {
	Wait bool `json:"wait,omitempty"`
}

// RunResponse wraps a run record.
type RunResponse struct {
	Run   *domain.Run `json:"run,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ListRequest is the request for services.backup.list.
type ListRequest struct{}

// ListResponse carries run history and stored snapshots.
type ListResponse struct {
	Runs      []domain.Run `json:"runs"`
	Snapshots []ObjectInfo `json:"snapshots"`
	Error     string       `json:"error,omitempty"`
}
