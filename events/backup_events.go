package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// BackupCompletedEvent is emitted when a backup run finishes, successfully or not.
type BackupCompletedEvent struct {
	RunID      string         `json:"run_id"`
	Trigger    string         `json:"trigger"`
	Succeeded  bool           `json:"succeeded"`
	ObjectName string         `json:"object_name,omitempty"`
	Size       uint64         `json:"size,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Error      string         `json:"error,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}

// BackupCompletedV1 is the typed event definition for finished backups.
// Subject: events.backup.v1.backup-completed
var BackupCompletedV1 = helper.EventDefinition[BackupCompletedEvent](
	"backup", "BackupCompleted", "v1",
)
