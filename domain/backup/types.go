// Package backup describes database snapshot runs and the snapshot format.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrRunNotFound is returned when a backup run does not exist.
	ErrRunNotFound = errors.New("backup run not found")

	// ErrRunning is returned when a backup is requested while one is in progress.
	ErrRunning = errors.New("a backup is already running")
)

// SchemaVersion is bumped whenever the snapshot layout changes.
const SchemaVersion = 1

// SnapshotPrefix is the object name prefix for snapshots.
const SnapshotPrefix = "snapshots/"

// Trigger records why a backup ran.
type Trigger string

// Triggers.
const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// RunStatus is the lifecycle state of a backup run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one execution of the backup job.
type Run struct {
	ID         string         `json:"id"`
	Trigger    Trigger        `json:"trigger"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	ObjectName string         `json:"object_name,omitempty"`
	Size       uint64         `json:"size,omitempty"`
	Digest     string         `json:"digest,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Pruned     []string       `json:"pruned,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Manifest describes the contents of a snapshot.
type Manifest struct {
	SchemaVersion int            `json:"schema_version"`
	RunID         string         `json:"run_id"`
	CreatedAt     time.Time      `json:"created_at"`
	Counts        map[string]int `json:"counts"`
}

// Snapshot is the uploaded document: a manifest plus one JSON array per table.
type Snapshot struct {
	Manifest Manifest                   `json:"manifest"`
	Tables   map[string]json.RawMessage `json:"tables"`
}

// ObjectName returns the storage name of a snapshot. Names sort by time.
func ObjectName(at time.Time, runID string) string {
	return fmt.Sprintf("%s%s-%s.json", SnapshotPrefix, at.UTC().Format("20060102T150405Z"), runID)
}

// Expired returns the snapshot names that fall outside the newest keep
// entries. Names that are not snapshots are ignored.
func Expired(names []string, keep int) []string {
	snapshots := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, SnapshotPrefix) && strings.HasSuffix(n, ".json") {
			snapshots = append(snapshots, n)
		}
	}
	if keep < 1 || len(snapshots) <= keep {
		return nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(snapshots)))
	return snapshots[keep:]
}
