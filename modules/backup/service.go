// Package backup snapshots the storefront database into object storage.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	domain "github.com/wighaven/storefront/domain/backup"
	"github.com/wighaven/storefront/events"
	"gorm.io/gorm"
)

// TaskSubmitter runs background work.
type TaskSubmitter interface {
	Submit(name string, run func(ctx context.Context) error) error
}

// Service runs backups and keeps their history.
type Service struct {
	db        *gorm.DB
	objects   ObjectStore
	runs      *domain.Store
	tasks     TaskSubmitter
	retention int
	eventBus  mono.EventBus
	logger    types.Logger
	now       func() time.Time
}

// NewService creates a backup service keeping the newest retention snapshots.
func NewService(db *gorm.DB, objects ObjectStore, tasks TaskSubmitter, retention int, logger types.Logger) *Service {
	if retention < 1 {
		retention = 7
	}
	return &Service{
		db:        db,
		objects:   objects,
		runs:      domain.NewStore(50),
		tasks:     tasks,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// SetEventBus enables BackupCompleted events.
func (s *Service) SetEventBus(bus mono.EventBus) {
	s.eventBus = bus
}

// Trigger starts a backup in the background and returns the running record.
// It fails with ErrRunning while another backup is in progress.
func (s *Service) Trigger(ctx context.Context, trigger domain.Trigger) (*domain.Run, error) {
	run, err := s.runs.Begin(uuid.NewString(), trigger, s.now())
	if err != nil {
		return nil, err
	}
	task := func(ctx context.Context) error {
		s.execute(ctx, run)
		return nil
	}
	if s.tasks == nil {
		go func() { _ = task(context.WithoutCancel(ctx)) }()
		return run, nil
	}
	if err := s.tasks.Submit("backup-"+run.ID, task); err != nil {
		_ = s.runs.Fail(run.ID, s.now(), err.Error())
		return nil, fmt.Errorf("failed to queue backup: %w", err)
	}
	return run, nil
}

// RunNow performs a backup synchronously.
func (s *Service) RunNow(ctx context.Context, trigger domain.Trigger) (*domain.Run, error) {
	run, err := s.runs.Begin(uuid.NewString(), trigger, s.now())
	if err != nil {
		return nil, err
	}
	s.execute(ctx, run)
	return s.runs.Get(run.ID)
}

// execute exports, uploads and prunes, recording the outcome on the run.
func (s *Service) execute(ctx context.Context, run *domain.Run) {
	log := s.logger.With("runId", run.ID, "trigger", run.Trigger)
	log.Info("Backup started")

	info, counts, pruned, err := s.snapshot(ctx, run)
	finished := s.now()
	if err != nil {
		log.Error("Backup failed", "error", err)
		_ = s.runs.Fail(run.ID, finished, err.Error())
		s.publish(run, false, ObjectInfo{}, nil, err.Error(), finished)
		return
	}

	_ = s.runs.Succeed(run.ID, finished, func(r *domain.Run) {
		r.ObjectName = info.Name
		r.Size = info.Size
		r.Digest = info.Digest
		r.Counts = counts
		r.Pruned = pruned
	})
	log.Info("Backup completed",
		"object", info.Name,
		"size", info.Size,
		"pruned", len(pruned),
		"duration", finished.Sub(run.StartedAt))
	s.publish(run, true, info, counts, "", finished)
}

func (s *Service) snapshot(ctx context.Context, run *domain.Run) (ObjectInfo, map[string]int, []string, error) {
	tables, counts, err := Export(ctx, s.db)
	if err != nil {
		return ObjectInfo{}, nil, nil, err
	}
	doc := domain.Snapshot{
		Manifest: domain.Manifest{
			SchemaVersion: domain.SchemaVersion,
			RunID:         run.ID,
			CreatedAt:     run.StartedAt,
			Counts:        counts,
		},
		Tables: tables,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return ObjectInfo{}, nil, nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	name := domain.ObjectName(run.StartedAt, run.ID)
	info, err := s.objects.Put(ctx, name, data, map[string]string{
		"Content-Type":   "application/json",
		"Run-ID":         run.ID,
		"Schema-Version": strconv.Itoa(domain.SchemaVersion),
		"Created-At":     run.StartedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return ObjectInfo{}, nil, nil, err
	}

	pruned, err := s.prune()
	if err != nil {
		s.logger.Warn("Snapshot retention failed", "error", err)
	}
	return info, counts, pruned, nil
}

// prune deletes snapshots beyond the retention count.
func (s *Service) prune() ([]string, error) {
	objects, err := s.objects.List(domain.SnapshotPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(objects))
	for _, o := range objects {
		names = append(names, o.Name)
	}
	expired := domain.Expired(names, s.retention)
	pruned := make([]string, 0, len(expired))
	for _, name := range expired {
		if err := s.objects.Delete(name); err != nil {
			return pruned, fmt.Errorf("failed to delete %s: %w", name, err)
		}
		pruned = append(pruned, name)
	}
	return pruned, nil
}

// Runs returns the run history, newest first.
func (s *Service) Runs() []domain.Run {
	return s.runs.List()
}

// Run returns one run.
func (s *Service) Run(id string) (*domain.Run, error) {
	return s.runs.Get(id)
}

// LastRun returns the most recent run.
func (s *Service) LastRun() (*domain.Run, bool) {
	return s.runs.Last()
}

// Snapshots lists the stored snapshots.
func (s *Service) Snapshots() ([]ObjectInfo, error) {
	return s.objects.List(domain.SnapshotPrefix)
}

// Load reads and decodes a stored snapshot.
func (s *Service) Load(name string) (*domain.Snapshot, error) {
	data, err := s.objects.Get(name)
	if err != nil {
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	return &snap, nil
}

func (s *Service) publish(run *domain.Run, ok bool, info ObjectInfo, counts map[string]int, errMsg string, at time.Time) {
	if s.eventBus == nil {
		return
	}
	evt := events.BackupCompletedEvent{
		RunID:      run.ID,
		Trigger:    string(run.Trigger),
		Succeeded:  ok,
		ObjectName: info.Name,
		Size:       info.Size,
		Counts:     counts,
		Error:      errMsg,
		FinishedAt: at,
	}
	if err := events.BackupCompletedV1.Publish(s.eventBus, evt, nil); err != nil {
		s.logger.Warn("Failed to publish BackupCompleted event", "runId", run.ID, "error", err)
	}
}
