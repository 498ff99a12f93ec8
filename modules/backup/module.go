package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	domain "github.com/wighaven/storefront/domain/backup"
	"github.com/wighaven/storefront/events"
	"github.com/wighaven/storefront/modules/database"
)

// Config holds backup scheduling settings.
type Config struct {
	Interval  time.Duration
	Retention int
}

// Module runs the backup job as a mono module.
type Module struct {
	db        *database.PluginModule
	storage   *fsjetstream.PluginModule
	tasks     TaskSubmitter
	eventBus  mono.EventBus
	config    Config
	service   *Service
	scheduler *Scheduler
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new backup module.
func NewModule(cfg Config, tasks TaskSubmitter, logger types.Logger) *Module {
	return &Module{config: cfg, tasks: tasks, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "backup"
}

// SetPlugin receives the database and file storage plugins.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	switch alias {
	case "db":
		if db, ok := plugin.(*database.PluginModule); ok {
			m.db = db
		}
	case "storage":
		storage, ok := plugin.(*fsjetstream.PluginModule)
		if !ok {
			m.logger.Error("Invalid plugin type for storage",
				"alias", alias,
				"expected", "*fsjetstream.PluginModule")
			return
		}
		m.storage = storage
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{events.BackupCompletedV1.ToBase()}
}

// Start opens the backups bucket and starts the scheduler.
func (m *Module) Start(_ context.Context) error {
	if m.db == nil {
		return fmt.Errorf("required plugin 'db' not registered")
	}
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}
	bucket := m.storage.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
	}
	m.service = NewService(m.db.DB(), NewBucketStore(bucket), m.tasks, m.config.Retention, m.logger)
	m.service.SetEventBus(m.eventBus)
	m.scheduler = NewScheduler(m.service, m.config.Interval, m.logger)
	m.scheduler.Start()
	m.logger.Info("Backup module started", "bucket", BucketName, "retention", m.service.retention)
	return nil
}

// Stop stops the scheduler.
func (m *Module) Stop(_ context.Context) error {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
	m.logger.Info("Backup module stopped")
	return nil
}

// Service returns the backup service.
func (m *Module) Service() *Service {
	return m.service
}

// Health reports the outcome of the last run.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	last, ok := m.service.LastRun()
	if !ok {
		return mono.HealthStatus{Healthy: true, Message: "no backups yet"}
	}
	details := map[string]any{
		"last_run":    last.ID,
		"last_status": last.Status,
		"started_at":  last.StartedAt,
	}
	if last.Status == domain.RunFailed {
		details["error"] = last.Error
		return mono.HealthStatus{Healthy: false, Message: "last backup failed", Details: details}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational", Details: details}
}

// RegisterServices registers services.backup.run and services.backup.list.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "run", json.Unmarshal, json.Marshal, m.run,
	); err != nil {
		return fmt.Errorf("failed to register run service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "list", json.Unmarshal, json.Marshal, m.list,
	); err != nil {
		return fmt.Errorf("failed to register list service: %w", err)
	}
	m.logger.Info("Registered services", "services", []string{"run", "list"})
	return nil
}

func (m *Module) run(ctx context.Context, req RunRequest, _ *mono.Msg) (RunResponse, error) {
	var (
		run *domain.Run
		err error
	)
	if req.Wait {
		run, err = m.service.RunNow(ctx, domain.TriggerManual)
	} else {
		run, err = m.service.Trigger(ctx, domain.TriggerManual)
	}
	if errors.Is(err, domain.ErrRunning) {
		return RunResponse{Error: err.Error()}, nil
	}
	if err != nil {
		return RunResponse{}, err
	}
	return RunResponse{Run: run}, nil
}

func (m *Module) list(_ context.Context, _ ListRequest, _ *mono.Msg) (ListResponse, error) {
	snapshots, err := m.service.Snapshots()
	if err != nil {
		return ListResponse{Runs: m.service.Runs(), Error: err.Error()}, nil
	}
	return ListResponse{Runs: m.service.Runs(), Snapshots: snapshots}, nil
}
