package worker

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module provides the worker pool as a mono module.
type Module struct {
	pool   *Pool
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new worker module. The pool exists immediately so
// other modules can hold a reference before startup.
func NewModule(cfg PoolConfig, logger types.Logger) *Module {
	return &Module{pool: NewPool(cfg, logger), logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "worker"
}

// Start starts the worker pool.
func (m *Module) Start(ctx context.Context) error {
	if err := m.pool.Start(ctx); err != nil {
		return err
	}
	m.logger.Info("Worker module started")
	return nil
}

// Stop stops the worker pool gracefully.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.pool.Stop(ctx); err != nil {
		return err
	}
	m.logger.Info("Worker module stopped")
	return nil
}

// Pool returns the worker pool instance.
func (m *Module) Pool() *Pool {
	return m.pool
}

// Health reports pool counters.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	s := m.pool.Stats()
	return mono.HealthStatus{
		Healthy: m.pool.IsRunning(),
		Message: "operational",
		Details: map[string]any{
			"submitted": s.Submitted,
			"succeeded": s.Succeeded,
			"retried":   s.Retried,
			"dead":      s.Dead,
			"queued":    s.Queued,
		},
	}
}
