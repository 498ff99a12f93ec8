package order

import (
	"context"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// TaskSubmitter runs background work with retries.
type TaskSubmitter interface {
	Submit(name string, run func(ctx context.Context) error) error
}

// Reconciler periodically hands a reconciliation pass to the worker pool.
type Reconciler struct {
	service  *Service
	tasks    TaskSubmitter
	interval time.Duration
	logger   types.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReconciler creates a reconciler that runs every interval.
func NewReconciler(service *Service, tasks TaskSubmitter, interval time.Duration, logger types.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultConfig().ReconcileInterval
	}
	return &Reconciler{service: service, tasks: tasks, interval: interval, logger: logger}
}

// Start launches the ticker loop.
func (r *Reconciler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.trigger(ctx)
			}
		}
	}()
	r.logger.Info("Payment reconciler started", "interval", r.interval)
}

// Stop ends the ticker loop. Passes already queued finish on the pool.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) trigger(ctx context.Context) {
	run := func(ctx context.Context) error {
		_, err := r.service.Reconcile(ctx)
		return err
	}
	if r.tasks == nil {
		if err := run(ctx); err != nil {
			r.logger.Warn("Payment reconciliation failed", "error", err)
		}
		return
	}
	if err := r.tasks.Submit("reconcile-payments", run); err != nil {
		r.logger.Warn("Failed to queue payment reconciliation", "error", err)
	}
}
