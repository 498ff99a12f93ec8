package backup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	domain "github.com/wighaven/storefront/domain/backup"
)

// Scheduler triggers a backup every interval.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   types.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive interval disables it.
func NewScheduler(service *Service, interval time.Duration, logger types.Logger) *Scheduler {
	return &Scheduler{service: service, interval: interval, logger: logger}
}

// Start launches the ticker loop.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info("Scheduled backups disabled")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.service.Trigger(ctx, domain.TriggerScheduled); err != nil {
					if errors.Is(err, domain.ErrRunning) {
						s.logger.Info("Skipping scheduled backup, one is already running")
						continue
					}
					s.logger.Warn("Scheduled backup not started", "error", err)
				}
			}
		}
	}()
	s.logger.Info("Backup scheduler started", "interval", s.interval)
}

// Stop ends the ticker loop.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}
