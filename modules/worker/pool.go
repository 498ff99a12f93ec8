// Package worker provides a worker pool for background tasks such as payment
// reconciliation and backups.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

var (
	// ErrNotRunning is returned when submitting to a stopped pool.
	ErrNotRunning = errors.New("worker pool is not running")

	// ErrQueueFull is returned when the task queue is at capacity.
	ErrQueueFull = errors.New("worker queue is full")
)

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	NumWorkers     int
	QueueSize      int
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	ProcessTimeout time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:     3,
		QueueSize:      100,
		MaxRetries:     5,
		BaseRetryDelay: time.Second,
		MaxRetryDelay:  time.Minute,
		ProcessTimeout: 5 * time.Minute,
	}
}

// Task is a unit of background work. Run is retried with exponential backoff
// until it succeeds or MaxRetries attempts have failed.
type Task struct {
	Name string
	Run  func(ctx context.Context) error

	attempt int
}

// Stats counts task outcomes since the pool started.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Succeeded int64 `json:"succeeded"`
	Retried   int64 `json:"retried"`
	Dead      int64 `json:"dead"`
	Queued    int   `json:"queued"`
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	config  PoolConfig
	logger  types.Logger
	queue   chan *Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool

	submitted atomic.Int64
	succeeded atomic.Int64
	retried   atomic.Int64
	dead      atomic.Int64
}

// NewPool creates a new worker pool.
func NewPool(cfg PoolConfig, logger types.Logger) *Pool {
	def := DefaultPoolConfig()
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = def.NumWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = def.BaseRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.BaseRetryDelay {
		cfg.MaxRetryDelay = cfg.BaseRetryDelay
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = def.ProcessTimeout
	}
	return &Pool{
		config: cfg,
		logger: logger,
		queue:  make(chan *Task, cfg.QueueSize),
	}
}

// Start starts the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pool is already running")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for i := 0; i < p.config.NumWorkers; i++ {
		id := fmt.Sprintf("worker-%d", i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(id)
		}()
	}
	p.logger.Info("Worker pool started", "workers", p.config.NumWorkers)
	return nil
}

// Stop cancels in-flight tasks and waits for the workers to exit.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("All workers stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("Timeout waiting for workers to stop")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Submit queues a task without blocking.
func (p *Pool) Submit(name string, run func(ctx context.Context) error) error {
	if err := p.enqueue(&Task{Name: name, Run: run}); err != nil {
		return err
	}
	p.submitted.Add(1)
	return nil
}

func (p *Pool) enqueue(t *Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return ErrNotRunning
	}
	select {
	case p.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Succeeded: p.succeeded.Load(),
		Retried:   p.retried.Load(),
		Dead:      p.dead.Load(),
		Queued:    len(p.queue),
	}
}

func (p *Pool) run(id string) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-p.queue:
			p.process(id, t)
		}
	}
}

func (p *Pool) process(id string, t *Task) {
	t.attempt++
	ctx, cancel := context.WithTimeout(p.ctx, p.config.ProcessTimeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, t)
	if err == nil {
		p.succeeded.Add(1)
		p.logger.Debug("Task completed", "worker", id, "task", t.Name, "duration", time.Since(start))
		return
	}
	if p.ctx.Err() != nil {
		p.logger.Warn("Task interrupted by shutdown", "task", t.Name, "error", err)
		return
	}

	if t.attempt >= p.config.MaxRetries {
		p.dead.Add(1)
		p.logger.Error("Task failed permanently",
			"task", t.Name,
			"attempts", t.attempt,
			"error", err)
		return
	}

	delay := p.retryDelay(t.attempt)
	p.retried.Add(1)
	p.logger.Warn("Task failed, will retry",
		"task", t.Name,
		"attempt", t.attempt,
		"maxRetries", p.config.MaxRetries,
		"delay", delay,
		"error", err)

	time.AfterFunc(delay, func() {
		if err := p.enqueue(t); err != nil {
			p.dead.Add(1)
			p.logger.Error("Dropping retry", "task", t.Name, "error", err)
		}
	})
}

// safeRun converts a panicking task into an error.
func safeRun(ctx context.Context, t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.Run(ctx)
}

// retryDelay is BaseRetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func (p *Pool) retryDelay(attempt int) time.Duration {
	delay := float64(p.config.BaseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.config.MaxRetryDelay) {
		return p.config.MaxRetryDelay
	}
	return time.Duration(delay)
}
