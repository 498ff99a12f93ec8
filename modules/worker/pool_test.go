package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

func testConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:     2,
		QueueSize:      4,
		MaxRetries:     3,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
		ProcessTimeout: time.Second,
	}
}

func startPool(t *testing.T, cfg PoolConfig) *Pool {
	t.Helper()
	p := NewPool(cfg, &mockLogger{})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
	return p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPool_RetriesUntilSuccess(t *testing.T) {
	p := startPool(t, testConfig())

	var calls atomic.Int32
	err := p.Submit("flaky", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	waitFor(t, func() bool { return p.Stats().Succeeded == 1 })
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	if s := p.Stats(); s.Retried != 2 || s.Dead != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPool_GivesUpAfterMaxRetries(t *testing.T) {
	p := startPool(t, testConfig())

	var calls atomic.Int32
	_ = p.Submit("broken", func(ctx context.Context) error {
		calls.Add(1)
		panic("boom")
	})

	waitFor(t, func() bool { return p.Stats().Dead == 1 })
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestPool_SubmitWhenStopped(t *testing.T) {
	p := NewPool(testConfig(), &mockLogger{})
	if err := p.Submit("x", func(context.Context) error { return nil }); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestPool_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.NumWorkers = 1
	cfg.QueueSize = 1
	p := startPool(t, cfg)

	release := make(chan struct{})
	defer close(release)
	block := func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	if err := p.Submit("busy", block); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	waitFor(t, func() bool { return p.Stats().Queued == 0 })
	if err := p.Submit("queued", block); err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}
	if err := p.Submit("overflow", block); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	p := NewPool(PoolConfig{BaseRetryDelay: time.Second, MaxRetryDelay: 5 * time.Second, MaxRetries: 5}, &mockLogger{})
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
