package ratelimit

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces the limiter's Redis keys.
const KeyPrefix = "wighaven:ratelimit:"

// Module owns the Redis client backing the limiter.
type Module struct {
	redisAddr string
	config    Config
	client    *redis.Client
	limiter   *SlidingWindowLimiter
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the module. An empty redisAddr disables limiting.
func NewModule(redisAddr string, cfg Config, logger types.Logger) *Module {
	defaults := DefaultConfig()
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = defaults.RequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	return &Module{redisAddr: redisAddr, config: cfg, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start connects to Redis. An unreachable Redis is logged, and requests
// pass until it recovers.
func (m *Module) Start(ctx context.Context) error {
	if m.redisAddr == "" {
		m.logger.Info("Rate limiting disabled, REDIS_ADDR not set")
		return nil
	}
	m.client = redis.NewClient(&redis.Options{Addr: m.redisAddr})
	if err := m.client.Ping(ctx).Err(); err != nil {
		m.logger.Warn("Redis unreachable, rate limiting fails open", "addr", m.redisAddr, "error", err)
	}
	m.limiter = NewSlidingWindowLimiter(m.client, m.config, KeyPrefix)
	m.logger.Info("Rate limiting enabled",
		"addr", m.redisAddr,
		"requests", m.config.RequestsPerWindow,
		"window", m.config.Window)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			m.logger.Warn("Error closing Redis connection", "error", err)
		}
	}
	m.logger.Info("Rate limit module stopped")
	return nil
}

// Enabled reports whether requests are being limited.
func (m *Module) Enabled() bool {
	return m.limiter != nil
}

// Handler returns middleware for scope, or a pass-through when disabled.
func (m *Module) Handler(scope string) fiber.Handler {
	if m.limiter == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return Handler(m.limiter, scope, m.logger)
}

// Health reports the Redis connection state.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"requests_per_window": m.config.RequestsPerWindow,
			"window":              m.config.Window.String(),
		},
	}
}
