package cache

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/storage"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/storage/redis/v3"
)

// PluginModule is the "cache" plugin that backs catalog reads. Catalog
// entries live under one key prefix in Redis and expire after ttl. Without
// REDIS_ADDR every lookup misses and the catalog reads straight from the
// database.
type PluginModule struct {
	container types.ServiceContainer
	backend   storage.Storage
	service   CacheService
	redisAddr string
	prefix    string
	ttl       time.Duration
}

var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule returns a catalog cache plugin. It serves the no-op cache
// until Start connects to redisAddr.
func NewPluginModule(redisAddr, prefix string, ttl time.Duration) *PluginModule {
	return &PluginModule{
		redisAddr: redisAddr,
		prefix:    prefix,
		ttl:       ttl,
		service:   NewNoopService(),
	}
}

func (m *PluginModule) Name() string {
	return "cache"
}

func (m *PluginModule) Start(_ context.Context) error {
	if m.redisAddr == "" {
		log.Println("[cache] REDIS_ADDR not set, catalog reads go to the database")
		return nil
	}
	host, port := parseRedisAddr(m.redisAddr)
	m.backend = redis.New(redis.Config{
		Host:     host,
		Port:     port,
		PoolSize: 50,
	})
	m.service = NewCacheService(m.backend, m.prefix, m.ttl)
	log.Printf("[cache] Catalog cache on %s:%d (prefix %q, ttl %s)", host, port, m.prefix, m.ttl)
	return nil
}

func (m *PluginModule) Stop(_ context.Context) error {
	if err := m.service.Close(); err != nil {
		return fmt.Errorf("failed to close catalog cache: %w", err)
	}
	log.Println("[cache] Catalog cache closed")
	return nil
}

func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// Port returns the cache the catalog module reads through.
func (m *PluginModule) Port() CacheService {
	return m.service
}

// Enabled reports whether catalog entries are cached in Redis.
func (m *PluginModule) Enabled() bool {
	return m.backend != nil
}

// Health reports "disabled" without Redis. With Redis it probes the catalog
// prefix and includes the hit and miss counters.
func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	if !m.Enabled() {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	if _, err := m.backend.GetWithContext(ctx, m.prefix+"health"); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis unreachable: %v", err)}
	}

	stats := m.service.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"redis_addr": m.redisAddr,
			"prefix":     m.prefix,
			"ttl":        m.ttl.String(),
			"hits":       stats.Hits,
			"misses":     stats.Misses,
		},
	}
}

// parseRedisAddr splits REDIS_ADDR, falling back to 127.0.0.1:6379 for any
// part that is missing or malformed.
func parseRedisAddr(addr string) (host string, port int) {
	host, port = "127.0.0.1", 6379
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return host, port
	}
	if h != "" {
		host = h
	}
	if n, err := strconv.Atoi(p); err == nil {
		port = n
	}
	return host, port
}
