package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// countingLimiter admits limit requests per key.
type countingLimiter struct {
	mu    sync.Mutex
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (*Result, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key]++
	n := l.seen[key]
	res := &Result{Limit: l.limit, ResetAt: time.Now().Add(time.Minute)}
	if n <= l.limit {
		res.Allowed = true
		res.Remaining = l.limit - n
		return res, nil
	}
	res.RetryAfter = 1500 * time.Millisecond
	return res, nil
}

func newApp(limiter Limiter) *fiber.App {
	app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
	app.Post("/checkout", Handler(limiter, "checkout", &mockLogger{}), func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func post(t *testing.T, app *fiber.App, ip string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/checkout", nil)
	req.Header.Set("X-Forwarded-For", ip)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	headers := map[string]string{}
	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"} {
		headers[h] = resp.Header.Get(h)
	}
	return resp.StatusCode, headers
}

func TestHandler_LimitsPerIP(t *testing.T) {
	app := newApp(&countingLimiter{limit: 2, seen: map[string]int{}})

	for i, wantRemaining := range []string{"1", "0"} {
		status, headers := post(t, app, "10.0.0.1")
		if status != fiber.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, status)
		}
		if headers["X-RateLimit-Limit"] != "2" || headers["X-RateLimit-Remaining"] != wantRemaining {
			t.Errorf("request %d: headers = %v", i+1, headers)
		}
	}

	status, headers := post(t, app, "10.0.0.1")
	if status != fiber.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", status)
	}
	if headers["Retry-After"] != "1" {
		t.Errorf("Retry-After = %q, want 1", headers["Retry-After"])
	}

	if status, _ := post(t, app, "10.0.0.2"); status != fiber.StatusOK {
		t.Errorf("another client should not be limited, got %d", status)
	}
}

func TestHandler_FailsOpen(t *testing.T) {
	app := newApp(&countingLimiter{err: errors.New("connection refused")})
	for i := 0; i < 3; i++ {
		if status, _ := post(t, app, "10.0.0.1"); status != fiber.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, status)
		}
	}
}

func TestModule_DisabledWithoutRedis(t *testing.T) {
	m := NewModule("", Config{}, &mockLogger{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.Enabled() {
		t.Error("module should be disabled without an address")
	}
	if m.config != DefaultConfig() {
		t.Errorf("config = %+v, want defaults", m.config)
	}

	app := fiber.New()
	app.Get("/", m.Handler("auth"), func(c *fiber.Ctx) error { return c.SendString("OK") })
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK || resp.Header.Get("X-RateLimit-Limit") != "" {
		t.Errorf("disabled handler should pass through, got %d", resp.StatusCode)
	}
}

const testRedisAddr = "localhost:6379"

func checkRedisAvailable(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testRedisAddr, 2*time.Second)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	conn.Close()
}

func TestSlidingWindowLimiter_Redis(t *testing.T) {
	checkRedisAvailable(t)
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	prefix := "wighaven:test:ratelimit:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	})

	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerWindow: 3, Window: time.Minute}, prefix)
	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "ip")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !res.Allowed || res.Remaining != 3-i-1 {
			t.Errorf("request %d: %+v", i+1, res)
		}
	}

	res, err := limiter.Allow(ctx, "ip")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if res.Allowed || res.RetryAfter <= 0 {
		t.Errorf("fourth request should be denied with a retry delay, got %+v", res)
	}

	n, err := limiter.Count(ctx, "ip")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}

	other, err := limiter.Allow(ctx, "other")
	if err != nil || !other.Allowed {
		t.Errorf("independent key should be allowed: %+v, %v", other, err)
	}
}
