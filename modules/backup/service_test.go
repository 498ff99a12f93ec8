package backup

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "github.com/wighaven/storefront/domain/backup"
	"github.com/wighaven/storefront/domain/catalog"
	"github.com/wighaven/storefront/domain/discount"
	"github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/domain/user"
	"github.com/wighaven/storefront/modules/database"
	"gorm.io/gorm"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// heldTasks queues tasks without running them.
type heldTasks struct {
	tasks []func(ctx context.Context) error
}

func (h *heldTasks) Submit(_ string, run func(ctx context.Context) error) error {
	h.tasks = append(h.tasks, run)
	return nil
}

type failingStore struct {
	*MemoryStore
}

func (f failingStore) Put(context.Context, string, []byte, map[string]string) (ObjectInfo, error) {
	return ObjectInfo{}, errors.New("bucket unavailable")
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, catalog.NewRepository(db).Migrate())
	require.NoError(t, discount.NewRepository(db).Migrate())
	require.NoError(t, order.NewRepository(db).Migrate())
	require.NoError(t, user.NewRepository(db).Migrate())

	ctx := context.Background()
	require.NoError(t, catalog.NewRepository(db).CreateProduct(ctx, &catalog.Product{
		ID:        "prod-1",
		Name:      "Kinky Straight Wig",
		Slug:      "kinky-straight-wig",
		BasePrice: decimal.NewFromInt(120),
		IsActive:  true,
		Variants: []catalog.Variant{
			{ID: "var-1", SKU: "KS-16", Price: decimal.NewFromInt(120), Stock: 4, IsActive: true},
			{ID: "var-2", SKU: "KS-20", Price: decimal.NewFromInt(150), Stock: 2, IsActive: true},
		},
	}))
	require.NoError(t, user.NewRepository(db).Create(ctx, &user.User{
		ID:           "user-1",
		Email:        "admin@wighaven.test",
		PasswordHash: "$2a$10$secrethashvalue",
		Role:         user.RoleAdmin,
	}))
	return db
}

func newTestService(t *testing.T, objects ObjectStore, tasks TaskSubmitter, retention int) *Service {
	t.Helper()
	svc := NewService(setupDB(t), objects, tasks, retention, &mockLogger{})
	clock := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

func TestService_RunNowWritesSnapshot(t *testing.T) {
	objects := NewMemoryStore()
	svc := newTestService(t, objects, nil, 7)

	run, err := svc.RunNow(context.Background(), domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, run.Status)
	assert.True(t, strings.HasPrefix(run.ObjectName, domain.SnapshotPrefix))
	assert.NotZero(t, run.Size)
	assert.Equal(t, 1, run.Counts["products"])
	assert.Equal(t, 2, run.Counts["variants"])
	assert.Equal(t, 1, run.Counts["users"])
	assert.Equal(t, 0, run.Counts["orders"])

	snap, err := svc.Load(run.ObjectName)
	require.NoError(t, err)
	assert.Equal(t, domain.SchemaVersion, snap.Manifest.SchemaVersion)
	assert.Equal(t, run.ID, snap.Manifest.RunID)
	assert.Equal(t, run.Counts, snap.Manifest.Counts)

	var variants []catalog.Variant
	require.NoError(t, json.Unmarshal(snap.Tables["variants"], &variants))
	assert.Len(t, variants, 2)

	users := string(snap.Tables["users"])
	assert.Contains(t, users, "admin@wighaven.test")
	assert.NotContains(t, users, "secrethashvalue")
}

func TestService_RetentionPrunesOldest(t *testing.T) {
	objects := NewMemoryStore()
	svc := newTestService(t, objects, nil, 2)
	ctx := context.Background()

	var names []string
	for i := 0; i < 3; i++ {
		run, err := svc.RunNow(ctx, domain.TriggerScheduled)
		require.NoError(t, err)
		names = append(names, run.ObjectName)
	}

	snapshots, err := svc.Snapshots()
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)

	last, ok := svc.LastRun()
	require.True(t, ok)
	assert.Equal(t, []string{names[0]}, last.Pruned)
	_, err = objects.Get(names[0])
	assert.Error(t, err)
	assert.Len(t, svc.Runs(), 3)
}

func TestService_OneRunAtATime(t *testing.T) {
	tasks := &heldTasks{}
	svc := newTestService(t, NewMemoryStore(), tasks, 7)
	ctx := context.Background()

	first, err := svc.Trigger(ctx, domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, first.Status)

	_, err = svc.Trigger(ctx, domain.TriggerScheduled)
	assert.ErrorIs(t, err, domain.ErrRunning)
	_, err = svc.RunNow(ctx, domain.TriggerManual)
	assert.ErrorIs(t, err, domain.ErrRunning)

	require.Len(t, tasks.tasks, 1)
	require.NoError(t, tasks.tasks[0](ctx))

	done, err := svc.Run(first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, done.Status)

	_, err = svc.Trigger(ctx, domain.TriggerScheduled)
	assert.NoError(t, err)
}

func TestService_UploadFailureRecorded(t *testing.T) {
	svc := newTestService(t, failingStore{NewMemoryStore()}, nil, 7)

	run, err := svc.RunNow(context.Background(), domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.Error, "bucket unavailable")
	assert.NotNil(t, run.FinishedAt)

	_, err = svc.Trigger(context.Background(), domain.TriggerManual)
	assert.NoError(t, err, "a failed run must not block the next one")
}
