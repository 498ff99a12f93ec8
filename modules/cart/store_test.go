package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-monolith/mono"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "github.com/wighaven/storefront/domain/cart"
)

// createTestStore starts an embedded app with an in-memory carts bucket.
func createTestStore(t *testing.T) *KVStore {
	t.Helper()

	app, err := mono.NewMonoApplication(mono.WithLogLevel(mono.LogLevelError))
	require.NoError(t, err)

	plugin, err := kvjetstream.New(kvjetstream.Config{
		Buckets: []kvjetstream.BucketConfig{{
			Name:        BucketName,
			Description: "Test carts",
			TTL:         time.Hour,
			Storage:     kvjetstream.MemoryStorage,
		}},
	})
	require.NoError(t, err)
	require.NoError(t, app.RegisterPlugin(plugin, "kv"))
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})

	bucket := plugin.Bucket(BucketName)
	require.NotNil(t, bucket)
	return NewKVStore(bucket)
}

func TestKVStore_Lifecycle(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	c := domain.New("abc", time.Now())
	_, err := c.Add(domain.Item{VariantID: "A", SKU: "SKU-A", Quantity: 2}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, c))
	assert.ErrorIs(t, store.Create(ctx, c), ErrConflict)

	loaded, rev, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 2, loaded.Items[0].Quantity)

	loaded.CouponCode = "SAVE10"
	require.NoError(t, store.Save(ctx, loaded, rev))
	assert.ErrorIs(t, store.Save(ctx, loaded, rev), ErrConflict, "stale revision must be rejected")

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, _, err = store.Load(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
