package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStoreSaveLoadClear(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	updated := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, Record{SessionID: "s1", Data: []byte(`{"schema":1}`), UpdatedAt: updated}))

	ok, err := store.Exists(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"schema":1}`), rec.Data)
	require.True(t, rec.UpdatedAt.Equal(updated))

	require.NoError(t, store.Clear(ctx, "s1"))

	ok, err = store.Exists(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Load(ctx, "s1")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRedisStoreTTLExpiresSnapshots(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Record{SessionID: "s1", Data: []byte("x"), UpdatedAt: time.Now()}))
	mr.FastForward(2 * time.Hour)

	ok, err := store.Exists(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStoreList(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Record{SessionID: "a", Data: []byte("aaaa"), UpdatedAt: time.Now()}))
	require.NoError(t, store.Save(ctx, Record{SessionID: "b", Data: []byte("bb"), UpdatedAt: time.Now()}))

	metas, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)

	sizes := map[string]int{}
	for _, m := range metas {
		sizes[m.SessionID] = m.Size
	}
	require.Equal(t, 4, sizes["a"])
	require.Equal(t, 2, sizes["b"])
}
