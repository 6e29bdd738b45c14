package availability

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr, func() {
		client.Close()
		mr.Close()
	}
}

func TestCachedResourceStore_ReadThrough(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	res := testResource("res-1", "owner-1", "Dr. Silva", weekdayHours(TimeWindow{Start: "09:00", End: "12:00"}))
	res.Schedule.Overrides = []DateOverride{{Date: "2025-12-25", Kind: OverrideUnavailable}}
	backing := newFakeResources(res)
	cache := NewCachedResourceStore(backing, client, time.Minute, nil)
	ctx := context.Background()

	first, err := cache.GetResource(ctx, "res-1")
	require.NoError(t, err)
	second, err := cache.GetResource(ctx, "res-1")
	require.NoError(t, err)

	assert.Equal(t, 1, backing.gets)
	assert.True(t, mr.Exists(resourceCachePrefix+"res-1"))
	assert.Equal(t, first.Schedule.SlotDuration, second.Schedule.SlotDuration)
	assert.Equal(t, first.Schedule.WorkingHours, second.Schedule.WorkingHours)
	assert.Equal(t, first.Schedule.Overrides, second.Schedule.Overrides)

	mr.FastForward(2 * time.Minute)
	_, err = cache.GetResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.gets)
}

func TestCachedResourceStore_FallsBackWhenRedisDown(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.Close()

	backing := newFakeResources(testResource("res-1", "owner-1", "Dr. Silva", WorkingHours{}))
	cache := NewCachedResourceStore(backing, client, time.Minute, nil)

	res, err := cache.GetResource(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, "res-1", res.ID)
}

func TestCachedResourceStore_NotFoundIsNotCached(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewCachedResourceStore(newFakeResources(), client, time.Minute, nil)
	_, err := cache.GetResource(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrResourceNotFound)
	assert.False(t, mr.Exists(resourceCachePrefix+"missing"))
}
