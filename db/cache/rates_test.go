package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "mileage/db/db"
	"mileage/db/mem"
	"mileage/logger"
)

func TestRateKey(t *testing.T) {
	assert.Equal(t, "mileage:rates:2024-05", rateKey(2024, 5))
}

func TestFallsBackWhenRedisIsDown(t *testing.T) {
	inner := mem.NewInMemoryMileageDBWrapper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewRateCache(inner, client, time.Minute, logger.Discard())
	ctx := context.Background()

	require.NoError(t, c.UpsertRates(ctx, &dbt.RateEntry{Year: 2024, Month: 5, GasolinePrice: 1650}))
	got, err := c.GetRates(ctx, 2024, 5)
	require.NoError(t, err)
	assert.Equal(t, 1650.0, got.GasolinePrice)

	_, err = c.GetRates(ctx, 2024, 6)
	assert.True(t, errors.Is(err, dbt.ErrNotFound))
}

func TestReadThroughAndInvalidate(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping test: REDIS_URL not set")
	}
	client, err := NewRedisClient(url)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	client.Del(ctx, rateKey(2031, 3))

	inner := mem.NewInMemoryMileageDBWrapper()
	c := NewRateCache(inner, client, time.Minute, logger.Discard())

	require.NoError(t, inner.UpsertRates(ctx, &dbt.RateEntry{Year: 2031, Month: 3, GasolinePrice: 1500}))
	got, err := c.GetRates(ctx, 2031, 3)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, got.GasolinePrice)

	// cached value is served even though the store changed underneath
	require.NoError(t, inner.UpsertRates(ctx, &dbt.RateEntry{Year: 2031, Month: 3, GasolinePrice: 1800}))
	got, err = c.GetRates(ctx, 2031, 3)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, got.GasolinePrice)

	// writes through the cache invalidate it
	require.NoError(t, c.UpsertRates(ctx, &dbt.RateEntry{Year: 2031, Month: 3, GasolinePrice: 1900}))
	got, err = c.GetRates(ctx, 2031, 3)
	require.NoError(t, err)
	assert.Equal(t, 1900.0, got.GasolinePrice)
}
