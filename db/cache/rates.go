// Package cache puts a Redis read-through cache in front of rate lookups.
// Rates are read on every settlement but change once a month.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	dbt "mileage/db/db"
)

const keyPrefix = "mileage:rates:"

type RateCache struct {
	dbt.MileageDBWrapper
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NewRateCache wraps inner. Every other store method passes straight through.
func NewRateCache(inner dbt.MileageDBWrapper, client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *RateCache {
	return &RateCache{MileageDBWrapper: inner, client: client, ttl: ttl, log: log}
}

func rateKey(year, month int) string {
	return fmt.Sprintf("%s%04d-%02d", keyPrefix, year, month)
}

// GetRates serves from Redis when it can. A Redis failure is logged and the
// lookup falls back to the store.
func (c *RateCache) GetRates(ctx context.Context, year, month int) (*dbt.RateEntry, error) {
	key := rateKey(year, month)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry dbt.RateEntry
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			return &entry, nil
		}
		c.log.WithField("key", key).Warn("dropping unreadable cached rates")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("rate cache read failed")
	}

	entry, err := c.MileageDBWrapper.GetRates(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if body, jsonErr := json.Marshal(entry); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, body, c.ttl).Err(); setErr != nil {
			c.log.WithError(setErr).WithField("key", key).Warn("rate cache write failed")
		}
	}
	return entry, nil
}

func (c *RateCache) UpsertRates(ctx context.Context, r *dbt.RateEntry) error {
	if err := c.MileageDBWrapper.UpsertRates(ctx, r); err != nil {
		return err
	}
	if err := c.client.Del(ctx, rateKey(r.Year, r.Month)).Err(); err != nil {
		c.log.WithError(err).Warn("rate cache invalidation failed")
	}
	return nil
}
