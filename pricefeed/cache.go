package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cache wraps a Gateway with an in-process cache and, when a redis client is
// given, a shared one. Failures are never cached.
type Cache struct {
	next       Gateway
	local      *ristretto.Cache
	rdb        *redis.Client
	priceTTL   time.Duration
	historyTTL time.Duration
	logger     *zap.Logger
}

// NewCache wraps next. rdb may be nil.
func NewCache(next Gateway, rdb *redis.Client, priceTTL, historyTTL time.Duration, logger *zap.Logger) (*Cache, error) {
	local, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("price cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{next: next, local: local, rdb: rdb, priceTTL: priceTTL, historyTTL: historyTTL, logger: logger}, nil
}

func priceKey(symbol string) string { return fmt.Sprintf("stock:%s:price", symbol) }

func historyKey(symbol string, period Period, interval Interval) string {
	return fmt.Sprintf("stock:%s:history:%s:%s", symbol, period, interval)
}

func (c *Cache) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	key := priceKey(symbol)
	if v, ok := c.local.Get(key); ok {
		return v.(decimal.Decimal), nil
	}
	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			if price, err := decimal.NewFromString(cached); err == nil {
				c.local.SetWithTTL(key, price, 1, c.priceTTL)
				return price, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get", zap.String("key", key), zap.Error(err))
		}
	}

	price, err := c.next.CurrentPrice(ctx, symbol)
	if err != nil {
		return price, err
	}
	c.local.SetWithTTL(key, price, 1, c.priceTTL)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, price.String(), c.priceTTL).Err(); err != nil {
			c.logger.Warn("redis set", zap.String("key", key), zap.Error(err))
		}
	}
	return price, nil
}

func (c *Cache) History(ctx context.Context, symbol string, period Period, interval Interval) ([]Bar, error) {
	key := historyKey(symbol, period, interval)
	if v, ok := c.local.Get(key); ok {
		return v.([]Bar), nil
	}
	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var bars []Bar
			if err := json.Unmarshal(cached, &bars); err == nil {
				c.local.SetWithTTL(key, bars, int64(len(bars)), c.historyTTL)
				return bars, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get", zap.String("key", key), zap.Error(err))
		}
	}

	bars, err := c.next.History(ctx, symbol, period, interval)
	if err != nil || len(bars) == 0 {
		return bars, err
	}
	c.local.SetWithTTL(key, bars, int64(len(bars)), c.historyTTL)
	if c.rdb != nil {
		data, _ := json.Marshal(bars)
		if err := c.rdb.Set(ctx, key, data, c.historyTTL).Err(); err != nil {
			c.logger.Warn("redis set", zap.String("key", key), zap.Error(err))
		}
	}
	return bars, nil
}

// Wait blocks until pending local writes are visible.
func (c *Cache) Wait() { c.local.Wait() }

var _ Gateway = (*Cache)(nil)
