package pricecache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"OpportunityScanner/internal/model"
)

const redisKeyPrefix = "prices:"

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// RedisCache stores one hash per ticker: field = unix timestamp, value = JSON bar.
type RedisCache struct {
	client *goredis.Client
	logger *zap.Logger
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("redis price cache connected", zap.String("addr", opts.Addr))
	return &RedisCache{client: client, logger: logger}, nil
}

func (c *RedisCache) Insert(ctx context.Context, ticker string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(bars))
	for _, b := range bars {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode bar: %w", err)
		}
		// later bars in the same batch overwrite earlier ones
		values[strconv.FormatInt(b.Time.Unix(), 10)] = data
	}
	if err := c.client.HSet(ctx, redisKeyPrefix+ticker, values).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", ticker, err)
	}
	return nil
}

func (c *RedisCache) FetchSeries(ctx context.Context, ticker string) (model.Series, error) {
	fields, err := c.client.HGetAll(ctx, redisKeyPrefix+ticker).Result()
	if err != nil {
		return model.Series{}, fmt.Errorf("redis hgetall %s: %w", ticker, err)
	}
	bars := make([]model.Bar, 0, len(fields))
	for field, raw := range fields {
		var b model.Bar
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			c.logger.Warn("skipping corrupt cached bar",
				zap.String("ticker", ticker), zap.String("ts", field), zap.Error(err))
			continue
		}
		bars = append(bars, b)
	}
	return model.NewSeries(ticker, bars), nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
