package pricecache

import (
	"context"
	"sync"

	"OpportunityScanner/internal/model"
)

// MemoryCache keeps bars in process memory. Used by tests and throwaway runs.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]map[int64]model.Bar
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]map[int64]model.Bar)}
}

func (c *MemoryCache) Insert(_ context.Context, ticker string, bars []model.Bar) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.data[ticker]
	if !ok {
		rows = make(map[int64]model.Bar, len(bars))
		c.data[ticker] = rows
	}
	for _, b := range bars {
		rows[b.Time.Unix()] = b
	}
	return nil
}

func (c *MemoryCache) FetchSeries(_ context.Context, ticker string) (model.Series, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := c.data[ticker]
	bars := make([]model.Bar, 0, len(rows))
	for _, b := range rows {
		bars = append(bars, b)
	}
	return model.NewSeries(ticker, bars), nil
}

func (c *MemoryCache) Close() error { return nil }
