package pricecache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"OpportunityScanner/internal/model"
)

// PostgresCache stores bars in a shared price_bars table.
type PostgresCache struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresCache connects, pings and creates the table if missing.
func NewPostgresCache(ctx context.Context, connString string, logger *zap.Logger) (*PostgresCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if connString == "" {
		return nil, fmt.Errorf("postgres cache requires postgres_url")
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS price_bars (
		ticker TEXT             NOT NULL,
		ts     TIMESTAMPTZ      NOT NULL,
		open   DOUBLE PRECISION,
		high   DOUBLE PRECISION,
		low    DOUBLE PRECISION,
		close  DOUBLE PRECISION,
		volume DOUBLE PRECISION,
		PRIMARY KEY (ticker, ts)
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create price_bars: %w", err)
	}

	logger.Info("postgres price cache connected")
	return &PostgresCache{pool: pool, logger: logger}, nil
}

func (c *PostgresCache) Insert(ctx context.Context, ticker string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	bars = model.Dedupe(bars)

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(`
			INSERT INTO price_bars (ticker, ts, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (ticker, ts)
			DO UPDATE SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
				close = EXCLUDED.close, volume = EXCLUDED.volume`,
			ticker, b.Time.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	if err := c.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert bars for %s: %w", ticker, err)
	}
	return nil
}

func (c *PostgresCache) FetchSeries(ctx context.Context, ticker string) (model.Series, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM price_bars WHERE ticker = $1 ORDER BY ts ASC`, ticker)
	if err != nil {
		return model.Series{}, fmt.Errorf("failed to query bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var ts time.Time
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return model.Series{}, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.Time = ts.UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return model.Series{}, err
	}
	return model.Series{Ticker: ticker, Bars: bars}, nil
}

func (c *PostgresCache) Close() error {
	c.pool.Close()
	return nil
}
