package pricecache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"OpportunityScanner/internal/model"
)

// SQLiteCache persists bars in a single prices table keyed by (ticker, ts).
type SQLiteCache struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteCache opens (or creates) the SQLite database and runs migrations.
func NewSQLiteCache(dbPath string, logger *zap.Logger) (*SQLiteCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dbPath == "" {
		dbPath = "data/prices.db"
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db, logger: logger}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite price cache opened", zap.String("path", dbPath))
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prices (
			ticker TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL,
			high   REAL,
			low    REAL,
			close  REAL,
			volume REAL,
			PRIMARY KEY (ticker, ts)
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:30], err)
		}
	}
	return nil
}

func (c *SQLiteCache) Insert(ctx context.Context, ticker string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO prices (ticker, ts, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (ticker, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, ticker, b.Time.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("insert %s@%d: %w", ticker, b.Time.Unix(), err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteCache) FetchSeries(ctx context.Context, ticker string) (model.Series, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM prices WHERE ticker = ? ORDER BY ts ASC`, ticker)
	if err != nil {
		return model.Series{}, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var (
			ts               int64
			o, h, l, cl, vol sql.NullFloat64
		)
		if err := rows.Scan(&ts, &o, &h, &l, &cl, &vol); err != nil {
			return model.Series{}, fmt.Errorf("scan prices: %w", err)
		}
		bars = append(bars, model.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o.Float64,
			High:   h.Float64,
			Low:    l.Float64,
			Close:  cl.Float64,
			Volume: vol.Float64,
		})
	}
	if err := rows.Err(); err != nil {
		return model.Series{}, err
	}
	return model.Series{Ticker: ticker, Bars: bars}, nil
}

func (c *SQLiteCache) Close() error {
	c.logger.Info("closing sqlite price cache")
	return c.db.Close()
}
