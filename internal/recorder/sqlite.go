package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"OpportunityScanner/internal/model"
)

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets dashboards read while scans write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id          TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			duration_ms INTEGER,
			mode        TEXT,
			trigger     TEXT,
			candidates  INTEGER,
			processed   INTEGER,
			skipped     INTEGER,
			failures    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON scan_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS opportunities (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL REFERENCES scan_runs(id),
			position   INTEGER NOT NULL,
			ticker     TEXT NOT NULL,
			status     TEXT NOT NULL,
			price      REAL,
			rsi        REAL,
			stoch_k    REAL,
			stoch_d    REAL,
			support    REAL,
			resistance REAL,
			volume     REAL,
			sector     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_opps_run ON opportunities(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_opps_ticker ON opportunities(ticker)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *ScanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO scan_runs
		(id, started_at, duration_ms, mode, trigger, candidates, processed, skipped, failures)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.Unix(), run.Duration.Milliseconds(), run.Mode, run.Trigger,
		run.Candidates, run.Processed, run.Skipped, run.Failures,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, o := range run.Opportunities {
		_, err := tx.Exec(`INSERT INTO opportunities
			(run_id, position, ticker, status, price, rsi, stoch_k, stoch_d, support, resistance, volume, sector)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			run.ID, i, o.Ticker, string(o.Status), o.Price, o.RSI, o.StochK, o.StochD,
			o.Support, o.Resistance, o.Volume, o.Sector,
		)
		if err != nil {
			return fmt.Errorf("insert opportunity %s: %w", o.Ticker, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) LatestRun() (*ScanRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		run        ScanRun
		startedAt  int64
		durationMs int64
	)
	err := r.db.QueryRow(`SELECT id, started_at, duration_ms, mode, trigger, candidates, processed, skipped, failures
		FROM scan_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).
		Scan(&run.ID, &startedAt, &durationMs, &run.Mode, &run.Trigger,
			&run.Candidates, &run.Processed, &run.Skipped, &run.Failures)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	run.StartedAt = time.Unix(startedAt, 0)
	run.Duration = time.Duration(durationMs) * time.Millisecond

	rows, err := r.db.Query(`SELECT ticker, status, price, rsi, stoch_k, stoch_d, support, resistance, volume, sector
		FROM opportunities WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o model.OpportunityRecord
		var status string
		if err := rows.Scan(&o.Ticker, &status, &o.Price, &o.RSI, &o.StochK, &o.StochD,
			&o.Support, &o.Resistance, &o.Volume, &o.Sector); err != nil {
			return nil, err
		}
		o.Status = model.Status(status)
		run.Opportunities = append(run.Opportunities, o)
	}
	return &run, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
