package recorder

import (
	"time"

	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/scanner"
)

// ScanRun is the persisted summary of one scan.
type ScanRun struct {
	ID            string                    `json:"id"`
	StartedAt     time.Time                 `json:"started_at"`
	Duration      time.Duration             `json:"duration"`
	Mode          string                    `json:"mode"`
	Trigger       string                    `json:"trigger"` // cli, cron, telegram
	Candidates    int                       `json:"candidates"`
	Processed     int                       `json:"processed"`
	Skipped       int                       `json:"skipped"`
	Failures      int                       `json:"failures"`
	Opportunities []model.OpportunityRecord `json:"opportunities"`
}

// Recorder persists scan history for later review.
type Recorder interface {
	// RecordRun stores the run and its opportunities, assigning run.ID when empty.
	RecordRun(run *ScanRun) error
	// LatestRun returns the most recent run, or nil when none is stored.
	LatestRun() (*ScanRun, error)
	Close() error
}

// FromResult converts a finished scan into the record that gets persisted.
func FromResult(res *scanner.Result, trigger string) *ScanRun {
	return &ScanRun{
		StartedAt:     res.StartedAt,
		Duration:      res.Duration,
		Mode:          string(res.Mode),
		Trigger:       trigger,
		Candidates:    res.Candidates,
		Processed:     res.Processed,
		Skipped:       len(res.Skipped),
		Failures:      len(res.Failures),
		Opportunities: res.Opportunities,
	}
}
