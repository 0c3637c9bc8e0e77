package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/recorder"
	"OpportunityScanner/internal/scanner"
	"OpportunityScanner/internal/strategy"
)

type stubRunner struct {
	mu   sync.Mutex
	reqs []scanner.Request
	err  error
}

func (r *stubRunner) Scan(_ context.Context, req scanner.Request) (*scanner.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	mode, _ := strategy.ParseMode(req.Mode)
	return &scanner.Result{
		Mode:          mode,
		StartedAt:     time.Now(),
		Candidates:    1,
		Processed:     1,
		Opportunities: []model.OpportunityRecord{{Ticker: "AAPL", Status: model.StatusOverbought}},
	}, nil
}

type stubSender struct {
	mu   sync.Mutex
	msgs []string
}

func (s *stubSender) SendWithRetry(_ context.Context, text string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, text)
	return nil
}

type memRecorder struct {
	runs []*recorder.ScanRun
}

func (m *memRecorder) RecordRun(run *recorder.ScanRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRecorder) LatestRun() (*recorder.ScanRun, error) {
	if len(m.runs) == 0 {
		return nil, nil
	}
	return m.runs[len(m.runs)-1], nil
}

func (m *memRecorder) Close() error { return nil }

func TestRunNow_RecordsAndKeepsLatest(t *testing.T) {
	runner := &stubRunner{}
	rec := &memRecorder{}
	s := NewScheduler(context.Background(), runner, nil, rec, scanner.Request{Mode: "both", MinVolume: 1000}, nil)

	run, err := s.RunNow(context.Background(), "oversold", "telegram")
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if run.Mode != "oversold" || run.Trigger != "telegram" {
		t.Errorf("run = %+v", run)
	}
	if got := runner.reqs[0]; got.Mode != "oversold" || got.MinVolume != 1000 {
		t.Errorf("request = %+v", got)
	}
	if len(rec.runs) != 1 {
		t.Errorf("recorded %d runs, want 1", len(rec.runs))
	}
	latest, _ := s.Latest()
	if latest != run {
		t.Error("Latest should return the last run")
	}
}

func TestLatest_FallsBackToRecorder(t *testing.T) {
	stored := &recorder.ScanRun{ID: "stored"}
	rec := &memRecorder{runs: []*recorder.ScanRun{stored}}
	s := NewScheduler(context.Background(), &stubRunner{}, nil, rec, scanner.Request{}, nil)

	latest, err := s.Latest()
	if err != nil || latest != stored {
		t.Errorf("Latest() = %+v, %v", latest, err)
	}
}

func TestScheduledScan_SendsReport(t *testing.T) {
	sender := &stubSender{}
	s := NewScheduler(context.Background(), &stubRunner{}, sender, nil, scanner.Request{}, nil)
	s.scheduledScan()

	if len(sender.msgs) != 1 || !strings.Contains(sender.msgs[0], "AAPL") {
		t.Errorf("messages = %v", sender.msgs)
	}

	failing := NewScheduler(context.Background(), &stubRunner{err: errors.New("no candidates")}, sender, nil, scanner.Request{}, nil)
	failing.scheduledScan()
	if len(sender.msgs) != 2 || !strings.Contains(sender.msgs[1], "no candidates") {
		t.Errorf("messages = %v", sender.msgs)
	}
}

func TestHandleCommand(t *testing.T) {
	s := NewScheduler(context.Background(), &stubRunner{}, nil, nil, scanner.Request{}, nil)

	if reply := s.HandleCommand(context.Background(), "/last"); reply != "No scan has run yet." {
		t.Errorf("/last before any scan = %q", reply)
	}
	if reply := s.HandleCommand(context.Background(), "/scan"); !strings.Contains(reply, "AAPL") {
		t.Errorf("/scan = %q", reply)
	}
	if reply := s.HandleCommand(context.Background(), "/last"); !strings.Contains(reply, "AAPL") {
		t.Errorf("/last = %q", reply)
	}
}

func TestRegister_RejectsBadCron(t *testing.T) {
	s := NewScheduler(context.Background(), &stubRunner{}, nil, nil, scanner.Request{}, nil)
	if err := s.Register("every tuesday"); err == nil {
		t.Error("expected invalid cron expression to fail")
	}
	if err := s.Register("0 30 16 * * 1-5"); err != nil {
		t.Errorf("Register: %v", err)
	}
}
