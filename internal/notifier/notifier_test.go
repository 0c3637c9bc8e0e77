package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/recorder"
)

func sampleRun() *recorder.ScanRun {
	return &recorder.ScanRun{
		StartedAt:  time.Date(2024, 3, 1, 16, 30, 0, 0, time.UTC),
		Mode:       "both",
		Candidates: 3,
		Processed:  3,
		Opportunities: []model.OpportunityRecord{
			{Ticker: "AAPL", Price: 189.5, RSI: 74.2, StochK: 88, StochD: 85, Status: model.StatusOverbought},
		},
	}
}

func TestFormatScanReport(t *testing.T) {
	msg := FormatScanReport(sampleRun())
	for _, want := range []string{"2024-03-01 16:30", "Candidates: 3", "AAPL", "overbought", "<pre>"} {
		if !strings.Contains(msg, want) {
			t.Errorf("report missing %q:\n%s", want, msg)
		}
	}

	empty := sampleRun()
	empty.Opportunities = nil
	if msg := FormatScanReport(empty); !strings.Contains(msg, "No opportunities found.") {
		t.Errorf("empty report = %q", msg)
	}
	if msg := FormatScanReport(nil); msg != "No scan has run yet." {
		t.Errorf("nil report = %q", msg)
	}
}

func TestFormatScanReport_Truncates(t *testing.T) {
	run := sampleRun()
	run.Opportunities = make([]model.OpportunityRecord, maxReportRows+5)
	for i := range run.Opportunities {
		run.Opportunities[i] = model.OpportunityRecord{Ticker: "T", Status: model.StatusOversold}
	}
	if msg := FormatScanReport(run); !strings.Contains(msg, "and 5 more") {
		t.Errorf("expected truncation marker:\n%s", msg)
	}
}

func TestCommandHandler(t *testing.T) {
	var gotMode string
	h := NewCommandHandler(
		func(_ context.Context, mode string) (*recorder.ScanRun, error) {
			gotMode = mode
			return sampleRun(), nil
		},
		func() (*recorder.ScanRun, error) { return nil, errors.New("db closed") },
	)
	ctx := context.Background()

	if reply := h(ctx, "/scan@scanner_bot oversold"); !strings.Contains(reply, "AAPL") || gotMode != "oversold" {
		t.Errorf("/scan reply = %q, mode = %q", reply, gotMode)
	}
	if reply := h(ctx, "/last"); !strings.Contains(reply, "db closed") {
		t.Errorf("/last reply = %q", reply)
	}
	if reply := h(ctx, "/help"); !strings.Contains(reply, "/scan") {
		t.Errorf("/help reply = %q", reply)
	}
	if reply := h(ctx, "hello"); reply != "" {
		t.Errorf("unknown command reply = %q", reply)
	}
}

func TestSend(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", nil)
	n.APIBase = srv.URL
	if err := n.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload["chat_id"] != "42" || payload["parse_mode"] != "HTML" || payload["text"] != "<b>hi</b>" {
		t.Errorf("payload = %v", payload)
	}
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", nil)
	n.APIBase = srv.URL
	if err := n.sendWithRetry(context.Background(), "x", 3, time.Millisecond); err != nil {
		t.Fatalf("sendWithRetry: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}

	calls.Store(-100)
	if err := n.sendWithRetry(context.Background(), "x", 1, time.Millisecond); err == nil {
		t.Error("expected exhausted retries to fail")
	}
}
