package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"OpportunityScanner/internal/metrics"
	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/recorder"
)

func newServer(t *testing.T, latest LatestFunc) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordScan("ok", 0)
	srv := httptest.NewServer(NewRouter(NewHandler(latest, nil), reg))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, func() (*recorder.ScanRun, error) { return nil, nil })
	code, body := get(t, srv.URL+"/healthz")
	if code != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("healthz = %d %s", code, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, func() (*recorder.ScanRun, error) { return nil, nil })
	code, body := get(t, srv.URL+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, "opportunity_scanner_scan_runs_total") {
		t.Errorf("metrics = %d\n%s", code, body)
	}
}

func TestLatestOpportunities(t *testing.T) {
	run := &recorder.ScanRun{
		ID:   "run-1",
		Mode: "both",
		Opportunities: []model.OpportunityRecord{
			{Ticker: "AAPL", Status: model.StatusOverbought},
			{Ticker: "XOM", Status: model.StatusOversold},
		},
	}
	srv := newServer(t, func() (*recorder.ScanRun, error) { return run, nil })

	code, body := get(t, srv.URL+"/opportunities/latest")
	if code != http.StatusOK {
		t.Fatalf("status = %d %s", code, body)
	}
	var resp opportunitiesResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != "run-1" || len(resp.Opportunities) != 2 {
		t.Errorf("response = %+v", resp)
	}

	_, body = get(t, srv.URL+"/opportunities/latest?mode=oversold")
	if strings.Contains(body, "AAPL") || !strings.Contains(body, "XOM") {
		t.Errorf("mode filter not applied: %s", body)
	}

	code, _ = get(t, srv.URL+"/opportunities/latest?mode=sideways")
	if code != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d", code)
	}
}

func TestLatestOpportunities_NoRunsAndErrors(t *testing.T) {
	srv := newServer(t, func() (*recorder.ScanRun, error) { return nil, nil })
	if code, _ := get(t, srv.URL+"/opportunities/latest"); code != http.StatusNotFound {
		t.Errorf("no runs status = %d, want 404", code)
	}

	broken := newServer(t, func() (*recorder.ScanRun, error) { return nil, errors.New("disk") })
	if code, _ := get(t, broken.URL+"/runs/latest"); code != http.StatusInternalServerError {
		t.Errorf("error status = %d, want 500", code)
	}
}
