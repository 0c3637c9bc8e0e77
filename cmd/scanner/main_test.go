package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/recorder"
)

// writeTestConfig points every backend at temp files and the mock provider.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	txt := filepath.Join(dir, "stock_list.txt")
	if err := os.WriteFile(txt, []byte("AAPL\nMSFT\n# comment\nXOM\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := strings.Join([]string{
		"data_source:",
		"  provider: mock",
		"cache:",
		"  backend: memory",
		"catalog:",
		"  json_path: " + filepath.Join(dir, "stocks.json"),
		"  txt_path: " + txt,
		"database:",
		"  sqlite_path: " + filepath.Join(dir, "history.db"),
		"log:",
		"  level: error",
	}, "\n")
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := &App{}
	defer app.Close()
	root := newRootCmd(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScanCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir)

	out, err := execute(t, "scan", "--json", "--config", cfg)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var recs []model.OpportunityRecord
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out)
	}
	for _, r := range recs {
		if r.Status == model.StatusNone || r.Status == "" {
			t.Errorf("unflagged record in output: %+v", r)
		}
	}

	rec, err := recorder.NewSQLiteRecorder(filepath.Join(dir, "history.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()
	run, err := rec.LatestRun()
	if err != nil || run == nil {
		t.Fatalf("LatestRun() = %v, %v", run, err)
	}
	if run.Candidates != 3 || run.Trigger != "cli" {
		t.Errorf("recorded run = %+v", run)
	}
}

func TestScanCommand_ExplicitTickersTable(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir())
	out, err := execute(t, "scan", "nvda", "--quiet", "--config", cfg)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "No opportunities found.") && !strings.Contains(out, "NVDA") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestScanCommand_InvalidMode(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir())
	if _, err := execute(t, "scan", "--mode", "sideways", "--config", cfg); err == nil {
		t.Error("expected invalid mode to fail")
	}
}

func TestScanCommand_FlagConflicts(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir())
	if _, err := execute(t, "scan", "AAPL", "--sector", "Energy", "--config", cfg); err == nil {
		t.Error("expected --sector with explicit tickers to fail")
	}
	if _, err := execute(t, "scan", "--min-price", "-1", "--config", cfg); err == nil {
		t.Error("expected negative price to fail")
	}
}

func TestSectorsCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir)
	catalogJSON := `[{"ticker":"XOM","sector":"Energy","has_options":true},
{"ticker":"CVX","sector":"Energy","options":true},
{"ticker":"NEE","sector":"Utilities","has_options":false}]`
	if err := os.WriteFile(filepath.Join(dir, "stocks.json"), []byte(catalogJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "sectors", "--config", cfg)
	if err != nil {
		t.Fatalf("sectors: %v", err)
	}
	if !strings.Contains(out, "Energy") || !strings.Contains(out, "Utilities") {
		t.Errorf("sectors output:\n%s", out)
	}
}
