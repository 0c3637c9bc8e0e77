package notifier

import (
	"fmt"
	"html"
	"strings"

	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/recorder"
)

// maxReportRows keeps a report under Telegram's 4096 character message limit.
const maxReportRows = 40

var statusIcon = map[model.Status]string{
	model.StatusOverbought:     "🔴",
	model.StatusOversold:       "🟢",
	model.StatusNearSupport:    "🔵",
	model.StatusNearResistance: "🟠",
}

// FormatScanReport formats a scan run into a Telegram HTML message.
func FormatScanReport(run *recorder.ScanRun) string {
	if run == nil {
		return "No scan has run yet."
	}
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Opportunity scan</b> | %s\n", run.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Mode: %s | Candidates: %d | Processed: %d\n", html.EscapeString(run.Mode), run.Candidates, run.Processed))
	if run.Skipped > 0 || run.Failures > 0 {
		b.WriteString(fmt.Sprintf("Skipped: %d | Failed: %d\n", run.Skipped, run.Failures))
	}
	b.WriteString("\n")

	if len(run.Opportunities) == 0 {
		b.WriteString("No opportunities found.\n")
		return b.String()
	}

	b.WriteString("<pre>")
	for i, o := range run.Opportunities {
		if i == maxReportRows {
			b.WriteString(fmt.Sprintf("… and %d more\n", len(run.Opportunities)-maxReportRows))
			break
		}
		b.WriteString(fmt.Sprintf("%s %-6s %8.2f RSI %5.1f K %5.1f D %5.1f  %s\n",
			statusIcon[o.Status], html.EscapeString(o.Ticker), o.Price, o.RSI, o.StochK, o.StochD, o.Status))
	}
	b.WriteString("</pre>")
	return b.String()
}

// FormatHelp lists the supported bot commands.
func FormatHelp() string {
	var b strings.Builder
	b.WriteString("<b>Commands</b>\n")
	b.WriteString("/scan [mode] - run a scan now (overbought, oversold, both)\n")
	b.WriteString("/last - show the most recent scan\n")
	b.WriteString("/help - this message\n")
	return b.String()
}

// FormatError reports a failed command.
func FormatError(err error) string {
	return "⚠️ " + html.EscapeString(err.Error())
}
