// Package advisory turns opportunity records into prompts and relays them to
// a text-completion service.
package advisory

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"OpportunityScanner/internal/model"
)

// SystemPrompt frames every request.
const SystemPrompt = "You are a concise technical-analysis assistant. " +
	"You comment on indicator readings only and never give personalised financial advice."

// BatchHeaders are the fixed prompt table columns.
var BatchHeaders = []string{"Ticker", "RSI", "Stoch %K", "Stoch %D", "Price", "Support", "Resistance"}

func fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// RenderOpportunity builds the single-ticker prompt.
func RenderOpportunity(rec model.OpportunityRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", rec.Ticker)
	fmt.Fprintf(&b, "Price: %s\n", fixed2(rec.Price))
	fmt.Fprintf(&b, "RSI: %s\n", fixed2(rec.RSI))
	fmt.Fprintf(&b, "Stoch %%K: %s\n", fixed2(rec.StochK))
	fmt.Fprintf(&b, "Stoch %%D: %s\n", fixed2(rec.StochD))
	fmt.Fprintf(&b, "Support: %s\n", fixed2(rec.Support))
	fmt.Fprintf(&b, "Resistance: %s\n", fixed2(rec.Resistance))
	fmt.Fprintf(&b, "Signal: %s\n\n", rec.Status)
	b.WriteString("Based on these indicators, is this a good trade setup? Please answer in a single short paragraph.")
	return b.String()
}

// BatchTable renders records as a markdown table with BatchHeaders.
func BatchTable(recs []model.OpportunityRecord) string {
	t := table.New().
		Border(lipgloss.MarkdownBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers(BatchHeaders...)
	for _, r := range recs {
		price := ""
		if r.Price > 0 {
			price = fixed2(r.Price)
		}
		t.Row(r.Ticker, fixed2(r.RSI), fixed2(r.StochK), fixed2(r.StochD), price, fixed2(r.Support), fixed2(r.Resistance))
	}
	return t.String()
}

// RenderBatch builds the multi-ticker prompt.
func RenderBatch(recs []model.OpportunityRecord) string {
	return "Given the following technical indicators, which stocks would you recommend trading today? " +
		"Please explain why.\n\n" + BatchTable(recs)
}

// RenderVerdictRequest asks for one JSON verdict per ticker.
func RenderVerdictRequest(recs []model.OpportunityRecord) string {
	return "For each ticker in the table below, reply with a JSON array only, one object per ticker, " +
		`shaped as {"ticker": string, "action": "buy"|"sell"|"hold"|"avoid", "confidence": 0-100, "reason": string}.` +
		"\n\n" + BatchTable(recs)
}
