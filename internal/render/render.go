// Package render writes scan results for the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/tidwall/pretty"

	"OpportunityScanner/internal/advisory"
	"OpportunityScanner/internal/model"
)

// EmptyMessage is printed when a scan flags nothing.
const EmptyMessage = "No opportunities found."

// Headers are the scan table columns, in order.
var Headers = []string{"Ticker", "Price", "RSI", "Stoch %K", "Stoch %D", "Status", "Support", "Resistance"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	statusColor = map[model.Status]lipgloss.Color{
		model.StatusOverbought:     lipgloss.Color("9"),
		model.StatusOversold:       lipgloss.Color("10"),
		model.StatusNearSupport:    lipgloss.Color("12"),
		model.StatusNearResistance: lipgloss.Color("214"),
	}
)

func fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Table renders opportunities as a bordered table.
func Table(recs []model.OpportunityRecord) string {
	if len(recs) == 0 {
		return EmptyMessage
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(Headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 5 && row >= 0 && row < len(recs) {
				return cellStyle.Foreground(statusColor[recs[row].Status])
			}
			return cellStyle
		})
	for _, r := range recs {
		t.Row(r.Ticker, fixed2(r.Price), fixed2(r.RSI), fixed2(r.StochK), fixed2(r.StochD),
			string(r.Status), fixed2(r.Support), fixed2(r.Resistance))
	}
	return t.String()
}

// WriteTable writes Table(recs) followed by a newline.
func WriteTable(w io.Writer, recs []model.OpportunityRecord) error {
	_, err := fmt.Fprintln(w, Table(recs))
	return err
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, err = w.Write(pretty.Pretty(data))
	return err
}

// Sectors renders a sector list with ticker counts.
func Sectors(names []string, counts map[string]int) string {
	if len(names) == 0 {
		return "No sectors in catalog."
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Sector", "Tickers").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, n := range names {
		t.Row(n, fmt.Sprint(counts[n]))
	}
	return t.String()
}

// Verdicts renders structured completion verdicts.
func Verdicts(vs []advisory.Verdict) string {
	if len(vs) == 0 {
		return "No verdicts returned."
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Ticker", "Action", "Confidence", "Reason").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, v := range vs {
		t.Row(v.Ticker, v.Action, fmt.Sprintf("%.0f%%", v.Confidence), v.Reason)
	}
	return t.String()
}

// Advice renders a free-text completion under a heading.
func Advice(title, text string) string {
	heading := lipgloss.NewStyle().Bold(true).Render(title)
	return heading + "\n" + strings.TrimSpace(text) + "\n"
}
