package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"OpportunityScanner/internal/breaker"
	"OpportunityScanner/internal/metrics"
	"OpportunityScanner/internal/model"
)

// Verdict is the structured per-ticker answer requested by Verdicts.
type Verdict struct {
	Ticker     string  `json:"ticker"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Advisor renders prompts and relays them through a Completer.
type Advisor struct {
	completer Completer
	breakers  *breaker.Registry
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewAdvisor wraps c. breakers may be nil.
func NewAdvisor(c Completer, breakers *breaker.Registry, m *metrics.Metrics, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{completer: c, breakers: breakers, metrics: m, logger: logger}
}

func (a *Advisor) complete(ctx context.Context, prompt string) (string, error) {
	name := a.completer.Name()
	text, err := breaker.Call(ctx, a.breakers, "advisory:"+name, func() (string, error) {
		return a.completer.Complete(ctx, SystemPrompt, prompt)
	})
	if err != nil {
		a.metrics.RecordCompletion(name, "error")
		return "", err
	}
	a.metrics.RecordCompletion(name, "ok")
	return strings.TrimSpace(text), nil
}

// Opinion asks for a short opinion on a single record.
func (a *Advisor) Opinion(ctx context.Context, rec model.OpportunityRecord) (string, error) {
	text, err := a.complete(ctx, RenderOpportunity(rec))
	if err != nil {
		return "", fmt.Errorf("opinion for %s: %w", rec.Ticker, err)
	}
	return text, nil
}

// Summarize asks for one answer covering all records.
func (a *Advisor) Summarize(ctx context.Context, recs []model.OpportunityRecord) (string, error) {
	if len(recs) == 0 {
		return "", errors.New("nothing to summarize")
	}
	return a.complete(ctx, RenderBatch(recs))
}

// Verdicts asks for a JSON verdict per ticker. Slightly malformed JSON
// (trailing commas, code fences, single quotes) is repaired before decoding.
// Verdicts for tickers not in recs are dropped.
func (a *Advisor) Verdicts(ctx context.Context, recs []model.OpportunityRecord) ([]Verdict, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	text, err := a.complete(ctx, RenderVerdictRequest(recs))
	if err != nil {
		return nil, err
	}
	verdicts, err := ParseVerdicts(text)
	if err != nil {
		a.logger.Warn("unparseable verdict response", zap.String("response", text), zap.Error(err))
		return nil, err
	}

	known := make(map[string]bool, len(recs))
	for _, r := range recs {
		known[r.Ticker] = true
	}
	out := verdicts[:0]
	for _, v := range verdicts {
		v.Ticker = strings.ToUpper(strings.TrimSpace(v.Ticker))
		if known[v.Ticker] {
			out = append(out, v)
		}
	}
	return out, nil
}

// ParseVerdicts decodes a verdict array from a model response.
func ParseVerdicts(text string) ([]Verdict, error) {
	text = stripFences(text)
	if start := strings.Index(text, "["); start >= 0 {
		text = text[start:]
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, fmt.Errorf("repair verdict json: %w", err)
	}
	var verdicts []Verdict
	if err := json.Unmarshal([]byte(repaired), &verdicts); err != nil {
		return nil, fmt.Errorf("decode verdicts: %w", err)
	}
	return verdicts, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
