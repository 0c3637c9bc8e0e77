// Package catalog supplies the candidate ticker universe with its static metadata.
package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"OpportunityScanner/internal/model"
)

// Source is anything that can produce the ticker universe.
type Source interface {
	Load(ctx context.Context) ([]model.TickerMeta, error)
}

// Catalog loads tickers from a JSON cache, then a plain-text list, then the builder.
type Catalog struct {
	JSONPath string // cached metadata, written after a build
	TxtPath  string // one symbol per line
	Builder  *Builder
	logger   *zap.Logger
}

func New(jsonPath, txtPath string, builder *Builder, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{JSONPath: jsonPath, TxtPath: txtPath, Builder: builder, logger: logger}
}

// Load returns the universe in file order.
func (c *Catalog) Load(ctx context.Context) ([]model.TickerMeta, error) {
	if c.JSONPath != "" {
		stocks, err := LoadJSON(c.JSONPath)
		switch {
		case err == nil:
			c.logger.Debug("catalog loaded from json", zap.String("path", c.JSONPath), zap.Int("tickers", len(stocks)))
			return stocks, nil
		case !errors.Is(err, os.ErrNotExist):
			c.logger.Warn("ignoring unreadable catalog cache", zap.String("path", c.JSONPath), zap.Error(err))
		}
	}

	if c.TxtPath != "" {
		stocks, err := LoadTxt(c.TxtPath)
		if err == nil {
			c.logger.Debug("catalog loaded from txt", zap.String("path", c.TxtPath), zap.Int("tickers", len(stocks)))
			return stocks, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if c.Builder == nil {
		return nil, errors.New("no ticker list found and no catalog builder configured")
	}
	stocks, err := c.Builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	if c.JSONPath != "" {
		if err := SaveJSON(c.JSONPath, stocks); err != nil {
			c.logger.Warn("failed to persist catalog", zap.String("path", c.JSONPath), zap.Error(err))
		}
	}
	return stocks, nil
}

// LoadTxt reads one ticker per line. Blank lines are ignored; every entry has
// an empty sector and is assumed to have options.
func LoadTxt(path string) ([]model.TickerMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var stocks []model.TickerMeta
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		symbol := strings.TrimSpace(sc.Text())
		if symbol == "" || strings.HasPrefix(symbol, "#") {
			continue
		}
		stocks = append(stocks, model.TickerMeta{Ticker: symbol, HasOptions: true})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return stocks, nil
}

// LoadJSON reads a cached metadata list. Returns an error wrapping os.ErrNotExist if missing.
func LoadJSON(path string) ([]model.TickerMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var stocks []model.TickerMeta
	if err := json.Unmarshal(data, &stocks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return stocks, nil
}

// SaveJSON writes the metadata list to a JSON file.
func SaveJSON(path string, stocks []model.TickerMeta) error {
	data, err := json.MarshalIndent(stocks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// FilterBySector keeps stocks whose sector equals sector exactly.
func FilterBySector(stocks []model.TickerMeta, sector string) []model.TickerMeta {
	var out []model.TickerMeta
	for _, s := range stocks {
		if s.Sector == sector {
			out = append(out, s)
		}
	}
	return out
}

// FilterOptionsOnly keeps stocks with listed options.
func FilterOptionsOnly(stocks []model.TickerMeta) []model.TickerMeta {
	var out []model.TickerMeta
	for _, s := range stocks {
		if s.HasOptions {
			out = append(out, s)
		}
	}
	return out
}

// Sectors returns the sorted unique non-empty sectors.
func Sectors(stocks []model.TickerMeta) []string {
	seen := make(map[string]struct{})
	for _, s := range stocks {
		if s.Sector != "" {
			seen[s.Sector] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for sec := range seen {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Static is a fixed in-memory Source.
type Static []model.TickerMeta

func (s Static) Load(context.Context) ([]model.TickerMeta, error) { return s, nil }
