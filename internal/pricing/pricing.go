// Package pricing holds per-model token prices in USD per million tokens.
package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Price is the cost of one million tokens. CachedInput is nil when the model
// has no discounted rate for cached input.
type Price struct {
	Input       decimal.Decimal
	CachedInput *decimal.Decimal
	Output      decimal.Decimal
}

// Table maps a model name or name prefix to its price.
type Table map[string]Price

// Lookup returns the price for model: an exact entry first, then the longest
// entry that is a prefix of model, so dated snapshots such as
// "gpt-4.1-mini-2025-04-14" match "gpt-4.1-mini".
func (t Table) Lookup(model string) (Price, bool) {
	model = strings.ToLower(model)
	if model == "" {
		return Price{}, false
	}

	if p, ok := t[model]; ok {
		return p, true
	}

	best := ""
	for name := range t {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}

	if best == "" {
		return Price{}, false
	}

	return t[best], true
}

// Models returns the table's entries in sorted order.
func (t Table) Models() []string {
	models := make([]string, 0, len(t))
	for name := range t {
		models = append(models, name)
	}

	sort.Strings(models)
	return models
}

// Merge returns a copy of t with overrides applied.
func (t Table) Merge(overrides Table) Table {
	out := make(Table, len(t)+len(overrides))
	for name, p := range t {
		out[name] = p
	}
	for name, p := range overrides {
		out[strings.ToLower(name)] = p
	}

	return out
}

// Parse builds a Price from decimal strings. cached may be empty.
func Parse(input, cached, output string) (Price, error) {
	in, err := decimal.NewFromString(input)
	if err != nil {
		return Price{}, fmt.Errorf("invalid input price %q: %w", input, err)
	}

	out, err := decimal.NewFromString(output)
	if err != nil {
		return Price{}, fmt.Errorf("invalid output price %q: %w", output, err)
	}

	p := Price{Input: in, Output: out}

	if cached != "" {
		c, err := decimal.NewFromString(cached)
		if err != nil {
			return Price{}, fmt.Errorf("invalid cached input price %q: %w", cached, err)
		}
		p.CachedInput = &c
	}

	return p, nil
}

func mustParse(input, cached, output string) Price {
	p, err := Parse(input, cached, output)
	if err != nil {
		panic(err)
	}
	return p
}

// Default is the built-in price list.
var Default = Table{
	"gpt-5":          mustParse("1.25", "0.125", "10.00"),
	"gpt-5-mini":     mustParse("0.25", "0.025", "2.00"),
	"gpt-5-nano":     mustParse("0.05", "0.005", "0.40"),
	"gpt-4.1":        mustParse("2.00", "0.50", "8.00"),
	"gpt-4.1-mini":   mustParse("0.40", "0.10", "1.60"),
	"gpt-4.1-nano":   mustParse("0.10", "0.025", "0.40"),
	"gpt-4o":         mustParse("2.50", "1.25", "10.00"),
	"gpt-4o-mini":    mustParse("0.15", "0.075", "0.60"),
	"o1":             mustParse("15.00", "7.50", "60.00"),
	"o3":             mustParse("2.00", "0.50", "8.00"),
	"o3-mini":        mustParse("1.10", "0.55", "4.40"),
	"o4-mini":        mustParse("1.10", "0.275", "4.40"),
	"codex-mini":     mustParse("1.50", "0.375", "6.00"),
	"grok-4":         mustParse("3.00", "0.75", "15.00"),
	"grok-3":         mustParse("3.00", "0.75", "15.00"),
	"grok-3-mini":    mustParse("0.30", "0.075", "0.50"),
	"grok-code-fast": mustParse("0.20", "0.02", "1.50"),
}
