package provider

import (
	"context"
	"fmt"
	"time"

	"FundWatch/internal/model"

	"github.com/shopspring/decimal"
)

// QuoteProvider fetches the latest valuation snapshot for one instrument.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, code string) (*model.QuoteSnapshot, error)
	Name() string
}

// SettlementPriceLookup resolves the official NAV that applies to a
// settlement date. ok is false when the price is not yet published.
type SettlementPriceLookup interface {
	ResolvePrice(ctx context.Context, code string, date time.Time) (price decimal.Decimal, ok bool, err error)
}

// ChainLookup tries each lookup in order and returns the first resolved
// price. Lookup errors are non-fatal: the next source is consulted, and
// the last error is returned only when nothing resolved.
type ChainLookup []SettlementPriceLookup

func (c ChainLookup) ResolvePrice(ctx context.Context, code string, date time.Time) (decimal.Decimal, bool, error) {
	var lastErr error
	for _, l := range c {
		price, ok, err := l.ResolvePrice(ctx, code, date)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return price, true, nil
		}
	}
	return decimal.Zero, false, lastErr
}

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	Quotes map[string]*model.QuoteSnapshot
	Errs   map[string]error
	Calls  []string
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchQuote(_ context.Context, code string) (*model.QuoteSnapshot, error) {
	m.Calls = append(m.Calls, code)
	if err, ok := m.Errs[code]; ok {
		return nil, err
	}
	if snap, ok := m.Quotes[code]; ok {
		cp := *snap
		return &cp, nil
	}
	return nil, fmt.Errorf("mock: unknown code %s", code)
}

// MockLookup resolves settlement prices from a fixed table keyed by
// "code|YYYY-MM-DD".
type MockLookup struct {
	Prices map[string]decimal.Decimal
}

func (m *MockLookup) ResolvePrice(_ context.Context, code string, date time.Time) (decimal.Decimal, bool, error) {
	p, ok := m.Prices[code+"|"+date.Format("2006-01-02")]
	return p, ok, nil
}
