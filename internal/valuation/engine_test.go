package valuation

import (
	"testing"
	"time"

	"FundWatch/internal/model"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func position(shares, cost string) *model.Position {
	return &model.Position{Code: "018957", ShareCount: dec(shares), AverageCost: dec(cost)}
}

// snapshot with official NAV dated yesterday and a live estimate.
func snapshot(s *Session, quoteTime time.Time) *model.QuoteSnapshot {
	return &model.QuoteSnapshot{
		Code:                   "018957",
		Name:                   "Test Fund",
		OfficialNav:            dec("9.8"),
		NavDate:                s.DayOf(quoteTime).AddDate(0, 0, -1),
		EstimatedNav:           dec("10"),
		EstimatedChangePercent: dec("5"),
		QuoteTime:              quoteTime,
		EstimateCoverage:       1.0,
	}
}

func TestValuate_NoPosition(t *testing.T) {
	s := testSession(t)
	e := NewEngine(s)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, s.Loc)
	snap := snapshot(s, now)

	if v := e.Valuate(snap, nil, now); v != nil {
		t.Error("expected nil valuation without a position")
	}
	if v := e.Valuate(snap, position("0", "10"), now); v != nil {
		t.Error("expected nil valuation for a zero-share position")
	}
	if v := e.Valuate(nil, position("100", "10"), now); v != nil {
		t.Error("expected nil valuation without a snapshot")
	}
}

func TestValuate_EstimateActive(t *testing.T) {
	s := testSession(t)
	e := NewEngine(s)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, s.Loc) // trading day, in window
	snap := snapshot(s, now)

	v := e.Valuate(snap, position("100", "9"), now)
	if v == nil {
		t.Fatal("expected a valuation")
	}
	if v.Basis != BasisEstimated {
		t.Errorf("expected estimated basis, got %s", v.Basis)
	}
	if !v.MarketValue.Equal(dec("1000")) {
		t.Errorf("expected market value 1000, got %s", v.MarketValue)
	}
	// todayProfit = 1000 - 1000/1.05 ≈ 47.62
	if v.TodayProfit == nil {
		t.Fatal("expected today's profit to be resolved")
	}
	if !v.TodayProfit.Round(2).Equal(dec("47.62")) {
		t.Errorf("expected today profit 47.62, got %s", v.TodayProfit)
	}
	// totalProfit = (10 - 9) * 100
	if !v.TotalProfit.Equal(dec("100")) {
		t.Errorf("expected total profit 100, got %s", v.TotalProfit)
	}
}

func TestValuate_ThinCoverageFallsBackToOfficial(t *testing.T) {
	s := testSession(t)
	e := NewEngine(s)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, s.Loc)
	snap := snapshot(s, now)
	snap.EstimateCoverage = 0.02

	v := e.Valuate(snap, position("100", "9"), now)
	if v == nil {
		t.Fatal("expected a valuation")
	}
	if v.Basis != BasisOfficial {
		t.Errorf("expected official basis for thin coverage, got %s", v.Basis)
	}
	if !v.Price.Equal(dec("9.8")) {
		t.Errorf("expected official price 9.8, got %s", v.Price)
	}
	// No official change percent on the snapshot: today is unresolved.
	if v.TodayProfit != nil {
		t.Errorf("expected unresolved today profit, got %s", v.TodayProfit)
	}
}

func TestValuate_OfficialFreshTakesPrecedence(t *testing.T) {
	s := testSession(t)
	e := NewEngine(s)
	now := time.Date(2026, 8, 28, 19, 0, 0, 0, s.Loc)
	snap := snapshot(s, now)
	snap.NavDate = s.DayOf(now) // settled today
	snap.OfficialNav = dec("10.2")
	pct := dec("4")
	snap.OfficialChangePercent = &pct
	snap.EstimateCoverage = 0.0 // coverage is irrelevant once official is fresh

	v := e.Valuate(snap, position("100", "9"), now)
	if v == nil {
		t.Fatal("expected a valuation")
	}
	if v.Basis != BasisOfficial {
		t.Errorf("expected official basis, got %s", v.Basis)
	}
	if !v.Price.Equal(dec("10.2")) {
		t.Errorf("expected price 10.2, got %s", v.Price)
	}
	if v.TodayProfit == nil {
		t.Fatal("expected today's profit from official change percent")
	}
}

func TestValuate_OfficialFreshWithoutChangePercent(t *testing.T) {
	s := testSession(t)
	e := NewEngine(s)
	now := time.Date(2026, 8, 28, 19, 0, 0, 0, s.Loc)
	snap := snapshot(s, now)
	snap.NavDate = s.DayOf(now)

	v := e.Valuate(snap, position("100", "9"), now)
	if v == nil {
		t.Fatal("expected a valuation")
	}
	// Change base defaults to zero: today's profit is zero, not unresolved.
	if v.TodayProfit == nil {
		t.Fatal("expected resolved today profit")
	}
	if !v.TodayProfit.IsZero() {
		t.Errorf("expected zero today profit, got %s", v.TodayProfit)
	}
}

func TestValuate_PreMarketStaleQuote(t *testing.T) {
	s := testSession(t)
	e := NewEngine(s)
	now := time.Date(2026, 8, 28, 8, 0, 0, 0, s.Loc) // before estimation starts
	yesterday := time.Date(2026, 8, 27, 15, 0, 0, 0, s.Loc)
	snap := snapshot(s, yesterday)

	v := e.Valuate(snap, position("100", "9"), now)
	if v == nil {
		t.Fatal("expected a valuation")
	}
	if v.TodayProfit != nil {
		t.Errorf("quote from yesterday: today profit should be unresolved, got %s", v.TodayProfit)
	}
	if !v.TotalProfit.Equal(dec("100")) {
		t.Errorf("total profit still computed from available price, got %s", v.TotalProfit)
	}
}

func TestValuate_NonTradingDayQuoteFromToday(t *testing.T) {
	s := testSession(t)
	e := NewEngine(s)
	// Saturday; the quote itself was produced today (unusual but possible
	// right after a data refresh), so the change is attributable.
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, s.Loc)
	snap := snapshot(s, now)

	v := e.Valuate(snap, position("100", "9"), now)
	if v == nil {
		t.Fatal("expected a valuation")
	}
	if v.TodayProfit == nil {
		t.Error("expected today profit attributed via quote timestamp date")
	}
}
