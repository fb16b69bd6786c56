package ledger

import (
	"testing"

	"FundWatch/internal/model"
	"FundWatch/internal/store"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplySettledTrade_FirstBuy(t *testing.T) {
	l := New(store.NewMemoryStore(), false)

	pos, err := l.ApplySettledTrade("018957", model.TradeBuy, dec("100"), dec("10"), dec("1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.ShareCount.Equal(dec("100")) {
		t.Errorf("expected 100 shares, got %s", pos.ShareCount)
	}
	if !pos.AverageCost.Equal(dec("10")) {
		t.Errorf("expected average cost 10, got %s", pos.AverageCost)
	}
}

func TestApplySettledTrade_BuySequenceAveragesCost(t *testing.T) {
	l := New(store.NewMemoryStore(), false)

	buys := []struct {
		shares   string
		cashFlow string
		wantAvg  string
	}{
		{"100", "1000", "10"},   // 100 @ 10
		{"100", "2000", "15"},   // (1000+2000)/200
		{"200", "2000", "12.5"}, // (3000+2000)/400
	}
	for i, b := range buys {
		pos, err := l.ApplySettledTrade("018957", model.TradeBuy, dec(b.shares), decimal.Zero, dec(b.cashFlow))
		if err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
		if !pos.AverageCost.Equal(dec(b.wantAvg)) {
			t.Errorf("buy %d: expected average cost %s, got %s", i, b.wantAvg, pos.AverageCost)
		}
	}
}

func TestApplySettledTrade_SellKeepsCost(t *testing.T) {
	l := New(store.NewMemoryStore(), false)
	if _, err := l.ApplySettledTrade("018957", model.TradeBuy, dec("100"), dec("10"), dec("1000")); err != nil {
		t.Fatal(err)
	}

	pos, err := l.ApplySettledTrade("018957", model.TradeSell, dec("40"), dec("12"), dec("480"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.ShareCount.Equal(dec("60")) {
		t.Errorf("expected 60 shares, got %s", pos.ShareCount)
	}
	if !pos.AverageCost.Equal(dec("10")) {
		t.Errorf("average cost should be unchanged by a partial sell, got %s", pos.AverageCost)
	}
}

func TestApplySettledTrade_OverSellClampsToZero(t *testing.T) {
	l := New(store.NewMemoryStore(), false)
	if _, err := l.ApplySettledTrade("018957", model.TradeBuy, dec("50"), dec("10"), dec("500")); err != nil {
		t.Fatal(err)
	}

	pos, err := l.ApplySettledTrade("018957", model.TradeSell, dec("80"), dec("11"), dec("880"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.ShareCount.IsZero() {
		t.Errorf("expected shares clamped to 0, got %s", pos.ShareCount)
	}
	if !pos.AverageCost.IsZero() {
		t.Errorf("expected average cost reset to 0 on full liquidation, got %s", pos.AverageCost)
	}
}

func TestApplySettledTrade_OverSellStrictMode(t *testing.T) {
	l := New(store.NewMemoryStore(), true)
	if _, err := l.ApplySettledTrade("018957", model.TradeBuy, dec("50"), dec("10"), dec("500")); err != nil {
		t.Fatal(err)
	}

	if _, err := l.ApplySettledTrade("018957", model.TradeSell, dec("80"), dec("11"), dec("880")); err == nil {
		t.Fatal("expected over-sell to be rejected in strict mode")
	}

	// Position untouched after the rejection.
	pos, ok, err := l.Position("018957")
	if err != nil || !ok {
		t.Fatalf("position lookup: ok=%v err=%v", ok, err)
	}
	if !pos.ShareCount.Equal(dec("50")) {
		t.Errorf("expected 50 shares after rejected sell, got %s", pos.ShareCount)
	}
}

func TestApplySettledTrade_InvalidInput(t *testing.T) {
	l := New(store.NewMemoryStore(), false)

	tests := []struct {
		name     string
		code     string
		kind     model.TradeKind
		shares   string
		cashFlow string
	}{
		{"empty code", "", model.TradeBuy, "10", "100"},
		{"zero shares", "018957", model.TradeBuy, "0", "100"},
		{"negative shares", "018957", model.TradeSell, "-5", "0"},
		{"zero buy cash flow", "018957", model.TradeBuy, "10", "0"},
		{"unknown kind", "018957", model.TradeKind("SHORT"), "10", "100"},
	}
	for _, tt := range tests {
		if _, err := l.ApplySettledTrade(tt.code, tt.kind, dec(tt.shares), decimal.Zero, dec(tt.cashFlow)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	// Nothing was persisted by the rejected trades.
	positions, err := l.Positions()
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 0 {
		t.Errorf("expected empty ledger, got %d entries", len(positions))
	}
}

func TestClear_BypassesCostArithmetic(t *testing.T) {
	l := New(store.NewMemoryStore(), false)
	if _, err := l.ApplySettledTrade("018957", model.TradeBuy, dec("100"), dec("10"), dec("1000")); err != nil {
		t.Fatal(err)
	}

	if err := l.Clear("018957"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := l.Position("018957"); ok {
		t.Error("expected position removed after clear")
	}

	// Clearing an unknown code is a no-op.
	if err := l.Clear("999999"); err != nil {
		t.Errorf("clear of unknown code: %v", err)
	}
}
