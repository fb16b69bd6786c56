package watchlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"FundWatch/internal/ledger"
	"FundWatch/internal/model"
	"FundWatch/internal/pending"
	"FundWatch/internal/provider"
	"FundWatch/internal/store"
	"FundWatch/internal/valuation"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newManager(t *testing.T, p provider.QuoteProvider) (*Manager, store.Store, *ledger.Ledger, *pending.Queue) {
	t.Helper()
	st := store.NewMemoryStore()
	l := ledger.New(st, false)
	session, err := valuation.NewSession("Asia/Shanghai", "09:30", "15:00")
	if err != nil {
		t.Fatal(err)
	}
	q := pending.New(st, l, &provider.MockLookup{}, session)
	return NewManager(st, p, l, q), st, l, q
}

func quote(code string) *model.QuoteSnapshot {
	return &model.QuoteSnapshot{Code: code, Name: "Fund " + code, OfficialNav: dec("1.0")}
}

func TestAdd_DuplicateIsSkippedNotDoubled(t *testing.T) {
	mock := &provider.MockProvider{Quotes: map[string]*model.QuoteSnapshot{"018957": quote("018957")}}
	m, _, _, _ := newManager(t, mock)

	outcomes, err := m.Add(context.Background(), "018957")
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Status != AddAdded {
		t.Fatalf("first add: expected ADDED, got %s", outcomes[0].Status)
	}

	outcomes, err = m.Add(context.Background(), "018957")
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Status != AddSkipped {
		t.Errorf("second add: expected SKIPPED_DUPLICATE, got %s", outcomes[0].Status)
	}

	quotes, _ := m.Quotes()
	if len(quotes) != 1 {
		t.Errorf("no two entries may share a code, got %d entries", len(quotes))
	}
}

func TestAdd_DuplicateWithinOneRequest(t *testing.T) {
	mock := &provider.MockProvider{Quotes: map[string]*model.QuoteSnapshot{"018957": quote("018957")}}
	m, _, _, _ := newManager(t, mock)

	outcomes, err := m.Add(context.Background(), "018957", "018957")
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Status != AddAdded || outcomes[1].Status != AddSkipped {
		t.Errorf("expected ADDED then SKIPPED_DUPLICATE, got %s then %s", outcomes[0].Status, outcomes[1].Status)
	}
}

func TestAdd_FailuresAreItemizedNotFatal(t *testing.T) {
	mock := &provider.MockProvider{
		Quotes: map[string]*model.QuoteSnapshot{"110022": quote("110022")},
		Errs:   map[string]error{"000000": errors.New("bad code")},
	}
	m, _, _, _ := newManager(t, mock)

	outcomes, err := m.Add(context.Background(), "000000", "110022")
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Status != AddFailed {
		t.Errorf("expected FAILED for 000000, got %s", outcomes[0].Status)
	}
	if outcomes[1].Status != AddAdded {
		t.Errorf("a failed code must not abort the rest, got %s", outcomes[1].Status)
	}
}

func TestAdd_NewestFirst(t *testing.T) {
	mock := &provider.MockProvider{Quotes: map[string]*model.QuoteSnapshot{
		"018957": quote("018957"),
		"110022": quote("110022"),
	}}
	m, _, _, _ := newManager(t, mock)

	m.Add(context.Background(), "018957")
	m.Add(context.Background(), "110022")

	quotes, _ := m.Quotes()
	if quotes[0].Code != "110022" {
		t.Errorf("expected newest entry first, got %s", quotes[0].Code)
	}
}

func TestRemove_CleansPositionPendingFavoritesGroups(t *testing.T) {
	mock := &provider.MockProvider{Quotes: map[string]*model.QuoteSnapshot{"018957": quote("018957")}}
	m, _, l, q := newManager(t, mock)

	if _, err := m.Add(context.Background(), "018957"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ApplySettledTrade("018957", model.TradeBuy, dec("100"), dec("10"), dec("1000")); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(model.PendingIntent{Code: "018957", Kind: model.TradeSell, ShareCount: dec("10"), SettlementDate: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetFavorite("018957", true); err != nil {
		t.Fatal(err)
	}
	if err := m.SetGroup("tech", []string{"018957", "110022"}); err != nil {
		t.Fatal(err)
	}

	if err := m.Remove("018957"); err != nil {
		t.Fatal(err)
	}

	if quotes, _ := m.Quotes(); len(quotes) != 0 {
		t.Error("watchlist entry not removed")
	}
	if _, ok, _ := l.Position("018957"); ok {
		t.Error("position not cleared on removal")
	}
	if intents, _ := q.List(); len(intents) != 0 {
		t.Error("pending intents not removed")
	}
	if favorites, _ := m.Favorites(); len(favorites) != 0 {
		t.Error("favorite flag not removed")
	}
	groups, _ := m.Groups()
	if codes := groups["tech"]; len(codes) != 1 || codes[0] != "110022" {
		t.Errorf("group membership not removed, got %v", codes)
	}
}

func TestSetGroup_DeduplicatesCodes(t *testing.T) {
	m, _, _, _ := newManager(t, &provider.MockProvider{})

	if err := m.SetGroup("mix", []string{"018957", "018957", "", "110022"}); err != nil {
		t.Fatal(err)
	}
	groups, _ := m.Groups()
	if codes := groups["mix"]; len(codes) != 2 {
		t.Errorf("expected deduplicated group, got %v", codes)
	}
}
