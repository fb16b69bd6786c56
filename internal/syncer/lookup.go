package syncer

import (
	"context"
	"time"

	"FundWatch/internal/model"
	"FundWatch/internal/store"

	"github.com/shopspring/decimal"
)

// SnapshotLookup resolves settlement prices from the quote snapshots the
// pipeline has already persisted: when a stored snapshot's official NAV
// is dated exactly the requested settlement date, no remote call is
// needed. Chained before the remote history lookup.
type SnapshotLookup struct {
	Store store.Store
}

func (s SnapshotLookup) ResolvePrice(_ context.Context, code string, date time.Time) (decimal.Decimal, bool, error) {
	var quotes []model.QuoteSnapshot
	if _, err := s.Store.Get(store.KeyWatchlist, &quotes); err != nil {
		return decimal.Zero, false, err
	}
	want := date.Format("2006-01-02")
	for _, q := range quotes {
		if q.Code != code {
			continue
		}
		if q.NavDate.Format("2006-01-02") == want && q.OfficialNav.IsPositive() {
			return q.OfficialNav, true, nil
		}
	}
	return decimal.Zero, false, nil
}
