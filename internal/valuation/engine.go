package valuation

import (
	"time"

	"FundWatch/internal/model"

	"github.com/shopspring/decimal"
)

// PriceBasis names the source of the price a valuation was derived from.
type PriceBasis string

const (
	BasisOfficial  PriceBasis = "OFFICIAL"
	BasisEstimated PriceBasis = "ESTIMATED"
)

// Valuation is the derived performance view of one position.
// TodayProfit is nil when no change percent can be attributed to the
// evaluation date itself.
type Valuation struct {
	Code        string           `json:"code"`
	Price       decimal.Decimal  `json:"price"`
	Basis       PriceBasis       `json:"basis"`
	MarketValue decimal.Decimal  `json:"market_value"`
	TodayProfit *decimal.Decimal `json:"today_profit,omitempty"`
	TotalProfit decimal.Decimal  `json:"total_profit"`
}

// minCoverage is the estimate-coverage floor below which intraday
// estimates are considered too thin to trust.
const minCoverage = 0.05

// Engine derives profit figures from quote and ledger state. It holds no
// state of its own; every call evaluates fresh against the clock.
type Engine struct {
	session *Session
}

func NewEngine(session *Session) *Engine {
	return &Engine{session: session}
}

// Valuate computes market value, today's profit and total unrealized
// profit for a position at time now. Returns nil when there is no
// position (or no shares) to value.
//
// Price basis selection:
//   - official NAV dated today is authoritative, regardless of coverage
//   - during the estimation window, the intraday estimate is used when
//     its coverage is trustworthy, otherwise the official NAV
//   - otherwise whichever price is available, with today's profit left
//     unresolved unless the quote timestamp itself falls on today
func (e *Engine) Valuate(snap *model.QuoteSnapshot, pos *model.Position, now time.Time) *Valuation {
	if snap == nil || pos == nil || !pos.ShareCount.IsPositive() {
		return nil
	}

	var price decimal.Decimal
	var basis PriceBasis
	var changePct *decimal.Decimal

	switch {
	case e.session.SameDay(snap.NavDate, now):
		// Official NAV settled today: authoritative.
		price = snap.OfficialNav
		basis = BasisOfficial
		if snap.OfficialChangePercent != nil {
			changePct = snap.OfficialChangePercent
		} else {
			zero := decimal.Zero
			changePct = &zero
		}

	case e.session.InEstimationWindow(now):
		if snap.EstimateCoverage > minCoverage && snap.EstimatedNav.IsPositive() {
			price = snap.EstimatedNav
			basis = BasisEstimated
			pct := snap.EstimatedChangePercent
			changePct = &pct
		} else {
			price = snap.OfficialNav
			basis = BasisOfficial
			changePct = snap.OfficialChangePercent
		}

	default:
		// Pre-market or non-trading day: value with whatever is
		// available, but only attribute a change to today when the
		// quote itself is from today.
		if snap.EstimatedNav.IsPositive() {
			price = snap.EstimatedNav
			basis = BasisEstimated
		} else {
			price = snap.OfficialNav
			basis = BasisOfficial
		}
		if e.session.SameDay(snap.QuoteTime, now) {
			pct := snap.EstimatedChangePercent
			changePct = &pct
		}
	}

	marketValue := pos.ShareCount.Mul(price)
	v := &Valuation{
		Code:        snap.Code,
		Price:       price,
		Basis:       basis,
		MarketValue: marketValue,
		TotalProfit: price.Sub(pos.AverageCost).Mul(pos.ShareCount),
	}

	if changePct != nil {
		// Back out yesterday's equivalent value implied by today's
		// percentage change: today = mv - mv/(1+pct/100).
		denom := decimal.NewFromInt(1).Add(changePct.Div(decimal.NewFromInt(100)))
		if !denom.IsZero() {
			profit := marketValue.Sub(marketValue.Div(denom))
			v.TodayProfit = &profit
		}
	}
	return v
}
