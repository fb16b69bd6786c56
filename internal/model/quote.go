package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSnapshot is the latest known valuation state for one instrument.
// OfficialNav is the settled end-of-day value for NavDate; EstimatedNav is
// the intraday approximation reported at QuoteTime.
type QuoteSnapshot struct {
	Code                   string           `json:"code"`
	Name                   string           `json:"name"`
	OfficialNav            decimal.Decimal  `json:"official_nav"`
	NavDate                time.Time        `json:"nav_date"`
	EstimatedNav           decimal.Decimal  `json:"estimated_nav"`
	EstimatedChangePercent decimal.Decimal  `json:"estimated_change_percent"`
	OfficialChangePercent  *decimal.Decimal `json:"official_change_percent,omitempty"`
	QuoteTime              time.Time        `json:"quote_time"`
	// EstimateCoverage is the fraction (0..1) of the fund's mix that the
	// intraday estimation actually prices. Below ~5% the estimate is not
	// trustworthy and valuation falls back to the official NAV.
	EstimateCoverage float64   `json:"estimate_coverage"`
	FetchedAt        time.Time `json:"fetched_at"`
}
