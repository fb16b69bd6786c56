package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeKind indicates the direction of a trade.
type TradeKind string

const (
	TradeBuy  TradeKind = "BUY"
	TradeSell TradeKind = "SELL"
)

// FeeSpec describes the fee charged on a trade: a rate applied by outer
// deduction, a flat amount, or both zero for fee-free funds.
type FeeSpec struct {
	Rate decimal.Decimal `json:"rate"`
	Flat decimal.Decimal `json:"flat"`
}

// NetOfFee returns the portion of a gross buy amount that actually
// purchases shares. Rate-based fees use outer deduction
// (net = gross / (1 + rate)); flat fees subtract directly.
func (f FeeSpec) NetOfFee(gross decimal.Decimal) decimal.Decimal {
	net := gross
	if f.Rate.IsPositive() {
		net = net.Div(decimal.NewFromInt(1).Add(f.Rate))
	}
	if f.Flat.IsPositive() {
		net = net.Sub(f.Flat)
	}
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// Position is one instrument's ledger entry. AverageCost is meaningless
// (zero) when ShareCount is zero.
type Position struct {
	Code        string          `json:"code"`
	ShareCount  decimal.Decimal `json:"share_count"`
	AverageCost decimal.Decimal `json:"average_cost"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PendingIntent is a trade whose settlement price was not resolvable at
// submission time. It belongs to exactly one instrument and is resolved
// at most once; resolution removes it from the queue.
type PendingIntent struct {
	ID   string    `json:"id"`
	Code string    `json:"code"`
	Kind TradeKind `json:"kind"`
	// ShareCount is set for sells, TotalAmount (gross of fees) for buys.
	ShareCount     decimal.Decimal `json:"share_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Fee            FeeSpec         `json:"fee"`
	SettlementDate time.Time       `json:"settlement_date"`
	AfterCutoff    bool            `json:"after_cutoff"`
	CreatedAt      time.Time       `json:"created_at"`
}
