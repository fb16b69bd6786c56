package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"FundWatch/internal/model"
	"FundWatch/internal/store"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidTradeInput guards required numeric fields before any
	// ledger mutation happens.
	ErrInvalidTradeInput = errors.New("invalid trade input")
	// ErrInsufficientShares is returned in strict mode when a sell
	// exceeds the held share count.
	ErrInsufficientShares = errors.New("insufficient shares")
)

// Ledger is the weighted-average-cost accounting engine. Positions are
// persisted in the store under a single key; all mutations are
// read-modify-write under the ledger mutex.
type Ledger struct {
	mu         sync.Mutex
	store      store.Store
	strictSell bool
}

// New creates a Ledger. With strictSell enabled, over-sells are rejected
// instead of clamped to zero.
func New(st store.Store, strictSell bool) *Ledger {
	return &Ledger{store: st, strictSell: strictSell}
}

// Positions returns all ledger entries keyed by instrument code.
func (l *Ledger) Positions() (map[string]model.Position, error) {
	positions := make(map[string]model.Position)
	if _, err := l.store.Get(store.KeyPositions, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// Position returns one instrument's ledger entry, if it exists.
func (l *Ledger) Position(code string) (*model.Position, bool, error) {
	positions, err := l.Positions()
	if err != nil {
		return nil, false, err
	}
	pos, ok := positions[code]
	if !ok {
		return nil, false, nil
	}
	return &pos, true, nil
}

// ApplySettledTrade applies a settled buy or sell to the position for code.
//
// Buy: shares add up and the average cost absorbs the full cash flow,
// gross of fees; fees inflate the cost basis rather than being tracked
// separately.
//
// Sell: the average cost is unchanged unless the position fully
// liquidates, in which case cost-basis memory is reset to zero. Selling
// more than held clamps at zero (unless strict mode rejects it).
func (l *Ledger) ApplySettledTrade(code string, kind model.TradeKind, shareCount, pricePerShare, totalCashFlow decimal.Decimal) (*model.Position, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty instrument code", ErrInvalidTradeInput)
	}
	if !shareCount.IsPositive() {
		return nil, fmt.Errorf("%w: share count must be positive, got %s", ErrInvalidTradeInput, shareCount)
	}
	if kind == model.TradeBuy && !totalCashFlow.IsPositive() {
		return nil, fmt.Errorf("%w: buy cash flow must be positive, got %s", ErrInvalidTradeInput, totalCashFlow)
	}
	if pricePerShare.IsNegative() {
		return nil, fmt.Errorf("%w: negative price %s", ErrInvalidTradeInput, pricePerShare)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	positions, err := l.Positions()
	if err != nil {
		return nil, err
	}
	pos := positions[code]
	pos.Code = code

	switch kind {
	case model.TradeBuy:
		newShares := pos.ShareCount.Add(shareCount)
		pos.AverageCost = pos.AverageCost.Mul(pos.ShareCount).Add(totalCashFlow).Div(newShares)
		pos.ShareCount = newShares

	case model.TradeSell:
		newShares := pos.ShareCount.Sub(shareCount)
		if newShares.IsNegative() {
			if l.strictSell {
				return nil, fmt.Errorf("%w: sell %s exceeds held %s for %s",
					ErrInsufficientShares, shareCount, pos.ShareCount, code)
			}
			newShares = decimal.Zero
		}
		pos.ShareCount = newShares
		if pos.ShareCount.IsZero() {
			pos.AverageCost = decimal.Zero
		}

	default:
		return nil, fmt.Errorf("%w: unknown trade kind %q", ErrInvalidTradeInput, kind)
	}

	pos.UpdatedAt = time.Now()
	positions[code] = pos
	if err := l.store.Set(store.KeyPositions, positions); err != nil {
		return nil, err
	}
	result := pos
	return &result, nil
}

// Clear removes an instrument's ledger entry outright. Unlike a sell it
// bypasses cost-basis arithmetic entirely.
func (l *Ledger) Clear(code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions, err := l.Positions()
	if err != nil {
		return err
	}
	if _, ok := positions[code]; !ok {
		return nil
	}
	delete(positions, code)
	return l.store.Set(store.KeyPositions, positions)
}
