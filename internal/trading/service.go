package trading

import (
	"context"
	"fmt"
	"log"
	"time"

	"FundWatch/internal/ledger"
	"FundWatch/internal/model"
	"FundWatch/internal/pending"
	"FundWatch/internal/provider"
	"FundWatch/internal/valuation"

	"github.com/shopspring/decimal"
)

// Request describes a trade submitted by the user. Buys are specified by
// gross cash amount, sells by share count.
type Request struct {
	Code           string          `json:"code"`
	Kind           model.TradeKind `json:"kind"`
	ShareCount     decimal.Decimal `json:"share_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Fee            model.FeeSpec   `json:"fee"`
	SettlementDate time.Time       `json:"settlement_date"`
	AfterCutoff    bool            `json:"after_cutoff"`
}

// Result reports how a submission was handled: settled immediately
// against a resolved price, or queued as a pending intent.
type Result struct {
	Settled  bool                 `json:"settled"`
	Position *model.Position      `json:"position,omitempty"`
	Pending  *model.PendingIntent `json:"pending,omitempty"`
}

// Service validates trade requests and settles them immediately when the
// settlement price is already known, deferring to the pending queue
// otherwise.
type Service struct {
	ledger  *ledger.Ledger
	queue   *pending.Queue
	lookup  provider.SettlementPriceLookup
	session *valuation.Session
}

func NewService(l *ledger.Ledger, q *pending.Queue, lookup provider.SettlementPriceLookup, session *valuation.Session) *Service {
	return &Service{ledger: l, queue: q, lookup: lookup, session: session}
}

func (s *Service) validate(req *Request) error {
	if req.Code == "" {
		return fmt.Errorf("%w: empty instrument code", ledger.ErrInvalidTradeInput)
	}
	switch req.Kind {
	case model.TradeBuy:
		if !req.TotalAmount.IsPositive() {
			return fmt.Errorf("%w: buy amount must be positive, got %s", ledger.ErrInvalidTradeInput, req.TotalAmount)
		}
	case model.TradeSell:
		if !req.ShareCount.IsPositive() {
			return fmt.Errorf("%w: sell share count must be positive, got %s", ledger.ErrInvalidTradeInput, req.ShareCount)
		}
	default:
		return fmt.Errorf("%w: unknown trade kind %q", ledger.ErrInvalidTradeInput, req.Kind)
	}
	if req.Fee.Rate.IsNegative() || req.Fee.Flat.IsNegative() {
		return fmt.Errorf("%w: negative fee", ledger.ErrInvalidTradeInput)
	}
	return nil
}

// Submit validates and executes a trade request. Validation failures
// happen before any mutation; an unresolvable settlement price routes the
// trade to the pending queue instead of failing it.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	if req.SettlementDate.IsZero() {
		now := time.Now()
		req.SettlementDate = now
		req.AfterCutoff = s.session.AfterCutoff(now)
	}

	intent := model.PendingIntent{
		Code:           req.Code,
		Kind:           req.Kind,
		ShareCount:     req.ShareCount,
		TotalAmount:    req.TotalAmount,
		Fee:            req.Fee,
		SettlementDate: req.SettlementDate,
		AfterCutoff:    req.AfterCutoff,
	}

	effDate := s.session.EffectiveSettlementDate(req.SettlementDate, req.AfterCutoff)
	price, ok, err := s.lookup.ResolvePrice(ctx, req.Code, effDate)
	if err != nil {
		// Lookup failure is treated as price-not-yet-available.
		log.Printf("[WARN] settlement lookup %s @ %s: %v", req.Code, effDate.Format("2006-01-02"), err)
		ok = false
	}

	if ok && price.IsPositive() {
		pos, err := pending.Apply(s.ledger, intent, price)
		if err != nil {
			return nil, err
		}
		log.Printf("[INFO] trade settled: %s %s @ %s", req.Kind, req.Code, price)
		return &Result{Settled: true, Position: pos}, nil
	}

	queued, err := s.queue.Enqueue(intent)
	if err != nil {
		return nil, err
	}
	return &Result{Settled: false, Pending: queued}, nil
}

// AvailableShares reports how many shares of code can currently be
// offered for sale, accounting for queued sell intents.
func (s *Service) AvailableShares(code string) (decimal.Decimal, error) {
	return s.queue.AvailableShares(code)
}
