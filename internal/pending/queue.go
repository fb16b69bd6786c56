package pending

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"FundWatch/internal/ledger"
	"FundWatch/internal/model"
	"FundWatch/internal/provider"
	"FundWatch/internal/store"
	"FundWatch/internal/valuation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Queue holds trade intents whose settlement price was not resolvable at
// submission time. Intents are retried on every drain pass, with no
// backoff; they live until resolved or past Expiry.
type Queue struct {
	mu      sync.Mutex
	store   store.Store
	ledger  *ledger.Ledger
	lookup  provider.SettlementPriceLookup
	session *valuation.Session

	// Expiry bounds how long an unresolved intent is retried. Zero means
	// intents never expire.
	Expiry time.Duration
}

func New(st store.Store, l *ledger.Ledger, lookup provider.SettlementPriceLookup, session *valuation.Session) *Queue {
	return &Queue{store: st, ledger: l, lookup: lookup, session: session}
}

func (q *Queue) load() ([]model.PendingIntent, error) {
	var intents []model.PendingIntent
	if _, err := q.store.Get(store.KeyPendingIntents, &intents); err != nil {
		return nil, err
	}
	return intents, nil
}

// Enqueue appends an intent to the queue in FIFO order, assigning its id
// and creation time.
func (q *Queue) Enqueue(intent model.PendingIntent) (*model.PendingIntent, error) {
	if intent.Code == "" {
		return nil, fmt.Errorf("%w: empty instrument code", ledger.ErrInvalidTradeInput)
	}
	intent.ID = uuid.NewString()
	intent.CreatedAt = time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	intents, err := q.load()
	if err != nil {
		return nil, err
	}
	intents = append(intents, intent)
	if err := q.store.Set(store.KeyPendingIntents, intents); err != nil {
		return nil, err
	}
	log.Printf("[INFO] pending intent queued: %s %s %s", intent.Kind, intent.Code, intent.ID)
	return &intent, nil
}

// List returns all queued intents in enqueue order.
func (q *Queue) List() ([]model.PendingIntent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Drain attempts to resolve a settlement price for every queued intent.
// Resolved intents are applied to the ledger exactly as an immediate
// settled trade would have been, then removed; unresolved intents remain
// untouched. Intents are processed in enqueue order, so multiple intents
// for the same instrument mutate the ledger sequentially and
// deterministically. Returns the number resolved.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	intents, err := q.load()
	if err != nil {
		return 0, err
	}
	if len(intents) == 0 {
		return 0, nil
	}

	remaining := intents[:0:0]
	resolved := 0
	dropped := 0
	for _, intent := range intents {
		if q.Expiry > 0 && time.Since(intent.CreatedAt) > q.Expiry {
			log.Printf("[WARN] pending intent expired unresolved: %s %s %s", intent.Kind, intent.Code, intent.ID)
			dropped++
			continue
		}
		effDate := q.session.EffectiveSettlementDate(intent.SettlementDate, intent.AfterCutoff)
		price, ok, err := q.lookup.ResolvePrice(ctx, intent.Code, effDate)
		if err != nil {
			log.Printf("[WARN] settlement lookup %s @ %s: %v", intent.Code, effDate.Format("2006-01-02"), err)
			remaining = append(remaining, intent)
			continue
		}
		if !ok || !price.IsPositive() {
			remaining = append(remaining, intent)
			continue
		}
		if _, err := Apply(q.ledger, intent, price); err != nil {
			log.Printf("[ERROR] apply pending intent %s: %v", intent.ID, err)
			remaining = append(remaining, intent)
			continue
		}
		resolved++
		log.Printf("[INFO] pending intent resolved: %s %s @ %s", intent.Kind, intent.Code, price)
	}

	if resolved > 0 || dropped > 0 {
		if err := q.store.Set(store.KeyPendingIntents, remaining); err != nil {
			return resolved, err
		}
	}
	return resolved, nil
}

// Apply settles an intent against the ledger at a known price, using the
// same arithmetic as an immediately settled trade.
func Apply(l *ledger.Ledger, intent model.PendingIntent, price decimal.Decimal) (*model.Position, error) {
	switch intent.Kind {
	case model.TradeBuy:
		net := intent.Fee.NetOfFee(intent.TotalAmount)
		if !net.IsPositive() {
			return nil, fmt.Errorf("%w: buy amount %s consumed by fees", ledger.ErrInvalidTradeInput, intent.TotalAmount)
		}
		shares := net.DivRound(price, 2)
		return l.ApplySettledTrade(intent.Code, model.TradeBuy, shares, price, intent.TotalAmount)
	case model.TradeSell:
		proceeds := intent.ShareCount.Mul(price)
		return l.ApplySettledTrade(intent.Code, model.TradeSell, intent.ShareCount, price, proceeds)
	default:
		return nil, fmt.Errorf("%w: unknown trade kind %q", ledger.ErrInvalidTradeInput, intent.Kind)
	}
}

// AvailableShares is the held share count minus shares committed to
// pending sells, floored at zero. Advisory only: it never blocks a new
// sell intent from being queued.
func (q *Queue) AvailableShares(code string) (decimal.Decimal, error) {
	pos, ok, err := q.ledger.Position(code)
	if err != nil {
		return decimal.Zero, err
	}
	held := decimal.Zero
	if ok {
		held = pos.ShareCount
	}

	intents, err := q.List()
	if err != nil {
		return decimal.Zero, err
	}
	for _, intent := range intents {
		if intent.Code == code && intent.Kind == model.TradeSell {
			held = held.Sub(intent.ShareCount)
		}
	}
	if held.IsNegative() {
		return decimal.Zero, nil
	}
	return held, nil
}

// RemoveForCode drops all pending intents for one instrument, used when
// it is removed from the watchlist.
func (q *Queue) RemoveForCode(code string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	intents, err := q.load()
	if err != nil {
		return err
	}
	remaining := intents[:0:0]
	for _, intent := range intents {
		if intent.Code != code {
			remaining = append(remaining, intent)
		}
	}
	if len(remaining) == len(intents) {
		return nil
	}
	return q.store.Set(store.KeyPendingIntents, remaining)
}
