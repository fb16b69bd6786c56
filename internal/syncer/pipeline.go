package syncer

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"FundWatch/internal/model"
	"FundWatch/internal/pending"
	"FundWatch/internal/provider"
	"FundWatch/internal/store"
)

// Result summarizes one refresh run.
type Result struct {
	// Skipped is true when the run was coalesced away because another
	// refresh was already in flight.
	Skipped bool     `json:"skipped"`
	Updated []string `json:"updated"`
	Failed  []string `json:"failed"`
	// Resolved counts pending intents settled by the drain pass that
	// follows the merge.
	Resolved int           `json:"resolved"`
	Elapsed  time.Duration `json:"-"`
}

// Pipeline refreshes quote snapshots from the provider and merges them
// into the store. Per-code failures retain the previously stored snapshot
// (stale-on-error); a successful run always ends with a pending-queue
// drain pass, whether or not any quote changed.
type Pipeline struct {
	provider provider.QuoteProvider
	store    store.Store
	queue    *pending.Queue
	timeout  time.Duration

	// Only one refresh may be in flight; late arrivals are dropped, not
	// queued.
	inFlight atomic.Bool
}

func NewPipeline(p provider.QuoteProvider, st store.Store, q *pending.Queue, perCodeTimeout time.Duration) *Pipeline {
	return &Pipeline{provider: p, store: st, queue: q, timeout: perCodeTimeout}
}

// Refresh fetches a snapshot for every code, sequentially, and writes the
// merged set back. Provider errors are per-code and non-fatal; a run that
// fails for every code still completes with prior state retained.
func (p *Pipeline) Refresh(ctx context.Context, codes []string) (*Result, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		log.Println("[INFO] refresh already in flight, dropping request")
		return &Result{Skipped: true}, nil
	}
	defer p.inFlight.Store(false)

	start := time.Now()
	result := &Result{}

	var quotes []model.QuoteSnapshot
	if _, err := p.store.Get(store.KeyWatchlist, &quotes); err != nil {
		return nil, err
	}
	index := make(map[string]int, len(quotes))
	for i, q := range quotes {
		index[q.Code] = i
	}

	for _, code := range dedupe(codes) {
		snap, err := p.fetchOne(ctx, code)
		if err != nil {
			// Stale-on-error: the previously stored snapshot stays.
			log.Printf("[WARN] refresh %s failed, keeping stale snapshot: %v", code, err)
			result.Failed = append(result.Failed, code)
			continue
		}
		if i, ok := index[code]; ok {
			quotes[i] = *snap
		} else {
			index[code] = len(quotes)
			quotes = append(quotes, *snap)
		}
		result.Updated = append(result.Updated, code)
	}

	// Replacement by code is authoritative within a pass; dedupe defends
	// against duplicate entries persisted by older versions of the store.
	merged := dedupeQuotes(quotes)
	if err := p.store.Set(store.KeyWatchlist, merged); err != nil {
		return nil, err
	}

	// The drain pass is strictly sequenced after the merge and runs even
	// when no quote changed.
	resolved, err := p.queue.Drain(ctx)
	if err != nil {
		log.Printf("[ERROR] pending drain: %v", err)
	}
	result.Resolved = resolved
	result.Elapsed = time.Since(start)
	return result, nil
}

func (p *Pipeline) fetchOne(ctx context.Context, code string) (*model.QuoteSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.provider.FetchQuote(fetchCtx, code)
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// dedupeQuotes keeps one snapshot per code; the later entry wins.
func dedupeQuotes(quotes []model.QuoteSnapshot) []model.QuoteSnapshot {
	index := make(map[string]int, len(quotes))
	out := make([]model.QuoteSnapshot, 0, len(quotes))
	for _, q := range quotes {
		if i, ok := index[q.Code]; ok {
			out[i] = q
			continue
		}
		index[q.Code] = len(out)
		out = append(out, q)
	}
	return out
}
