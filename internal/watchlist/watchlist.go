package watchlist

import (
	"context"
	"errors"
	"log"
	"sync"

	"FundWatch/internal/ledger"
	"FundWatch/internal/model"
	"FundWatch/internal/pending"
	"FundWatch/internal/provider"
	"FundWatch/internal/store"
)

// ErrDuplicateInstrument marks an add for a code already tracked. It is a
// skip, not a failure.
var ErrDuplicateInstrument = errors.New("instrument already in watchlist")

// AddStatus classifies the per-code outcome of an add request.
type AddStatus string

const (
	AddAdded   AddStatus = "ADDED"
	AddSkipped AddStatus = "SKIPPED_DUPLICATE"
	AddFailed  AddStatus = "FAILED"
)

// AddOutcome is the itemized result for one requested code.
type AddOutcome struct {
	Code   string    `json:"code"`
	Status AddStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// Manager owns the watchlist: the deduplicated union of quote snapshots
// keyed by instrument code, plus the favorite set and named groups.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	provider provider.QuoteProvider
	ledger   *ledger.Ledger
	queue    *pending.Queue
}

func NewManager(st store.Store, p provider.QuoteProvider, l *ledger.Ledger, q *pending.Queue) *Manager {
	return &Manager{store: st, provider: p, ledger: l, queue: q}
}

// Quotes returns the stored snapshots in display order.
func (m *Manager) Quotes() ([]model.QuoteSnapshot, error) {
	var quotes []model.QuoteSnapshot
	if _, err := m.store.Get(store.KeyWatchlist, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Codes returns the tracked instrument codes in display order.
func (m *Manager) Codes() ([]string, error) {
	quotes, err := m.Quotes()
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(quotes))
	for _, q := range quotes {
		codes = append(codes, q.Code)
	}
	return codes, nil
}

// Add fetches a first snapshot for each code and inserts it at the top of
// the watchlist. Duplicates are skipped, provider failures are reported
// per code; neither aborts the remaining codes.
func (m *Manager) Add(ctx context.Context, codes ...string) ([]AddOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	quotes, err := m.Quotes()
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		present[q.Code] = true
	}

	outcomes := make([]AddOutcome, 0, len(codes))
	changed := false
	for _, code := range codes {
		if code == "" {
			outcomes = append(outcomes, AddOutcome{Code: code, Status: AddFailed, Error: "empty code"})
			continue
		}
		if present[code] {
			outcomes = append(outcomes, AddOutcome{Code: code, Status: AddSkipped, Error: ErrDuplicateInstrument.Error()})
			continue
		}
		snap, err := m.provider.FetchQuote(ctx, code)
		if err != nil {
			log.Printf("[WARN] add %s: %v", code, err)
			outcomes = append(outcomes, AddOutcome{Code: code, Status: AddFailed, Error: err.Error()})
			continue
		}
		quotes = append([]model.QuoteSnapshot{*snap}, quotes...)
		present[code] = true
		changed = true
		outcomes = append(outcomes, AddOutcome{Code: code, Status: AddAdded})
	}

	if changed {
		if err := m.store.Set(store.KeyWatchlist, quotes); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// Remove drops an instrument from the watchlist along with its ledger
// entry, pending intents, favorite flag and group memberships.
func (m *Manager) Remove(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	quotes, err := m.Quotes()
	if err != nil {
		return err
	}
	kept := quotes[:0:0]
	for _, q := range quotes {
		if q.Code != code {
			kept = append(kept, q)
		}
	}
	if err := m.store.Set(store.KeyWatchlist, kept); err != nil {
		return err
	}

	if err := m.ledger.Clear(code); err != nil {
		return err
	}
	if err := m.queue.RemoveForCode(code); err != nil {
		return err
	}
	if err := m.setFavoriteLocked(code, false); err != nil {
		return err
	}
	return m.removeFromGroupsLocked(code)
}

// Favorites returns the favorite code set.
func (m *Manager) Favorites() ([]string, error) {
	var favorites []string
	if _, err := m.store.Get(store.KeyFavorites, &favorites); err != nil {
		return nil, err
	}
	return favorites, nil
}

// SetFavorite adds or removes a code from the favorite set.
func (m *Manager) SetFavorite(code string, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setFavoriteLocked(code, on)
}

func (m *Manager) setFavoriteLocked(code string, on bool) error {
	favorites, err := m.Favorites()
	if err != nil {
		return err
	}
	kept := favorites[:0:0]
	for _, c := range favorites {
		if c != code {
			kept = append(kept, c)
		}
	}
	if on {
		kept = append(kept, code)
	}
	if len(kept) == len(favorites) && !on {
		return nil
	}
	return m.store.Set(store.KeyFavorites, kept)
}

// Groups returns the named code groups.
func (m *Manager) Groups() (map[string][]string, error) {
	groups := make(map[string][]string)
	if _, err := m.store.Get(store.KeyGroups, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SetGroup creates or replaces a named group, deduplicating its codes.
func (m *Manager) SetGroup(name string, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups, err := m.Groups()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(codes))
	deduped := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		deduped = append(deduped, c)
	}
	groups[name] = deduped
	return m.store.Set(store.KeyGroups, groups)
}

// RemoveGroup deletes a named group.
func (m *Manager) RemoveGroup(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups, err := m.Groups()
	if err != nil {
		return err
	}
	if _, ok := groups[name]; !ok {
		return nil
	}
	delete(groups, name)
	return m.store.Set(store.KeyGroups, groups)
}

func (m *Manager) removeFromGroupsLocked(code string) error {
	groups, err := m.Groups()
	if err != nil {
		return err
	}
	changed := false
	for name, codes := range groups {
		kept := codes[:0:0]
		for _, c := range codes {
			if c != code {
				kept = append(kept, c)
			}
		}
		if len(kept) != len(codes) {
			groups[name] = kept
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return m.store.Set(store.KeyGroups, groups)
}
