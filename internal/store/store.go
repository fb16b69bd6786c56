package store

import "sync"

// Well-known keys in the durable key space.
const (
	KeyWatchlist       = "watchlist"
	KeyPositions       = "positions"
	KeyPendingIntents  = "pending_intents"
	KeyRefreshInterval = "refresh_interval"
	KeyFavorites       = "favorites"
	KeyGroups          = "groups"
)

// Change notifies subscribers that a key was written or removed.
type Change struct {
	Key     string
	Removed bool
}

// Store is a durable key-value store with change notification. Values are
// JSON-encoded; the store is the single source of truth across restarts.
type Store interface {
	// Get decodes the value at key into out. found is false when the key
	// does not exist.
	Get(key string, out any) (found bool, err error)
	Set(key string, v any) error
	Remove(key string) error
	// Subscribe delivers changes for the given keys (all keys when none
	// given) until the returned cancel func is called. Slow subscribers
	// drop notifications rather than block writers.
	Subscribe(keys ...string) (<-chan Change, func())
	Close() error
}

// notifier implements the subscription half of Store, shared by the
// SQLite and in-memory implementations.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	keys map[string]bool // nil means all keys
	ch   chan Change
}

func (n *notifier) Subscribe(keys ...string) (<-chan Change, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]*subscriber)
	}
	sub := &subscriber{ch: make(chan Change, 16)}
	if len(keys) > 0 {
		sub.keys = make(map[string]bool, len(keys))
		for _, k := range keys {
			sub.keys[k] = true
		}
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = sub

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if s, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

func (n *notifier) publish(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		if sub.keys != nil && !sub.keys[c.Key] {
			continue
		}
		select {
		case sub.ch <- c:
		default:
		}
	}
}

func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, sub := range n.subs {
		delete(n.subs, id)
		close(sub.ch)
	}
}
