package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"FundWatch/internal/config"
	"FundWatch/internal/store"
	"FundWatch/internal/syncer"
	"FundWatch/internal/watchlist"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the interval quote refresh. The interval is a user
// setting persisted in the store; changes take effect live via the
// store's change notification, without a restart.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	pipeline *syncer.Pipeline
	watch    *watchlist.Manager
	store    store.Store
	ctx      context.Context
	entry    cron.EntryID
	interval time.Duration
}

func New(ctx context.Context, pipeline *syncer.Pipeline, watch *watchlist.Manager, st store.Store) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		pipeline: pipeline,
		watch:    watch,
		store:    st,
		ctx:      ctx,
	}
}

// Start registers the refresh task at the persisted interval (falling
// back to the given default) and begins watching for interval changes.
func (s *Scheduler) Start(defaultInterval time.Duration) error {
	interval := defaultInterval
	var seconds int
	if found, err := s.store.Get(store.KeyRefreshInterval, &seconds); err != nil {
		log.Printf("[WARN] read refresh interval: %v", err)
	} else if found {
		interval = clampInterval(seconds)
	}

	if err := s.reschedule(interval); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[INFO] scheduler started, refresh every %s", interval)

	go s.watchIntervalChanges()
	return nil
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// SetInterval persists a new refresh interval. Rescheduling happens via
// the store notification so every open view converges on the same value.
func (s *Scheduler) SetInterval(seconds int) error {
	seconds = int(clampInterval(seconds) / time.Second)
	return s.store.Set(store.KeyRefreshInterval, seconds)
}

// Interval returns the refresh interval currently in effect.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// RunNow triggers a refresh immediately (manual trigger / RUN_ON_START).
// Manual and interval triggers share the same entry point and the same
// in-flight coalescing.
func (s *Scheduler) RunNow() {
	s.refreshTask()
}

func (s *Scheduler) reschedule(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	spec := fmt.Sprintf("@every %s", interval)
	entry, err := s.cron.AddFunc(spec, s.refreshTask)
	if err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	s.entry = entry
	s.interval = interval
	return nil
}

func (s *Scheduler) watchIntervalChanges() {
	changes, cancel := s.store.Subscribe(store.KeyRefreshInterval)
	defer cancel()
	for {
		select {
		case <-s.ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if c.Removed {
				continue
			}
			var seconds int
			if found, err := s.store.Get(store.KeyRefreshInterval, &seconds); err != nil || !found {
				continue
			}
			interval := clampInterval(seconds)
			if interval == s.Interval() {
				continue
			}
			if err := s.reschedule(interval); err != nil {
				log.Printf("[ERROR] reschedule refresh: %v", err)
				continue
			}
			log.Printf("[INFO] refresh interval changed to %s", interval)
		}
	}
}

func (s *Scheduler) refreshTask() {
	codes, err := s.watch.Codes()
	if err != nil {
		log.Printf("[ERROR] load watchlist codes: %v", err)
		return
	}
	if len(codes) == 0 {
		return
	}
	result, err := s.pipeline.Refresh(s.ctx, codes)
	if err != nil {
		log.Printf("[ERROR] refresh: %v", err)
		return
	}
	if result.Skipped {
		return
	}
	log.Printf("[INFO] refresh complete: %d updated, %d failed, %d pending resolved in %s",
		len(result.Updated), len(result.Failed), result.Resolved, result.Elapsed.Round(time.Millisecond))
}

func clampInterval(seconds int) time.Duration {
	if seconds < config.MinRefreshIntervalSeconds {
		seconds = config.MinRefreshIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}
