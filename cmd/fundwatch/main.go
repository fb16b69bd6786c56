package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FundWatch/internal/api"
	"FundWatch/internal/config"
	"FundWatch/internal/ledger"
	"FundWatch/internal/pending"
	"FundWatch/internal/provider"
	"FundWatch/internal/scheduler"
	"FundWatch/internal/store"
	"FundWatch/internal/syncer"
	"FundWatch/internal/trading"
	"FundWatch/internal/valuation"
	"FundWatch/internal/watchlist"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] FundWatch starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Market session calendar
	session, err := valuation.NewSession(cfg.Market.Timezone, cfg.Market.EstimateStart, cfg.Market.OrderCutoff)
	if err != nil {
		log.Fatalf("[FATAL] market session: %v", err)
	}

	// Init store
	var st store.Store
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using in-memory: %v", err)
			st = store.NewMemoryStore()
		} else {
			st = ss
		}
	} else {
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// Init quote provider
	timeout := time.Duration(cfg.DataSource.TimeoutSeconds) * time.Second
	em := provider.NewEastmoneyProvider(cfg.DataSource.QuoteBaseURL, cfg.DataSource.HistoryBaseURL, cfg.Proxy, timeout, session.Loc)
	log.Printf("[INFO] data source: %s", em.Name())

	// Settlement prices: stored snapshots first, remote history second.
	lookup := provider.ChainLookup{syncer.SnapshotLookup{Store: st}, em}

	// Core engines
	book := ledger.New(st, cfg.Trading.StrictSell)
	queue := pending.New(st, book, lookup, session)
	if cfg.Trading.PendingExpiryDays > 0 {
		queue.Expiry = time.Duration(cfg.Trading.PendingExpiryDays) * 24 * time.Hour
	}
	trades := trading.NewService(book, queue, lookup, session)
	engine := valuation.NewEngine(session)
	pipeline := syncer.NewPipeline(em, st, queue, timeout)
	watch := watchlist.NewManager(st, em, book, queue)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.New(ctx, pipeline, watch, st)
	if err := sched.Start(time.Duration(cfg.Refresh.IntervalSeconds) * time.Second); err != nil {
		log.Fatalf("[FATAL] start scheduler: %v", err)
	}
	defer sched.Stop()

	// HTTP API
	server := api.NewServer(watch, book, queue, trades, engine, pipeline, sched)
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: server.Router()}
	go func() {
		log.Printf("[INFO] api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] api server: %v", err)
		}
	}()

	// Optional: refresh immediately on start
	if cfg.Refresh.RunOnStart {
		log.Println("[INFO] run_on_start enabled, refreshing now")
		go sched.RunNow()
	}

	log.Println("[INFO] FundWatch is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] api shutdown: %v", err)
	}
	log.Println("[INFO] FundWatch stopped")
}
