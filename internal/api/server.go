package api

import (
	"encoding/json"
	"log"
	"net/http"

	"FundWatch/internal/ledger"
	"FundWatch/internal/pending"
	"FundWatch/internal/scheduler"
	"FundWatch/internal/syncer"
	"FundWatch/internal/trading"
	"FundWatch/internal/valuation"
	"FundWatch/internal/watchlist"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the watchlist, ledger and trading operations over a
// small JSON API. It is the interface boundary the web UI talks to.
type Server struct {
	watch     *watchlist.Manager
	ledger    *ledger.Ledger
	queue     *pending.Queue
	trades    *trading.Service
	engine    *valuation.Engine
	pipeline  *syncer.Pipeline
	scheduler *scheduler.Scheduler
}

func NewServer(
	watch *watchlist.Manager,
	l *ledger.Ledger,
	q *pending.Queue,
	trades *trading.Service,
	engine *valuation.Engine,
	pipeline *syncer.Pipeline,
	sched *scheduler.Scheduler,
) *Server {
	return &Server{
		watch:     watch,
		ledger:    l,
		queue:     q,
		trades:    trades,
		engine:    engine,
		pipeline:  pipeline,
		scheduler: sched,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/watchlist", s.handleGetWatchlist)
		r.Post("/watchlist", s.handleAddWatchlist)
		r.Delete("/watchlist/{code}", s.handleRemoveWatchlist)

		r.Post("/refresh", s.handleRefresh)
		r.Get("/summary", s.handleSummary)

		r.Get("/positions", s.handleGetPositions)
		r.Post("/positions/{code}/clear", s.handleClearPosition)

		r.Post("/trades", s.handleSubmitTrade)
		r.Get("/trades/{code}/available", s.handleAvailableShares)
		r.Get("/pending", s.handleGetPending)

		r.Get("/settings/refresh-interval", s.handleGetInterval)
		r.Put("/settings/refresh-interval", s.handleSetInterval)

		r.Get("/favorites", s.handleGetFavorites)
		r.Put("/favorites/{code}", s.handleSetFavorite)
		r.Delete("/favorites/{code}", s.handleUnsetFavorite)

		r.Get("/groups", s.handleGetGroups)
		r.Put("/groups/{name}", s.handleSetGroup)
		r.Delete("/groups/{name}", s.handleRemoveGroup)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
