package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"FundWatch/internal/ledger"
	"FundWatch/internal/model"
	"FundWatch/internal/trading"
	"FundWatch/internal/valuation"
	"FundWatch/internal/watchlist"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// watchRow is one watchlist entry joined with its position and valuation.
type watchRow struct {
	Quote     model.QuoteSnapshot  `json:"quote"`
	Position  *model.Position      `json:"position,omitempty"`
	Valuation *valuation.Valuation `json:"valuation,omitempty"`
	Favorite  bool                 `json:"favorite"`
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.watch.Quotes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	positions, err := s.ledger.Positions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	favorites, err := s.watch.Favorites()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	favSet := make(map[string]bool, len(favorites))
	for _, c := range favorites {
		favSet[c] = true
	}

	now := time.Now()
	rows := make([]watchRow, 0, len(quotes))
	for _, q := range quotes {
		row := watchRow{Quote: q, Favorite: favSet[q.Code]}
		if pos, ok := positions[q.Code]; ok {
			p := pos
			row.Position = &p
			row.Valuation = s.engine.Valuate(&q, &p, now)
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Codes) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("codes is required"))
		return
	}

	outcomes, err := s.watch.Add(r.Context(), req.Codes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Advisory messaging only: failures are itemized, never a blocking
	// failure of the whole request.
	failed := 0
	for _, o := range outcomes {
		if o.Status == watchlist.AddFailed {
			failed++
		}
	}
	resp := map[string]any{"results": outcomes}
	if failed > 0 {
		resp["message"] = fmt.Sprintf("%d items could not be added", failed)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.watch.Remove(code); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": code})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	codes, err := s.watch.Codes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	result, err := s.pipeline.Refresh(r.Context(), codes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.watch.Quotes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	positions, err := s.ledger.Positions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	now := time.Now()
	totalValue := decimal.Zero
	totalProfit := decimal.Zero
	todayProfit := decimal.Zero
	todayResolved := true
	held := 0
	for _, q := range quotes {
		pos, ok := positions[q.Code]
		if !ok {
			continue
		}
		v := s.engine.Valuate(&q, &pos, now)
		if v == nil {
			continue
		}
		held++
		totalValue = totalValue.Add(v.MarketValue)
		totalProfit = totalProfit.Add(v.TotalProfit)
		if v.TodayProfit != nil {
			todayProfit = todayProfit.Add(*v.TodayProfit)
		} else {
			todayResolved = false
		}
	}

	mv, _ := totalValue.Float64()
	tp, _ := totalProfit.Float64()
	resp := map[string]any{
		"instruments":          len(quotes),
		"held":                 held,
		"total_market_value":   totalValue,
		"total_profit":         totalProfit,
		"display_market_value": humanize.CommafWithDigits(mv, 2),
		"display_total_profit": humanize.CommafWithDigits(tp, 2),
	}
	if todayResolved {
		resp["today_profit"] = todayProfit
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.ledger.Positions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleClearPosition(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.ledger.Clear(code); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cleared": code})
}

func (s *Server) handleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req trading.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.trades.Submit(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ledger.ErrInvalidTradeInput) || errors.Is(err, ledger.ErrInsufficientShares) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAvailableShares(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	available, err := s.trades.AvailableShares(code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": code, "available_shares": available})
}

func (s *Server) handleGetPending(w http.ResponseWriter, r *http.Request) {
	intents, err := s.queue.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if intents == nil {
		intents = []model.PendingIntent{}
	}
	writeJSON(w, http.StatusOK, intents)
}

func (s *Server) handleGetInterval(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"interval_seconds": int(s.scheduler.Interval().Seconds()),
	})
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntervalSeconds int `json:"interval_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.IntervalSeconds <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("interval_seconds must be positive"))
		return
	}
	if err := s.scheduler.SetInterval(req.IntervalSeconds); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interval_seconds": req.IntervalSeconds})
}

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.watch.Favorites()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if favorites == nil {
		favorites = []string{}
	}
	writeJSON(w, http.StatusOK, favorites)
}

func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.watch.SetFavorite(code, true); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"favorite": code})
}

func (s *Server) handleUnsetFavorite(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.watch.SetFavorite(code, false); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"unfavorite": code})
}

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.watch.Groups()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleSetGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.watch.SetGroup(name, req.Codes); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": name, "codes": req.Codes})
}

func (s *Server) handleRemoveGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.watch.RemoveGroup(name); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": name})
}
