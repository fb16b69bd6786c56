package valuation

import (
	"fmt"
	"time"
)

// Session describes the market calendar used for settlement and
// estimation decisions. Trading days are Mon-Fri in the market timezone;
// exchange holidays are not modeled.
type Session struct {
	Loc *time.Location
	// Minutes from midnight at which intraday estimation starts and at
	// which the daily order cutoff falls.
	EstimateStartMin int
	OrderCutoffMin   int
}

// NewSession builds a Session from a timezone name and "HH:MM" clock
// strings for the estimation start and the order cutoff.
func NewSession(timezone, estimateStart, orderCutoff string) (*Session, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	start, err := parseClock(estimateStart)
	if err != nil {
		return nil, fmt.Errorf("estimate start: %w", err)
	}
	cutoff, err := parseClock(orderCutoff)
	if err != nil {
		return nil, fmt.Errorf("order cutoff: %w", err)
	}
	return &Session{Loc: loc, EstimateStartMin: start, OrderCutoffMin: cutoff}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DayOf truncates a time to midnight in the market timezone.
func (s *Session) DayOf(t time.Time) time.Time {
	t = t.In(s.Loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.Loc)
}

// SameDay reports whether two times fall on the same market-local date.
func (s *Session) SameDay(a, b time.Time) bool {
	return s.DayOf(a).Equal(s.DayOf(b))
}

// IsTradingDay reports whether t falls on a trading day.
func (s *Session) IsTradingDay(t time.Time) bool {
	switch t.In(s.Loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

func (s *Session) minutes(t time.Time) int {
	t = t.In(s.Loc)
	return t.Hour()*60 + t.Minute()
}

// InEstimationWindow reports whether intraday estimates are being
// produced at time t.
func (s *Session) InEstimationWindow(t time.Time) bool {
	return s.IsTradingDay(t) && s.minutes(t) >= s.EstimateStartMin
}

// AfterCutoff reports whether an order placed at t misses the daily
// cutoff, shifting its settlement to the next trading date.
func (s *Session) AfterCutoff(t time.Time) bool {
	return !s.IsTradingDay(t) || s.minutes(t) >= s.OrderCutoffMin
}

// NextTradingDay returns the first trading day strictly after d.
func (s *Session) NextTradingDay(d time.Time) time.Time {
	d = s.DayOf(d).AddDate(0, 0, 1)
	for !s.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// EffectiveSettlementDate resolves the trading date whose closing price
// settles a trade: the requested date, advanced one trading day when the
// order missed the cutoff, and rolled forward off non-trading days.
func (s *Session) EffectiveSettlementDate(requested time.Time, afterCutoff bool) time.Time {
	d := s.DayOf(requested)
	if afterCutoff {
		d = s.NextTradingDay(d)
	}
	for !s.IsTradingDay(d) {
		d = s.NextTradingDay(d)
	}
	return d
}
