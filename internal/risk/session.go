package risk

import (
	"sync"
	"time"

	"mt5Assistant/internal/domain"
)

// State is a point-in-time view of the risk session.
type State struct {
	TradingDisabled bool              `json:"trading_disabled"`
	DisabledOn      domain.TradingDay `json:"disabled_on,omitempty"`
	DisabledAt      time.Time         `json:"disabled_at,omitempty"`
	Reason          string            `json:"reason,omitempty"`
}

// Session owns the trading-disabled flag. Within a trading day it only goes from enabled
// to disabled; the first query on a later trading day re-enables it.
type Session struct {
	mu       sync.RWMutex
	calendar domain.Calendar
	state    State
}

// NewSession creates an enabled session.
func NewSession(calendar domain.Calendar) *Session {
	return &Session{calendar: calendar}
}

// Disable blocks trading for the rest of the trading day containing now.
// It returns false if the session was already disabled for that day.
func (s *Session) Disable(now time.Time, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.calendar.TradingDay(now)
	s.rollover(day)
	if s.state.TradingDisabled {
		return false
	}
	s.state = State{TradingDisabled: true, DisabledOn: day, DisabledAt: now, Reason: reason}
	return true
}

// Disabled reports whether trading is blocked at now.
func (s *Session) Disabled(now time.Time) bool {
	return s.State(now).TradingDisabled
}

// State returns the session state at now, applying any day rollover.
func (s *Session) State(now time.Time) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover(s.calendar.TradingDay(now))
	return s.state
}

func (s *Session) rollover(day domain.TradingDay) {
	if s.state.TradingDisabled && s.state.DisabledOn != day {
		s.state = State{}
	}
}
