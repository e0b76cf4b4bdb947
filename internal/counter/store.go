// Package counter tracks how many batches were completed per trading day.
package counter

import (
	"context"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"
)

// Store is the degrading front of the trade counter. Read failures collapse to 0 and write
// failures to false; callers must treat those values as unknown.
type Store struct {
	repo     ports.CounterRepository
	calendar domain.Calendar
	logger   ports.Logger
	now      func() time.Time
}

// NewStore creates a Store over repo using calendar for the trading-day boundary.
func NewStore(repo ports.CounterRepository, calendar domain.Calendar, logger ports.Logger) *Store {
	return &Store{repo: repo, calendar: calendar, logger: logger, now: time.Now}
}

// Today returns the current trading day.
func (s *Store) Today() domain.TradingDay {
	return s.calendar.TradingDay(s.now())
}

// TodayCount returns today's count, creating the zero row if absent.
func (s *Store) TodayCount(ctx context.Context) (int, error) {
	day := s.Today()
	if err := s.repo.EnsureDay(ctx, day); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, day)
}

// GetTodayCount is TodayCount with storage errors logged and reported as 0.
func (s *Store) GetTodayCount(ctx context.Context) int {
	count, err := s.TodayCount(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "counter: failed to read today's trade count")
		return 0
	}
	return count
}

// Increment adds one to today's count and reports whether the write succeeded.
func (s *Store) Increment(ctx context.Context) bool {
	day := s.Today()
	if err := s.repo.Increment(ctx, day); err != nil {
		s.logger.Error(ctx, err, "counter: failed to increment trade count", map[string]interface{}{"date": day})
		return false
	}
	return true
}

// GetHistory returns up to nDays counters, most recent first. Errors yield an empty slice.
func (s *Store) GetHistory(ctx context.Context, nDays int) []domain.DailyCounter {
	if nDays <= 0 {
		return []domain.DailyCounter{}
	}
	history, err := s.repo.History(ctx, nDays)
	if err != nil {
		s.logger.Error(ctx, err, "counter: failed to read trade count history")
		return []domain.DailyCounter{}
	}
	return history
}
