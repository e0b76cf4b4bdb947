package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"
)

// --- CounterRepository Implementation ---

// EnsureDay creates a zero counter for day if none exists.
func (r *Repository) EnsureDay(ctx context.Context, day domain.TradingDay) error {
	const query = `INSERT OR IGNORE INTO trade_count (date, count) VALUES (?, 0)`
	if _, err := r.db.ExecContext(ctx, query, day); err != nil {
		return fmt.Errorf("failed to ensure trade count row for %s: %w: %w", day, ports.ErrStorageFailure, err)
	}
	return nil
}

// Count returns the counter for day, 0 when the row does not exist.
func (r *Repository) Count(ctx context.Context, day domain.TradingDay) (int, error) {
	const query = `SELECT count FROM trade_count WHERE date = ?`
	var count int
	err := r.db.GetContext(ctx, &count, query, day)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read trade count for %s: %w: %w", day, ports.ErrStorageFailure, err)
	}
	return count, nil
}

// Increment adds one to the counter for day, inserting the row first if needed.
func (r *Repository) Increment(ctx context.Context, day domain.TradingDay) error {
	const query = `
	INSERT INTO trade_count (date, count) VALUES (?, 1)
	ON CONFLICT(date) DO UPDATE SET count = count + 1`
	if _, err := r.db.ExecContext(ctx, query, day); err != nil {
		return fmt.Errorf("failed to increment trade count for %s: %w: %w", day, ports.ErrStorageFailure, err)
	}
	r.logger.Debug(ctx, "Trade count incremented", map[string]interface{}{"date": day})
	return nil
}

// History returns up to n counters, most recent first.
func (r *Repository) History(ctx context.Context, n int) ([]domain.DailyCounter, error) {
	const query = `SELECT date, count FROM trade_count ORDER BY date DESC LIMIT ?`
	counters := make([]domain.DailyCounter, 0, n)
	if err := r.db.SelectContext(ctx, &counters, query, n); err != nil {
		return nil, fmt.Errorf("failed to query trade count history: %w: %w", ports.ErrStorageFailure, err)
	}
	return counters, nil
}
