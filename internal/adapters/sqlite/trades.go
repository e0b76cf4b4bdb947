package sqlite

import (
	"context"
	"fmt"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"

	"github.com/shopspring/decimal"
)

// --- TradeLog Implementation ---

// SaveTrades inserts trades, skipping position ids already in the log.
func (r *Repository) SaveTrades(ctx context.Context, trades []domain.ClosedTrade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	const query = `
	INSERT OR IGNORE INTO trade_history (position_id, account, symbol, side, volume, open_price,
	                                     close_price, open_time, close_time, trading_day, profit, comment)
	VALUES (:position_id, :account, :symbol, :side, :volume, :open_price,
	        :close_price, :open_time, :close_time, :trading_day, :profit, :comment)`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin trade log transaction: %w: %w", ports.ErrStorageFailure, err)
	}
	defer tx.Rollback() //nolint:errcheck

	inserted := 0
	for _, t := range trades {
		t.OpenTime = t.OpenTime.UTC()
		t.CloseTime = t.CloseTime.UTC()
		res, err := tx.NamedExecContext(ctx, query, t)
		if err != nil {
			return 0, fmt.Errorf("failed to insert trade %s: %w: %w", t.PositionID, ports.ErrStorageFailure, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected for trade %s: %w: %w", t.PositionID, ports.ErrStorageFailure, err)
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit trade log: %w: %w", ports.ErrStorageFailure, err)
	}
	r.logger.Debug(ctx, "Trades saved", map[string]interface{}{"received": len(trades), "inserted": inserted})
	return inserted, nil
}

// RealizedProfit sums the profit of account's trades on day. No rows sums to zero.
func (r *Repository) RealizedProfit(ctx context.Context, account string, day domain.TradingDay) (decimal.Decimal, error) {
	const query = `SELECT profit FROM trade_history WHERE account = ? AND trading_day = ?`
	var profits []decimal.Decimal
	if err := r.db.SelectContext(ctx, &profits, query, account, day); err != nil {
		return decimal.Zero, fmt.Errorf("failed to query realized profit for %s: %w: %w", day, ports.ErrStorageFailure, err)
	}
	total := decimal.Zero
	for _, p := range profits {
		total = total.Add(p)
	}
	return total, nil
}

// TradesSince lists account's trades closed at or after since, oldest first.
func (r *Repository) TradesSince(ctx context.Context, account string, since time.Time) ([]domain.ClosedTrade, error) {
	const query = `
	SELECT position_id, account, symbol, side, volume, open_price, close_price,
	       open_time, close_time, trading_day, profit, comment
	FROM trade_history
	WHERE account = ? AND close_time >= ?
	ORDER BY close_time ASC`
	trades := make([]domain.ClosedTrade, 0)
	if err := r.db.SelectContext(ctx, &trades, query, account, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to query trades since %s: %w: %w", since.Format(time.RFC3339), ports.ErrStorageFailure, err)
	}
	return trades, nil
}
