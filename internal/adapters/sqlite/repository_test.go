package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mt5Assistant/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mt5-assistant-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_Counter(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	day := domain.TradingDay("2024-05-02")

	count, err := repo.Count(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, repo.EnsureDay(ctx, day))
	require.NoError(t, repo.EnsureDay(ctx, day))
	count, err = repo.Count(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Increment(ctx, day))
	}
	count, err = repo.Count(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Increment without EnsureDay creates the row.
	other := domain.TradingDay("2024-05-03")
	require.NoError(t, repo.Increment(ctx, other))
	count, err = repo.Count(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_CounterHistory(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i, day := range []domain.TradingDay{"2024-05-01", "2024-05-03", "2024-05-02"} {
		for j := 0; j <= i; j++ {
			require.NoError(t, repo.Increment(ctx, day))
		}
	}

	history, err := repo.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.DailyCounter{Date: "2024-05-03", Count: 2}, history[0])
	assert.Equal(t, domain.DailyCounter{Date: "2024-05-02", Count: 3}, history[1])
}

func newTrade(id string, account string, day domain.TradingDay, closeTime time.Time, profit string) domain.ClosedTrade {
	return domain.ClosedTrade{
		PositionID: id,
		Account:    account,
		Symbol:     "XAUUSD",
		Side:       domain.Buy,
		Volume:     decimal.RequireFromString("0.10"),
		OpenPrice:  decimal.RequireFromString("2000.10"),
		ClosePrice: decimal.RequireFromString("1995.50"),
		OpenTime:   closeTime.Add(-time.Hour),
		CloseTime:  closeTime,
		TradingDay: day,
		Profit:     decimal.RequireFromString(profit),
	}
}

func TestRepository_TradeLog(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	trades := []domain.ClosedTrade{
		newTrade("1001", "5550001", "2024-05-02", base, "-40.25"),
		newTrade("1002", "5550001", "2024-05-02", base.Add(time.Hour), "-19.75"),
		newTrade("1003", "5550001", "2024-05-01", base.Add(-24*time.Hour), "100"),
		newTrade("1004", "other", "2024-05-02", base, "-500"),
	}
	inserted, err := repo.SaveTrades(ctx, trades)
	require.NoError(t, err)
	assert.Equal(t, 4, inserted)

	// Duplicates by position id are ignored.
	inserted, err = repo.SaveTrades(ctx, trades[:2])
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	realized, err := repo.RealizedProfit(ctx, "5550001", "2024-05-02")
	require.NoError(t, err)
	assert.True(t, realized.Equal(decimal.RequireFromString("-60")), "got %s", realized)

	empty, err := repo.RealizedProfit(ctx, "5550001", "2024-04-01")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	since, err := repo.TradesSince(ctx, "5550001", base)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "1001", since[0].PositionID)
	assert.Equal(t, "1002", since[1].PositionID)
	assert.True(t, since[0].Profit.Equal(decimal.RequireFromString("-40.25")))
	assert.True(t, since[0].CloseTime.Equal(base))
	assert.Equal(t, domain.Buy, since[0].Side)
}

func TestRepository_RiskEvents(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordRiskEvent(ctx, domain.RiskEvent{
			ID:      fmt.Sprintf("evt-%d", i),
			Time:    base.Add(time.Duration(i) * time.Minute),
			Type:    domain.RiskEventDailyLossLimit,
			Details: fmt.Sprintf("total=-%d", 100+i),
		}))
	}

	events, err := repo.RecentRiskEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-2", events[0].ID)
	assert.Equal(t, "evt-1", events[1].ID)
	assert.Equal(t, domain.RiskEventDailyLossLimit, events[0].Type)
	assert.True(t, events[0].Time.Equal(base.Add(2*time.Minute)))

	// Duplicate event ids are rejected.
	err = repo.RecordRiskEvent(ctx, domain.RiskEvent{ID: "evt-0", Time: base, Type: domain.RiskEventCloseAll})
	assert.Error(t, err)
}
