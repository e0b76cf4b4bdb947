package statistics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"mt5Assistant/internal/domain"
)

// Performance summarises a set of closed trades in account currency.
type Performance struct {
	TotalTrades          int             `json:"total_trades"`
	WinningTrades        int             `json:"winning_trades"`
	LosingTrades         int             `json:"losing_trades"`
	WinRate              float64         `json:"win_rate"`
	NetProfit            decimal.Decimal `json:"net_profit"`
	GrossProfit          decimal.Decimal `json:"gross_profit"`
	GrossLoss            decimal.Decimal `json:"gross_loss"`
	ProfitFactor         decimal.Decimal `json:"profit_factor"`
	AverageWin           decimal.Decimal `json:"average_win"`
	AverageLoss          decimal.Decimal `json:"average_loss"`
	Expectancy           decimal.Decimal `json:"expectancy"`
	MaxDrawdown          decimal.Decimal `json:"max_drawdown"`
	MaxConsecutiveWins   int             `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int             `json:"max_consecutive_losses"`
	AverageTradeDuration time.Duration   `json:"average_trade_duration"`
	MonthlyProfit        []PeriodProfit  `json:"monthly_profit"`
}

// PeriodProfit is the net profit booked in one calendar bucket.
type PeriodProfit struct {
	Period string          `json:"period"`
	Profit decimal.Decimal `json:"profit"`
}

// WinRates is the share of profitable days, weeks and months.
type WinRates struct {
	Day   float64 `json:"day_win_rate"`
	Week  float64 `json:"week_win_rate"`
	Month float64 `json:"month_win_rate"`
}

// Report bundles everything the statistics endpoint returns.
type Report struct {
	Performance Performance `json:"performance"`
	WinRates    WinRates    `json:"win_rates"`
}

// Analyze builds a Report from trades; the input slice is not modified.
func Analyze(trades []domain.ClosedTrade, cal domain.Calendar) Report {
	return Report{
		Performance: AnalyzePerformance(trades),
		WinRates:    WinRateStatistics(trades, cal),
	}
}

// AnalyzePerformance walks trades in close-time order and accumulates the summary.
// A trade with zero or negative profit counts as a loss.
func AnalyzePerformance(trades []domain.ClosedTrade) Performance {
	perf := Performance{MonthlyProfit: []PeriodProfit{}}
	if len(trades) == 0 {
		return perf
	}

	ordered := make([]domain.ClosedTrade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CloseTime.Before(ordered[j].CloseTime)
	})

	var equity, peak decimal.Decimal
	var wins, losses int
	var totalDuration time.Duration
	monthly := make(map[string]decimal.Decimal)

	for _, trade := range ordered {
		perf.TotalTrades++
		if trade.Profit.IsPositive() {
			perf.WinningTrades++
			perf.GrossProfit = perf.GrossProfit.Add(trade.Profit)
			wins++
			losses = 0
		} else {
			perf.LosingTrades++
			perf.GrossLoss = perf.GrossLoss.Add(trade.Profit)
			losses++
			wins = 0
		}
		if wins > perf.MaxConsecutiveWins {
			perf.MaxConsecutiveWins = wins
		}
		if losses > perf.MaxConsecutiveLosses {
			perf.MaxConsecutiveLosses = losses
		}

		equity = equity.Add(trade.Profit)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(perf.MaxDrawdown) {
			perf.MaxDrawdown = dd
		}

		month := trade.CloseTime.Format("2006-01")
		monthly[month] = monthly[month].Add(trade.Profit)

		if !trade.OpenTime.IsZero() && trade.CloseTime.After(trade.OpenTime) {
			totalDuration += trade.CloseTime.Sub(trade.OpenTime)
		}
	}

	perf.NetProfit = equity
	perf.WinRate = float64(perf.WinningTrades) / float64(perf.TotalTrades)
	perf.Expectancy = equity.Div(decimal.NewFromInt(int64(perf.TotalTrades)))
	perf.AverageTradeDuration = totalDuration / time.Duration(perf.TotalTrades)
	if perf.WinningTrades > 0 {
		perf.AverageWin = perf.GrossProfit.Div(decimal.NewFromInt(int64(perf.WinningTrades)))
	}
	if perf.LosingTrades > 0 {
		perf.AverageLoss = perf.GrossLoss.Div(decimal.NewFromInt(int64(perf.LosingTrades)))
	}
	if perf.GrossLoss.IsNegative() {
		perf.ProfitFactor = perf.GrossProfit.Div(perf.GrossLoss.Neg()).Round(4)
	}

	for month, profit := range monthly {
		perf.MonthlyProfit = append(perf.MonthlyProfit, PeriodProfit{Period: month, Profit: profit})
	}
	sort.Slice(perf.MonthlyProfit, func(i, j int) bool {
		return perf.MonthlyProfit[i].Period < perf.MonthlyProfit[j].Period
	})
	return perf
}

// WinRateStatistics groups trades by trading day, ISO week and month and reports the
// share of buckets whose net profit is strictly positive. Empty input yields zeros.
func WinRateStatistics(trades []domain.ClosedTrade, cal domain.Calendar) WinRates {
	days := make(map[string]decimal.Decimal)
	weeks := make(map[string]decimal.Decimal)
	months := make(map[string]decimal.Decimal)

	for _, trade := range trades {
		day := trade.TradingDay
		if day == "" {
			day = cal.TradingDay(trade.CloseTime)
		}
		date := day.Time()
		year, week := date.ISOWeek()
		weekKey := fmt.Sprintf("%d-W%02d", year, week)
		monthKey := date.Format("2006-01")

		days[day.String()] = days[day.String()].Add(trade.Profit)
		weeks[weekKey] = weeks[weekKey].Add(trade.Profit)
		months[monthKey] = months[monthKey].Add(trade.Profit)
	}

	return WinRates{
		Day:   winShare(days),
		Week:  winShare(weeks),
		Month: winShare(months),
	}
}

func winShare(buckets map[string]decimal.Decimal) float64 {
	if len(buckets) == 0 {
		return 0
	}
	won := 0
	for _, profit := range buckets {
		if profit.IsPositive() {
			won++
		}
	}
	return float64(won) / float64(len(buckets))
}
