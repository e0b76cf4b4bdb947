// Package metrics holds the prometheus collectors of the assistant.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "mt5_assistant"

// Batch result labels.
const (
	BatchComplete = "complete"
	BatchPartial  = "partial"
	BatchRejected = "rejected"
)

// Metrics groups every collector the service updates.
type Metrics struct {
	Batches         *prometheus.CounterVec
	Orders          *prometheus.CounterVec
	RiskBreaches    prometheus.Counter
	TradingDisabled prometheus.Gauge
	DailyPnL        *prometheus.GaugeVec
	OpenPositions   prometheus.Gauge
	PendingOrders   prometheus.Gauge
	TradesSynced    prometheus.Counter
	JobRuns         *prometheus.CounterVec
	JobFailures     *prometheus.CounterVec
}

// New registers the collectors with reg. Use prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch submissions by result.",
		}, []string{"result"}),
		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Batch members by outcome status.",
		}, []string{"status"}),
		RiskBreaches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_breaches_total",
			Help:      "Daily loss limit breaches.",
		}),
		TradingDisabled: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trading_disabled",
			Help:      "1 while the risk session blocks trading.",
		}),
		DailyPnL: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_pnl",
			Help:      "Profit of the current trading day by component.",
		}, []string{"component"}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Open positions reported by the terminal.",
		}),
		PendingOrders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_orders",
			Help:      "Pending orders reported by the terminal.",
		}),
		TradesSynced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_synced_total",
			Help:      "Closed trades added to the trade log.",
		}),
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduler job executions.",
		}, []string{"job"}),
		JobFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_failures_total",
			Help:      "Scheduler job executions that failed or panicked.",
		}, []string{"job"}),
	}
}

// ObservePnL sets the daily PnL gauges.
func (m *Metrics) ObservePnL(realized, unrealized, total decimal.Decimal) {
	m.DailyPnL.WithLabelValues("realized").Set(realized.InexactFloat64())
	m.DailyPnL.WithLabelValues("unrealized").Set(unrealized.InexactFloat64())
	m.DailyPnL.WithLabelValues("total").Set(total.InexactFloat64())
}

// SetTradingDisabled mirrors the risk session state.
func (m *Metrics) SetTradingDisabled(disabled bool) {
	if disabled {
		m.TradingDisabled.Set(1)
		return
	}
	m.TradingDisabled.Set(0)
}
