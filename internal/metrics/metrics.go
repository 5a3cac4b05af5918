// Package metrics exposes the Prometheus collectors the engine updates
// during operation:
//   - guard_sweeps_total: monitoring sweeps run
//   - guard_positions_checked_total: positions evaluated across sweeps
//   - guard_exits_total{reason,side,outcome}: exit attempts by trigger and outcome
//   - guard_orphans_cleaned_total: orphaned level records reconciled away
//   - guard_trades_total{status}: entry signals by outcome
//   - guard_tracked_symbols: symbols with live stored levels (gauge)
//   - guard_account_equity_usd: last account equity snapshot (gauge)
//
// Registered in init() and served at /metrics by the web server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	sweeps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guard_sweeps_total",
		Help: "Monitoring sweeps run",
	})

	positionsChecked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guard_positions_checked_total",
		Help: "Broker positions evaluated across sweeps",
	})

	exits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_exits_total",
		Help: "Exit attempts by trigger reason, position side and outcome",
	}, []string{"reason", "side", "outcome"})

	orphansCleaned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guard_orphans_cleaned_total",
		Help: "Orphaned level records removed by reconciliation",
	})

	trades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_trades_total",
		Help: "Entry signals by outcome (executed|skipped|failed)",
	}, []string{"status"})

	trackedSymbols = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guard_tracked_symbols",
		Help: "Symbols with live stored exit levels",
	})

	accountEquity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guard_account_equity_usd",
		Help: "Account equity in USD at last read",
	})
)

func init() {
	prometheus.MustRegister(
		sweeps,
		positionsChecked,
		exits,
		orphansCleaned,
		trades,
		trackedSymbols,
		accountEquity,
	)
}

// ObserveSweep records one completed monitoring sweep.
func ObserveSweep(checked, cleaned int) {
	sweeps.Inc()
	positionsChecked.Add(float64(checked))
	orphansCleaned.Add(float64(cleaned))
}

// IncExit records one exit attempt.
func IncExit(reason, side string, ok bool) {
	outcome := "executed"
	if !ok {
		outcome = "failed"
	}
	exits.WithLabelValues(reason, side, outcome).Inc()
}

// IncTrade records one entry signal outcome.
func IncTrade(status string) {
	trades.WithLabelValues(status).Inc()
}

// SetTrackedSymbols updates the stored-levels gauge.
func SetTrackedSymbols(n int) {
	trackedSymbols.Set(float64(n))
}

// SetAccountEquity updates the equity gauge.
func SetAccountEquity(equity float64) {
	accountEquity.Set(equity)
}
