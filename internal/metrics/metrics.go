// Package metrics records backtest runs as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"optionlab/types"
)

// Registry holds the backtest metrics and implements engine.Observer.
type Registry struct {
	Gatherer prometheus.Gatherer

	Runs        *prometheus.CounterVec
	Trades      *prometheus.CounterVec
	RunDuration prometheus.Histogram
	ReturnPct   *prometheus.GaugeVec
	MaxDrawdown *prometheus.GaugeVec
}

// NewRegistry registers the metrics on a fresh prometheus registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		Gatherer: reg,

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionlab_backtest_runs_total",
				Help: "Total number of finished backtests by terminal status",
			},
			[]string{"status"},
		),

		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionlab_backtest_trades_total",
				Help: "Total number of simulated trades by exit reason",
			},
			[]string{"exit_reason"},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optionlab_backtest_duration_seconds",
				Help:    "Wall-clock duration of a backtest run in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		ReturnPct: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optionlab_backtest_return_percent",
				Help: "Return of the last completed backtest per symbol",
			},
			[]string{"symbol"},
		),

		MaxDrawdown: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optionlab_backtest_max_drawdown_percent",
				Help: "Max drawdown of the last completed backtest per symbol",
			},
			[]string{"symbol"},
		),
	}
	reg.MustRegister(r.Runs, r.Trades, r.RunDuration, r.ReturnPct, r.MaxDrawdown)
	return r
}

func (r *Registry) ObserveRun(result *types.BacktestResult, elapsed time.Duration) {
	r.Runs.WithLabelValues(string(result.Status)).Inc()
	r.RunDuration.Observe(elapsed.Seconds())
	for _, tr := range result.Trades {
		r.Trades.WithLabelValues(string(tr.ExitReason)).Inc()
	}
	if result.Status != types.StatusCompleted {
		return
	}
	r.ReturnPct.WithLabelValues(result.Symbol).Set(result.ReturnPct.InexactFloat64())
	r.MaxDrawdown.WithLabelValues(result.Symbol).Set(result.MaxDrawdownPercent.InexactFloat64())
}

// WriteTextfile dumps the current metrics in the Prometheus text format,
// for node exporter's textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Gatherer)
}
