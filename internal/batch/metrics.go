package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records batch progress with Prometheus collectors registered on a
// caller-supplied registry. A nil *Metrics records nothing.
type Metrics struct {
	evaluated *prometheus.CounterVec
	duration  prometheus.Histogram
	cagr      *prometheus.GaugeVec
	sharpe    *prometheus.GaugeVec
	alpha     *prometheus.GaugeVec
}

// NewMetrics registers the batch collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		evaluated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claimsignal_instruments_total",
				Help: "Instruments evaluated, by outcome",
			},
			[]string{"outcome"},
		),
		duration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "claimsignal_instrument_duration_seconds",
				Help:    "Time to fetch and backtest one instrument",
				Buckets: prometheus.DefBuckets,
			},
		),
		cagr: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "claimsignal_strategy_cagr",
				Help: "Strategy CAGR of the last run",
			},
			[]string{"symbol"},
		),
		sharpe: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "claimsignal_strategy_sharpe",
				Help: "Annualized strategy Sharpe ratio of the last run",
			},
			[]string{"symbol"},
		),
		alpha: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "claimsignal_strategy_alpha",
				Help: "Strategy CAGR minus benchmark CAGR of the last run",
			},
			[]string{"symbol"},
		),
	}
}

func (m *Metrics) observe(out Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
	if out.Skip != nil {
		m.evaluated.WithLabelValues(string(out.Skip.Kind)).Inc()
		return
	}
	m.evaluated.WithLabelValues("ok").Inc()
	m.cagr.WithLabelValues(out.Symbol).Set(out.Result.CAGR)
	m.sharpe.WithLabelValues(out.Symbol).Set(out.Result.Sharpe)
	m.alpha.WithLabelValues(out.Symbol).Set(out.Result.Alpha)
}
