package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	PollsTotal      prometheus.Counter
	PollErrorsTotal prometheus.Counter
	RateLimitsTotal prometheus.Counter
	BlockHeight     prometheus.Gauge
	Tps             prometheus.Gauge
	Connected       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamer_polls_total",
			Help: "Completed poll cycles.",
		}),
		PollErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamer_poll_errors_total",
			Help: "Poll cycles that ended in a fetch error.",
		}),
		RateLimitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamer_rate_limits_total",
			Help: "Poll cycles rejected by the upstream rate limiter.",
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamer_block_height",
			Help: "Newest block height in the ledger.",
		}),
		Tps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamer_tps",
			Help: "Transactions per second over the stats window.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamer_connected",
			Help: "1 while the upstream connection is considered healthy.",
		}),
	}

	prometheus.MustRegister(
		m.PollsTotal,
		m.PollErrorsTotal,
		m.RateLimitsTotal,
		m.BlockHeight,
		m.Tps,
		m.Connected,
	)

	return m
}
