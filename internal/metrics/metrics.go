package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsFused = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_fused_total", Help: "Signals scored by the fusion memory"},
		[]string{"platform"},
	)
	EntryDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "entry_decisions_total", Help: "Entry decisions by outcome and reason"},
		[]string{"decision", "reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "positions_closed_total", Help: "Positions closed by the exit engine"},
		[]string{"reason"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_positions", Help: "Open positions after the latest exit tick"},
	)
	ExitTickSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "exit_tick_seconds", Help: "Duration of exit evaluation ticks", Buckets: prometheus.DefBuckets},
	)
)

func init() {
	prometheus.MustRegister(SignalsFused, EntryDecisions, OrdersTotal, PositionsClosed, OpenPositions, ExitTickSeconds)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{ Addr: addr, Handler: mux }
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
