// Package metrics instruments the dispatcher with Prometheus counters and
// a latency histogram, grounded on cs3org-reva's httpserver metrics
// interceptor (internal/http/interceptors/metrics).
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Requests counts dispatched requests by WebDAV method and outcome status.
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webdav_requests_total",
		Help: "Count of dispatched WebDAV requests by method and status.",
	},
	[]string{"method", "status"},
)

// Duration observes request handling latency by method.
var Duration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "webdav_request_duration_seconds",
		Help:    "Latency of dispatched WebDAV requests by method.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	},
	[]string{"method"},
)

// LocksHeld is the gauge for the number of outstanding locks. It is
// registered, but nothing in this module updates it: it stays at 0 unless
// the host sets it.
var LocksHeld = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "webdav_locks_held",
	Help: "Current number of outstanding WebDAV locks.",
})

// Collectors lists every collector this package registers, for callers
// that build their own prometheus.Registry rather than using the default
// one (§ cmd/davd wiring).
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{Requests, Duration, LocksHeld}
}

func init() {
	prometheus.MustRegister(Collectors()...)
}

// Observe records one completed dispatch: method, resulting HTTP status,
// and how long it took.
func Observe(method string, status int, start time.Time) {
	Requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	Duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
