package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orthotracker/internal/ports"
)

// Collector owns a private registry so tests and several app instances never
// collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	proceduresLogged     *prometheus.CounterVec
	procedureRevenue     prometheus.Histogram
	commissionAmount     prometheus.Histogram
	commissionRecomputed prometheus.Counter
	offlineQueueDepth    prometheus.Gauge
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

var _ ports.MetricsRecorder = (*Collector)(nil)

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	moneyBuckets := []float64{1_000, 5_000, 10_000, 50_000, 100_000, 250_000, 500_000, 1_000_000}

	return &Collector{
		registry: registry,
		proceduresLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orthotracker_procedures_logged_total",
			Help: "Procedures persisted, by source (online or offline sync).",
		}, []string{"source"}),
		procedureRevenue: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "orthotracker_procedure_revenue_ksh",
			Help:    "Revenue of logged procedures in KSh.",
			Buckets: moneyBuckets,
		}),
		commissionAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "orthotracker_commission_amount_ksh",
			Help:    "Commission computed for logged procedures in KSh.",
			Buckets: moneyBuckets,
		}),
		commissionRecomputed: factory.NewCounter(prometheus.CounterOpts{
			Name: "orthotracker_commissions_recomputed_total",
			Help: "Commissions overwritten by explicit recompute.",
		}),
		offlineQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orthotracker_offline_queue_depth",
			Help: "Entries waiting in the offline queue after the last queue operation.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orthotracker_http_requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orthotracker_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (c *Collector) ProcedureLogged(source string, revenue float64, commission float64) {
	c.proceduresLogged.WithLabelValues(source).Inc()
	c.procedureRevenue.Observe(revenue)
	c.commissionAmount.Observe(commission)
}

func (c *Collector) CommissionRecomputed(count int) {
	if count > 0 {
		c.commissionRecomputed.Add(float64(count))
	}
}

func (c *Collector) OfflineQueueDepth(depth int) {
	c.offlineQueueDepth.Set(float64(depth))
}

// ObserveHTTP records one finished request.
func (c *Collector) ObserveHTTP(route string, method string, status string, seconds float64) {
	c.httpRequests.WithLabelValues(route, method, status).Inc()
	c.httpDuration.WithLabelValues(route).Observe(seconds)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
