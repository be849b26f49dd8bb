package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector keeps cheap in-process counters for the admin snapshot and
// mirrors them into a Prometheus registry.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	applyTotal      *prometheus.CounterVec
	applyRecords    prometheus.Histogram
	recalcTotal     *prometheus.CounterVec
	recalcSkipped   prometheus.Counter
	resolveByOrigin *prometheus.CounterVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apar",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apar",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		applyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apar",
			Name:      "kpi_apply_total",
			Help:      "Project weight applications by outcome.",
		}, []string{"outcome"}),
		applyRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "apar",
			Name:      "kpi_apply_records",
			Help:      "Records written per successful application.",
			Buckets:   []float64{1, 2, 4, 6, 8, 12, 16},
		}),
		recalcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apar",
			Name:      "kpi_recalc_total",
			Help:      "Daily report recalculations by outcome.",
		}, []string{"outcome"}),
		recalcSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apar",
			Name:      "kpi_recalc_skipped_total",
			Help:      "KPIs skipped for falling under the tracking threshold.",
		}),
		resolveByOrigin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apar",
			Name:      "kpi_weight_resolutions_total",
			Help:      "Weight profile resolutions by origin.",
		}, []string{"origin"}),
	}
	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.applyTotal,
		c.applyRecords,
		c.recalcTotal,
		c.recalcSkipped,
		c.resolveByOrigin,
		prometheus.NewGoCollector(),
	)
	return c
}

func (c *Collector) Record(method string, status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == http.StatusTooManyRequests {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (c *Collector) ObserveApply(outcome string, records int) {
	c.applyTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		c.applyRecords.Observe(float64(records))
	}
}

func (c *Collector) ObserveRecalc(outcome string, skipped int) {
	c.recalcTotal.WithLabelValues(outcome).Inc()
	if skipped > 0 {
		c.recalcSkipped.Add(float64(skipped))
	}
}

func (c *Collector) ObserveResolve(origin string) {
	c.resolveByOrigin.WithLabelValues(origin).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
	}
}
