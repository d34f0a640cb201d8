package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and multiple servers in one
// process never collide on metric registration.
type Collector struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	duration     prometheus.Histogram
	rateLimited  prometheus.Counter
	conversions  *prometheus.CounterVec
	unmatched    prometheus.Counter
	droppedRows  *prometheus.CounterVec
	grandTotal   prometheus.Counter
	historyDrops prometheus.Counter
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sierrawbs_http_requests_total",
			Help: "HTTP requests by status code.",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sierrawbs_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sierrawbs_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sierrawbs_conversions_total",
			Help: "Timesheet conversions by outcome.",
		}, []string{"outcome"}),
		unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sierrawbs_unmatched_entries_total",
			Help: "Consolidated timesheet names that matched no roster entry.",
		}),
		droppedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sierrawbs_dropped_rows_total",
			Help: "Timesheet rows dropped during parsing, by reason.",
		}, []string{"reason"}),
		grandTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sierrawbs_grand_total_amount",
			Help: "Sum of reconciled payroll amounts across conversions.",
		}),
		historyDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sierrawbs_run_history_dropped_total",
			Help: "Run history records discarded because the queue was full.",
		}),
	}
	c.registry.MustRegister(
		c.requests, c.duration, c.rateLimited,
		c.conversions, c.unmatched, c.droppedRows, c.grandTotal, c.historyDrops,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Record(status int, duration time.Duration) {
	c.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	c.duration.Observe(duration.Seconds())
	if status == http.StatusTooManyRequests {
		c.rateLimited.Inc()
	}
}

// RecordConversion counts one conversion. outcome is a short label such as
// "completed", "review" or "parse_error".
func (c *Collector) RecordConversion(outcome string, unmatched int, dropped map[string]int, grandTotal float64) {
	c.conversions.WithLabelValues(outcome).Inc()
	c.unmatched.Add(float64(unmatched))
	for reason, n := range dropped {
		c.droppedRows.WithLabelValues(reason).Add(float64(n))
	}
	if grandTotal > 0 {
		c.grandTotal.Add(grandTotal)
	}
}

func (c *Collector) RecordHistoryDrop() {
	c.historyDrops.Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
