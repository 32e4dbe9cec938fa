package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vahana"

// Metrics bundles the business counters exported on /metrics.
type Metrics struct {
	reg               prometheus.Registerer
	payments          *prometheus.CounterVec
	renewals          *prometheus.CounterVec
	renewalDuration   prometheus.Histogram
	couponRedemptions *prometheus.CounterVec
	pointEntries      *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew registers a fresh set of collectors on reg. Tests pass their own
// registry to avoid duplicate registration panics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		reg: reg,
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_total",
			Help:      "Charge attempts by vendor and resulting payment status.",
		}, []string{"vendor", "status"}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "renewals_total",
			Help:      "Subscription renewal attempts by result.",
		}, []string{"result"}),
		renewalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "renewal_sweep_duration_seconds",
			Help:      "Duration of one renewal sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		couponRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupons",
			Name:      "redemptions_total",
			Help:      "Coupons bound to users by service.",
		}, []string{"service"}),
		pointEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "ledger_entries_total",
			Help:      "Point ledger rows written by transaction type.",
		}, []string{"type"}),
	}

	m.payments = register(reg, m.payments)
	m.renewals = register(reg, m.renewals)
	m.renewalDuration = register(reg, m.renewalDuration)
	m.couponRedemptions = register(reg, m.couponRedemptions)
	m.pointEntries = register(reg, m.pointEntries)
	return m
}

// register adds c to reg. When an equal collector is already registered the
// existing one is returned, so increments land on the exported series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// QueueStats is a snapshot of the notification job queue.
type QueueStats struct {
	Pending    int64
	Processing int64
	ByStatus   map[string]int64
}

// QueueSource reports queue state on every scrape.
type QueueSource interface {
	QueueStats(ctx context.Context) (QueueStats, error)
}

// WatchQueue exports the depth of src as gauges.
func (m *Metrics) WatchQueue(src QueueSource) {
	if m == nil || src == nil {
		return
	}
	register[prometheus.Collector](m.reg, newQueueCollector(src))
}

type queueCollector struct {
	src        QueueSource
	timeout    time.Duration
	pending    *prometheus.Desc
	processing *prometheus.Desc
	jobs       *prometheus.Desc
}

func newQueueCollector(src QueueSource) *queueCollector {
	return &queueCollector{
		src:        src,
		timeout:    2 * time.Second,
		pending:    prometheus.NewDesc(namespace+"_jobqueue_pending", "Notification jobs waiting for a worker.", nil, nil),
		processing: prometheus.NewDesc(namespace+"_jobqueue_processing", "Notification jobs currently claimed by a worker.", nil, nil),
		jobs:       prometheus.NewDesc(namespace+"_jobqueue_jobs", "Notification jobs counted per status in the queue stats hash.", []string{"status"}, nil),
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pending
	ch <- c.processing
	ch <- c.jobs
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	st, err := c.src.QueueStats(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.pending, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(st.Pending))
	ch <- prometheus.MustNewConstMetric(c.processing, prometheus.GaugeValue, float64(st.Processing))
	for status, n := range st.ByStatus {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(n), status)
	}
}

func (m *Metrics) Payment(vendor, status string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(vendor, status).Inc()
}

func (m *Metrics) Renewal(result string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(result).Inc()
}

func (m *Metrics) RenewalSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.renewalDuration.Observe(d.Seconds())
}

func (m *Metrics) CouponRedeemed(service string) {
	if m == nil {
		return
	}
	m.couponRedemptions.WithLabelValues(service).Inc()
}

func (m *Metrics) PointEntry(txType string) {
	if m == nil {
		return
	}
	m.pointEntries.WithLabelValues(txType).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
