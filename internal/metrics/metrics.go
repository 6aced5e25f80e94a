package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "keyring"

// Metrics holds the keyring collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	deviceCalls     *prometheus.CounterVec
	promptWait      prometheus.Histogram
	queueDepth      prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	scanCandidates  prometheus.Counter
	signRequests    *prometheus.CounterVec
	derivedAccounts prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		deviceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_calls_total",
			Help:      "Device exchanges by operation and result.",
		}, []string{"op", "result"}),
		promptWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_wait_seconds",
			Help:      "Time spent queued before an interactive device operation was admitted.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prompt_queue_depth",
			Help:      "Interactive device operations waiting for admission.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_cache_lookups_total",
			Help:      "Address to index lookups by result (hit, scan_hit, miss).",
		}, []string{"result"}),
		scanCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_cache_scan_candidates_total",
			Help:      "Candidate indices derived during reverse lookups.",
		}),
		signRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_requests_total",
			Help:      "Signing requests by kind and outcome.",
		}, []string{"kind", "result"}),
		derivedAccounts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "derived_addresses_total",
			Help:      "Addresses derived through the device or locally.",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{
		m.deviceCalls, m.promptWait, m.queueDepth, m.cacheLookups,
		m.scanCandidates, m.signRequests, m.derivedAccounts,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register keyring metrics")
		}
	}

	return m, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// DeviceCall records one device exchange
func (m *Metrics) DeviceCall(op string, err error) {
	if m == nil {
		return
	}
	m.deviceCalls.WithLabelValues(op, result(err)).Inc()
}

// PromptWaited records how long an operation was queued
func (m *Metrics) PromptWaited(d time.Duration) {
	if m == nil {
		return
	}
	m.promptWait.Observe(d.Seconds())
}

// QueueDepth sets the number of waiting operations
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// CacheLookup records a reverse lookup outcome
func (m *Metrics) CacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// ScanCandidate records one derived candidate during a scan
func (m *Metrics) ScanCandidate() {
	if m == nil {
		return
	}
	m.scanCandidates.Inc()
}

// SignRequest records a signing outcome
func (m *Metrics) SignRequest(kind string, err error) {
	if m == nil {
		return
	}
	m.signRequests.WithLabelValues(kind, result(err)).Inc()
}

// Derived records a derived address
func (m *Metrics) Derived() {
	if m == nil {
		return
	}
	m.derivedAccounts.Inc()
}
