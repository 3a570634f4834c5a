package affiliate

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for registrations and commission payouts.
type Metrics struct {
	registrations   *prometheus.CounterVec
	levelOutcomes   *prometheus.CounterVec
	payoutFailures  *prometheus.CounterVec
	integrityErrors prometheus.Counter
	saleDuration    prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns collectors registered with the global registry,
// created once so repeated engine construction does not panic.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics on the given registerer and panics on any
// registration error other than an identical collector already being present.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reseller",
			Subsystem: "affiliate",
			Name:      "registrations_total",
			Help:      "Sponsor registration attempts by result code.",
		}, []string{"result"}),
		levelOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reseller",
			Subsystem: "affiliate",
			Name:      "commission_levels_total",
			Help:      "Commission waterfall steps by outcome and currency.",
		}, []string{"outcome", "currency"}),
		payoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reseller",
			Subsystem: "affiliate",
			Name:      "payout_failures_total",
			Help:      "Payout steps that failed, by stage.",
		}, []string{"stage"}),
		integrityErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reseller",
			Subsystem: "affiliate",
			Name:      "graph_integrity_violations_total",
			Help:      "Referral graph walks halted by inconsistent data.",
		}),
		saleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reseller",
			Subsystem: "affiliate",
			Name:      "sale_processing_seconds",
			Help:      "Time spent distributing commissions for one sale.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{m.registrations, m.levelOutcomes, m.payoutFailures, m.integrityErrors, m.saleDuration}
	for i, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch i {
			case 0:
				m.registrations = already.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				m.levelOutcomes = already.ExistingCollector.(*prometheus.CounterVec)
			case 2:
				m.payoutFailures = already.ExistingCollector.(*prometheus.CounterVec)
			case 3:
				m.integrityErrors = already.ExistingCollector.(prometheus.Counter)
			case 4:
				m.saleDuration = already.ExistingCollector.(prometheus.Histogram)
			}
		}
	}
	return m
}

func (m *Metrics) incRegistration(code ValidationCode) {
	if m == nil {
		return
	}
	result := string(code)
	if code == CodeOK {
		result = "ok"
	}
	m.registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) incOutcome(outcome Outcome, currency string) {
	if m == nil {
		return
	}
	m.levelOutcomes.WithLabelValues(string(outcome), currency).Inc()
}

func (m *Metrics) incPayoutFailure(stage string) {
	if m == nil {
		return
	}
	m.payoutFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) incIntegrity() {
	if m == nil {
		return
	}
	m.integrityErrors.Inc()
}

func (m *Metrics) observeSale(d time.Duration) {
	if m == nil {
		return
	}
	m.saleDuration.Observe(d.Seconds())
}
