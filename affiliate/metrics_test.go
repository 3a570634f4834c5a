package affiliate

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountOutcomes(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.incRegistration(CodeOK)
	m.incRegistration(CodeCycleDetected)
	m.incRegistration(CodeCycleDetected)
	m.incOutcome(OutcomePaid, "balance")
	m.incPayoutFailure("mutate")
	m.incIntegrity()
	m.observeSale(15 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations.WithLabelValues("CycleDetected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.levelOutcomes.WithLabelValues("paid", "balance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payoutFailures.WithLabelValues("mutate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.integrityErrors))
}

func TestMustNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.incIntegrity()
	second.incIntegrity()
	assert.Equal(t, 2.0, testutil.ToFloat64(first.integrityErrors))

	count, err := testutil.GatherAndCount(reg, "reseller_affiliate_graph_integrity_violations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.incRegistration(CodeOK)
		m.incOutcome(OutcomePaid, "credits")
		m.incPayoutFailure("mutate")
		m.incIntegrity()
		m.observeSale(time.Second)
	})
}
