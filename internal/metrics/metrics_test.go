package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe("add", ResultApplied)
	m.Observe("add", ResultApplied)
	m.Observe("add", ResultVetoed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("add", ResultApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("add", ResultVetoed)))
}

func TestSetSizes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetSizes(3, 7)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Servers))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.QueryEntries))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("rm", ResultApplied)
		m.SetSizes(1, 1)
		m.PersistFailed()
	})
}
