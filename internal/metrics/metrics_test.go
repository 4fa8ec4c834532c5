package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordQuery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordQuery(10*time.Millisecond, 3, nil)
	m.RecordQuery(time.Millisecond, 2, nil)
	m.RecordQuery(time.Millisecond, 0, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.features))
}

func TestSetState(t *testing.T) {
	m := New(prometheus.NewRegistry())
	all := []string{"loading", "ready", "failed"}

	m.SetState("loading", all)
	m.SetState("ready", all)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("loading")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("ready")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("failed")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordQuery(time.Second, 1, nil)
		m.RecordHeaderParse()
		m.SetState("ready", []string{"ready"})
		m.SetFeatureDensity(0.5)
	})
}

func TestHeaderParsesAndDensity(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordHeaderParse()
	m.SetFeatureDensity(0.25)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.headerParses))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.statsDensity))
}
