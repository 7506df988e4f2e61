package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestCompletedIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RequestCompleted("GET", 200, 5*time.Millisecond, 128)
	m.RequestCompleted("GET", 404, time.Millisecond, 32)

	got := testutil.ToFloat64(m.(*promMetrics).requests.WithLabelValues("GET", "2xx"))
	if got != 1 {
		t.Errorf("2xx count = %v, want 1", got)
	}
}

func TestConnectionGaugeTracksOpenClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	got := testutil.ToFloat64(m.(*promMetrics).activeConns)
	if got != 1 {
		t.Errorf("active connections = %v, want 1", got)
	}
}
