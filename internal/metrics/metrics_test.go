package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if fetchesTotal == nil || queueDepth == nil || indexedTotal == nil ||
		failuresTotal == nil || backpressureGauge == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveFetch(200)
	if val := testutil.ToFloat64(fetchesTotal.WithLabelValues("200")); val != 1 {
		t.Errorf("Expected fetchesTotal{200} to be 1, got %f", val)
	}

	SetQueueDepth(42)
	if val := testutil.ToFloat64(queueDepth); val != 42 {
		t.Errorf("Expected queueDepth to be 42, got %f", val)
	}

	SetBackpressure(true)
	if val := testutil.ToFloat64(backpressureGauge); val != 1 {
		t.Errorf("Expected backpressure gauge to be 1, got %f", val)
	}
	SetBackpressure(false)
	if val := testutil.ToFloat64(backpressureGauge); val != 0 {
		t.Errorf("Expected backpressure gauge to be 0, got %f", val)
	}
}

func TestObserversAreNilSafe(t *testing.T) {
	// Before Init the package-level collectors may be unset; observers must
	// tolerate that so library code never depends on Init ordering.
	saved := fetchesTotal
	fetchesTotal = nil
	defer func() { fetchesTotal = saved }()

	ObserveFetch(500)
}
