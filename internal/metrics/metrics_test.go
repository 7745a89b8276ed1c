package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUpdates(t *testing.T) {
	m := New()

	m.IncDiscoveryAttempts("ok")
	m.IncDiscoveryAttempts("not_found")
	m.IncDiscoveryAttempts("not_found")
	m.ObserveFrame(256)
	m.ObserveFrame(128)
	m.IncBinaryIgnored()
	m.IncStreamFaults()
	m.SetConnectionState(3)

	if got := testutil.ToFloat64(m.discoveryAttemptsTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.discoveryAttemptsTotal.WithLabelValues("not_found")); got != 2 {
		t.Fatalf("expected 2 not_found attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.framesReceivedTotal); got != 2 {
		t.Fatalf("expected 2 frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.frameBytesTotal); got != 384 {
		t.Fatalf("expected 384 frame bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.binaryIgnoredTotal); got != 1 {
		t.Fatalf("expected 1 ignored binary message, got %v", got)
	}
	if got := testutil.ToFloat64(m.streamFaultsTotal); got != 1 {
		t.Fatalf("expected 1 stream fault, got %v", got)
	}
	if got := testutil.ToFloat64(m.connectionStateGauge); got != 3 {
		t.Fatalf("expected connection state 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastFrameGauge); got == 0 {
		t.Fatal("expected last frame timestamp to be set")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	m.IncDiscoveryAttempts("ok")
	m.ObserveFrame(1)
	m.IncBinaryIgnored()
	m.IncStreamFaults()
	m.SetConnectionState(1)

	if m.Handler() == nil {
		t.Fatal("nil metrics must still return a handler")
	}
}
