package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for chartlink.
type Metrics struct {
	registry               *prometheus.Registry
	discoveryAttemptsTotal *prometheus.CounterVec
	framesReceivedTotal    prometheus.Counter
	frameBytesTotal        prometheus.Counter
	binaryIgnoredTotal     prometheus.Counter
	streamFaultsTotal      prometheus.Counter
	connectionStateGauge   prometheus.Gauge
	lastFrameGauge         prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		discoveryAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartlink_discovery_attempts_total",
			Help: "Total discovery attempts by result.",
		}, []string{"result"}),
		framesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartlink_frames_received_total",
			Help: "Total text frames received from the stream.",
		}),
		frameBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartlink_frame_bytes_total",
			Help: "Total bytes of frame text received.",
		}),
		binaryIgnoredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartlink_binary_messages_ignored_total",
			Help: "Total binary stream messages received and ignored.",
		}),
		streamFaultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartlink_stream_faults_total",
			Help: "Total stream open failures and transport faults.",
		}),
		connectionStateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartlink_connection_state",
			Help: "Current connection state as an enum value (0 disconnected through 5 error).",
		}),
		lastFrameGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartlink_last_frame_timestamp",
			Help: "Unix timestamp of the last received frame.",
		}),
	}

	registry.MustRegister(
		m.discoveryAttemptsTotal,
		m.framesReceivedTotal,
		m.frameBytesTotal,
		m.binaryIgnoredTotal,
		m.streamFaultsTotal,
		m.connectionStateGauge,
		m.lastFrameGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncDiscoveryAttempts counts one discovery attempt with its result
// (ok, not_found, error).
func (m *Metrics) IncDiscoveryAttempts(result string) {
	if m == nil {
		return
	}
	m.discoveryAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveFrame counts one received text frame of the given size.
func (m *Metrics) ObserveFrame(bytes int) {
	if m == nil {
		return
	}
	m.framesReceivedTotal.Inc()
	m.frameBytesTotal.Add(float64(bytes))
	m.lastFrameGauge.Set(float64(time.Now().Unix()))
}

// IncBinaryIgnored counts one ignored binary message.
func (m *Metrics) IncBinaryIgnored() {
	if m == nil {
		return
	}
	m.binaryIgnoredTotal.Inc()
}

// IncStreamFaults counts one stream open failure or transport fault.
func (m *Metrics) IncStreamFaults() {
	if m == nil {
		return
	}
	m.streamFaultsTotal.Inc()
}

// SetConnectionState records the current state enum value.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionStateGauge.Set(float64(state))
}
