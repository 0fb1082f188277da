package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "devbox"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Environment metrics
	State            *prometheus.GaugeVec
	ProcessesSpawned *prometheus.CounterVec
	ProcessesRunning *prometheus.GaugeVec
	ProcessExits     *prometheus.CounterVec
	BridgedBytes     *prometheus.CounterVec
	ReadyEvents      *prometheus.CounterVec
	FileWrites       *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	mu        sync.RWMutex
	lastState string
	snapshot  Snapshot
}

// Snapshot holds current values for the JSON API.
type Snapshot struct {
	State             string  `json:"state"`
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveConnections int64   `json:"active_connections"`
	ProcessesRunning  int64   `json:"processes_running"`
	ReadyEvents       int64   `json:"ready_events"`
	FileWrites        int64   `json:"file_writes"`
	FileWriteFailures int64   `json:"file_write_failures"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a collector on its own registry, with the Go runtime
// and process collectors included.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		State: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "orchestrator_state",
				Help:      "1 for the current orchestrator state",
			},
			[]string{"state"},
		),
		ProcessesSpawned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "processes_spawned_total",
				Help:      "Processes spawned in the sandbox",
			},
			[]string{"role"},
		),
		ProcessesRunning: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "processes_running",
				Help:      "Processes currently running in the sandbox",
			},
			[]string{"role"},
		),
		ProcessExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "process_exits_total",
				Help:      "Process exits by exit code",
			},
			[]string{"role", "code"},
		),
		BridgedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridged_bytes_total",
				Help:      "Process output bytes forwarded to the terminal",
			},
			[]string{"role"},
		),
		ReadyEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ready_events_total",
				Help:      "Server-ready events received",
			},
			[]string{"port"},
		),
		FileWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_writes_total",
				Help:      "Editor writes into the sandbox",
			},
			[]string{"result"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry is the registry the metrics live on, for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordStateChange marks state as the current orchestrator state.
func (m *Metrics) RecordStateChange(state string) {
	m.mu.Lock()
	prev := m.lastState
	m.lastState = state
	m.snapshot.State = state
	m.mu.Unlock()

	if prev != "" {
		m.State.WithLabelValues(prev).Set(0)
	}
	m.State.WithLabelValues(state).Set(1)
}

// RecordProcessSpawned counts a spawn.
func (m *Metrics) RecordProcessSpawned(role string) {
	m.ProcessesSpawned.WithLabelValues(role).Inc()
	m.ProcessesRunning.WithLabelValues(role).Inc()

	m.mu.Lock()
	m.snapshot.ProcessesRunning++
	m.mu.Unlock()
}

// RecordProcessExited counts an exit.
func (m *Metrics) RecordProcessExited(role string, code int) {
	m.ProcessExits.WithLabelValues(role, strconv.Itoa(code)).Inc()
	m.ProcessesRunning.WithLabelValues(role).Dec()

	m.mu.Lock()
	m.snapshot.ProcessesRunning--
	m.mu.Unlock()
}

// RecordBridgedBytes counts forwarded output.
func (m *Metrics) RecordBridgedBytes(role string, n int) {
	m.BridgedBytes.WithLabelValues(role).Add(float64(n))
}

// RecordReadyEvent counts a server-ready event.
func (m *Metrics) RecordReadyEvent(port int) {
	m.ReadyEvents.WithLabelValues(strconv.Itoa(port)).Inc()

	m.mu.Lock()
	m.snapshot.ReadyEvents++
	m.mu.Unlock()
}

// RecordFileWrite counts an editor write.
func (m *Metrics) RecordFileWrite(_ string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.FileWrites.WithLabelValues(result).Inc()

	m.mu.Lock()
	if err != nil {
		m.snapshot.FileWriteFailures++
	} else {
		m.snapshot.FileWrites++
	}
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
