package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	membership   map[string]int64
	broadcasts   int64
	broadcastErr int64
	connections  int64
	latencyTotal time.Duration
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests          map[string]int64 `json:"requests"`
	Errors            map[string]int64 `json:"errors"`
	Membership        map[string]int64 `json:"membership"`
	Broadcasts        int64            `json:"broadcasts"`
	BroadcastFailures int64            `json:"broadcast_failures"`
	Connections       int64            `json:"connections"`
	AvgLatencyMillis  float64          `json:"avg_latency_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		membership:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordMembership counts a membership outcome, e.g. "JOIN|changed" or "LEAVE|conflict".
func (m *Metrics) RecordMembership(intent, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.membership[intent+"|"+outcome]++
}

// RecordBroadcast counts a fan-out attempt.
func (m *Metrics) RecordBroadcast(err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts++
	if err != nil {
		m.broadcastErr++
	}
}

// SetConnections records the number of live realtime connections.
func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections = int64(n)
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Requests:          copyCounts(m.requestCount),
		Errors:            copyCounts(m.errorCount),
		Membership:        copyCounts(m.membership),
		Broadcasts:        m.broadcasts,
		BroadcastFailures: m.broadcastErr,
		Connections:       m.connections,
	}
	var total int64
	for _, n := range m.requestCount {
		total += n
	}
	if total > 0 {
		snap.AvgLatencyMillis = float64(m.latencyTotal.Milliseconds()) / float64(total)
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
