package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects request counters per route.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	routes map[string]*RouteMetrics
}

// RouteMetrics represents metrics for a single route.
type RouteMetrics struct {
	requestCount  atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{routes: make(map[string]*RouteMetrics)}
}

// Record records one finished request. Responses with status >= 500 count as failed.
func (m *Metrics) Record(route string, status int, duration time.Duration) {
	rm := m.route(route)
	m.requestTotal.Add(1)
	rm.requestCount.Add(1)
	rm.totalDuration.Add(duration.Milliseconds())
	if status >= 500 {
		m.requestFailed.Add(1)
		rm.errorCount.Add(1)
	}
}

func (m *Metrics) route(route string) *RouteMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.routes[route]
	if !ok {
		rm = &RouteMetrics{}
		m.routes[route] = rm
	}
	return rm
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)

	m.mu.Lock()
	m.routes = make(map[string]*RouteMetrics)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	routes := make([]RouteSnapshot, 0, len(m.routes))
	for route, rm := range m.routes {
		count := rm.requestCount.Load()
		snapshot := RouteSnapshot{
			Route:         route,
			RequestCount:  count,
			TotalDuration: rm.totalDuration.Load(),
			ErrorCount:    rm.errorCount.Load(),
		}
		if count > 0 {
			snapshot.AverageDuration = snapshot.TotalDuration / count
		}
		routes = append(routes, snapshot)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Route < routes[j].Route })

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Routes:        routes,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64           `json:"request_total"`
	RequestFailed int64           `json:"request_failed"`
	Routes        []RouteSnapshot `json:"routes"`
}

// RouteSnapshot represents metrics for a single route.
type RouteSnapshot struct {
	Route           string `json:"route"`
	RequestCount    int64  `json:"request_count"`
	TotalDuration   int64  `json:"total_duration_ms"`
	ErrorCount      int64  `json:"error_count"`
	AverageDuration int64  `json:"avg_duration_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
