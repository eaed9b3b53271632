package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "movies_api"

// OperationLabel identifies a movie operation and its outcome.
type OperationLabel struct {
	Operation string
	Outcome   string
}

// Recorder owns a Prometheus registry with the API's request, movie
// operation, login, session and dependency health series.
type Recorder struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	movieOperations *prometheus.CounterVec
	loginAttempts   *prometheus.CounterVec
	sessionEvents   *prometheus.CounterVec
	componentHealth *prometheus.GaugeVec
}

var (
	defaultMu       sync.RWMutex
	defaultRecorder = New()
)

// New constructs a Recorder backed by its own registry, including the Go
// runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed by the API",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		movieOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movie_operations_total",
			Help:      "Movie repository operations by outcome",
		}, []string{"operation", "outcome"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type",
		}, []string{"event"}),
		componentHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "component_health",
			Help:      "Health reported by dependencies (1=ok,0=disabled,-1=degraded)",
		}, []string{"component", "status"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests,
		r.requestDuration,
		r.movieOperations,
		r.loginAttempts,
		r.sessionEvents,
		r.componentHealth,
	)
	return r
}

// Default returns the process-wide Recorder.
func Default() *Recorder {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRecorder
}

// SetDefault replaces the process-wide Recorder. Nil is ignored.
func SetDefault(r *Recorder) {
	if r == nil {
		return
	}
	defaultMu.Lock()
	defaultRecorder = r
	defaultMu.Unlock()
}

// ObserveRequest counts the request and records its latency by HTTP method,
// normalized path and status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	labels := []string{strings.ToUpper(method), normalizePath(path), strconv.Itoa(status)}
	r.requests.WithLabelValues(labels...).Inc()
	r.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
}

// ObserveMovieOperation counts a repository call such as "list" or "create"
// with its outcome ("ok", "not_found", "invalid", "error").
func (r *Recorder) ObserveMovieOperation(operation, outcome string) {
	r.movieOperations.WithLabelValues(normalizeName(operation), normalizeName(outcome)).Inc()
}

// ObserveLogin counts login attempts by result ("success", "failure", "throttled").
func (r *Recorder) ObserveLogin(result string) {
	r.loginAttempts.WithLabelValues(normalizeName(result)).Inc()
}

// ObserveSessionEvent counts session lifecycle events such as "revoked" or "purged".
func (r *Recorder) ObserveSessionEvent(event string) {
	r.sessionEvents.WithLabelValues(normalizeName(event)).Inc()
}

// SetComponentHealth maps a dependency status to a numeric gauge value
// (1=ok, 0=disabled, -1=degraded). Only the latest status of a component is
// exported.
func (r *Recorder) SetComponentHealth(component, status string) {
	normalizedComponent := normalizeName(component)
	normalizedStatus := strings.ToLower(strings.TrimSpace(status))
	value := -1.0
	switch normalizedStatus {
	case "ok", "healthy":
		value = 1
	case "disabled":
		value = 0
	}
	r.componentHealth.DeletePartialMatch(prometheus.Labels{"component": normalizedComponent})
	r.componentHealth.WithLabelValues(normalizedComponent, normalizedStatus).Set(value)
}

// MovieOperationCounts returns the current movie operation counters.
func (r *Recorder) MovieOperationCounts() map[OperationLabel]uint64 {
	out := make(map[OperationLabel]uint64)
	r.eachCounter(namespace+"_movie_operations_total", func(labels map[string]string, value float64) {
		out[OperationLabel{Operation: labels["operation"], Outcome: labels["outcome"]}] = uint64(value)
	})
	return out
}

// LoginCounts returns the current login attempt counters.
func (r *Recorder) LoginCounts() map[string]uint64 {
	out := make(map[string]uint64)
	r.eachCounter(namespace+"_login_attempts_total", func(labels map[string]string, value float64) {
		out[labels["result"]] = uint64(value)
	})
	return out
}

func (r *Recorder) eachCounter(name string, fn func(labels map[string]string, value float64)) {
	families, err := r.registry.Gather()
	if err != nil {
		return
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := make(map[string]string, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			fn(labels, metric.GetCounter().GetValue())
		}
	}
}

// Reset clears all API series. It is intended for test setups.
func (r *Recorder) Reset() {
	r.requests.Reset()
	r.requestDuration.Reset()
	r.movieOperations.Reset()
	r.loginAttempts.Reset()
	r.sessionEvents.Reset()
	r.componentHealth.Reset()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

// looksLikeIdentifier collapses numeric ids and long opaque segments so the
// label set stays bounded.
func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
