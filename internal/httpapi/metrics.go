package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"comfyd/internal/manager"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comfyd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "comfyd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "comfyd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comfyd",
			Subsystem: "http",
			Name:      "rejections_total",
			Help:      "Generate requests rejected before a job started",
		},
		[]string{"reason"},
	)

	jobsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "comfyd",
		Name:      "jobs_started_total",
		Help:      "Jobs accepted by the manager",
	})

	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comfyd",
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state",
		},
		[]string{"state"},
	)

	jobsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "comfyd",
		Name:      "jobs_active",
		Help:      "Jobs started and not yet finished",
	})

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "comfyd",
			Name:      "job_duration_seconds",
			Help:      "Time from start to terminal state",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"state"},
	)

	interruptFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "comfyd",
		Name:      "interrupt_failures_total",
		Help:      "Backend interrupt requests that failed",
	})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, rejectionsTotal,
		jobsStarted, jobsFinished, jobsActive, jobDuration, interruptFailures)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps NDJSON streaming working through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		// The route pattern is only known after routing.
		path := routePatternOrPath(r)
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(dur)
	})
}

// inflight tracks a long-running route while its handler runs.
func inflight(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()
		next(w, r)
	}
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementRejection is called when a generate request is refused.
func IncrementRejection(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// MetricsPublisher turns manager lifecycle events into job metrics.
type MetricsPublisher struct{}

// NewMetricsPublisher returns a publisher backed by the package collectors.
func NewMetricsPublisher() MetricsPublisher { return MetricsPublisher{} }

func (MetricsPublisher) Publish(e manager.Event) {
	switch e.Name {
	case manager.EventJobStart:
		jobsStarted.Inc()
		jobsActive.Inc()
	case manager.EventJobDone:
		jobsActive.Dec()
		state, _ := e.Fields["state"].(manager.State)
		if state == "" {
			state = "unknown"
		}
		jobsFinished.WithLabelValues(string(state)).Inc()
		if d, ok := e.Fields["duration"].(time.Duration); ok {
			jobDuration.WithLabelValues(string(state)).Observe(d.Seconds())
		}
	case manager.EventJobInterruptFailed:
		interruptFailures.Inc()
	}
}

// fast integer to ascii for small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
