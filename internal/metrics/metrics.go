// Package metrics defines the Prometheus instrumentation for the engine and
// its HTTP surface. All metrics use the meteorsim_ prefix.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteorsim_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meteorsim_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	keplerNonConvergedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meteorsim_kepler_nonconverged_total",
			Help: "Kepler solves whose residual missed the convergence bound.",
		},
	)

	scenarioLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteorsim_scenario_loads_total",
			Help: "Scenario load attempts by outcome.",
		},
		[]string{"outcome"},
	)

	scenarioAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meteorsim_scenario_age_seconds",
			Help: "Age of the active scenario dataset in seconds.",
		},
	)

	timelinePoints = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meteorsim_timeline_points",
			Help: "Number of points in the active timeline per body.",
		},
		[]string{"body"},
	)

	timelineBuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meteorsim_timeline_build_seconds",
			Help:    "Time spent normalizing a scenario into timelines.",
			Buckets: prometheus.DefBuckets,
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteorsim_stream_connections_total",
			Help: "Stream connection events by type.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meteorsim_streams_active",
			Help: "Currently connected frame streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteorsim_stream_errors_total",
			Help: "Stream errors by reason.",
		},
		[]string{"reason"},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meteorsim_stream_messages_total",
			Help: "Total SSE messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meteorsim_stream_bytes_total",
			Help: "Total SSE bytes sent.",
		},
	)

	framesStreamedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meteorsim_frames_streamed_total",
			Help: "Playback frames delivered over all streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		keplerNonConvergedTotal,
		scenarioLoadsTotal,
		scenarioAgeSeconds,
		timelinePoints,
		timelineBuildSeconds,
		streamConnectionsTotal,
		streamsActive,
		streamErrorsTotal,
		streamMessagesTotal,
		streamBytesTotal,
		framesStreamedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncKeplerNonConverged counts a Kepler solve that missed the residual bound.
func IncKeplerNonConverged() { keplerNonConvergedTotal.Inc() }

// IncScenarioLoads counts a scenario load attempt by outcome
// (success, parse_error, load_error, fetch_error).
func IncScenarioLoads(outcome string) { scenarioLoadsTotal.WithLabelValues(outcome).Inc() }

// SetScenarioAge publishes the active scenario's age.
func SetScenarioAge(seconds float64) { scenarioAgeSeconds.Set(seconds) }

// SetTimelinePoints publishes a body's timeline length.
func SetTimelinePoints(body string, n int) { timelinePoints.WithLabelValues(body).Set(float64(n)) }

// ObserveTimelineBuild records the duration of a scenario rebuild.
func ObserveTimelineBuild(d time.Duration) { timelineBuildSeconds.Observe(d.Seconds()) }

// IncStreamConnections counts a stream connect/disconnect event.
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

// IncStreamsActive increments the active stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the active stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// IncStreamMessages counts one SSE message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes adds to the SSE byte counter.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncFramesStreamed counts one delivered playback frame.
func IncFramesStreamed() { framesStreamedTotal.Inc() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE streaming keeps working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
