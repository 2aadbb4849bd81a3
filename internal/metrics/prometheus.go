// Package metrics defines the Prometheus instrumentation for the streaming
// transcription service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the streaming service.
type Metrics struct {
	// Frame metrics
	FramesReceived *prometheus.CounterVec
	DecodeErrors   prometheus.Counter

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Buffer metrics
	AudioBytesBuffered prometheus.Counter
	AudioBytesRefused  prometheus.Counter

	// Flush / engine metrics
	Flushes            prometheus.Counter
	FlushesDeferred    prometheus.Counter
	FlushDuration      prometheus.Histogram
	EngineFailures     prometheus.Counter
	EngineTimeouts     prometheus.Counter
	CaptionsEmitted    *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// New creates all metrics registered against reg. Passing a fresh registry
// per instance keeps tests free of duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_frames_received_total",
			Help: "Total number of frames received, by kind (control, binary)",
		}, []string{"kind"}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_frame_decode_errors_total",
			Help: "Total number of control frames that failed to decode",
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stream_active_sessions",
			Help: "Current number of active transcription sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_sessions_closed_total",
			Help: "Total number of sessions closed",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stream_session_duration_seconds",
			Help:    "Duration of transcription sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		AudioBytesBuffered: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_audio_bytes_buffered_total",
			Help: "Total audio bytes accepted into session buffers",
		}),
		AudioBytesRefused: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_audio_bytes_refused_total",
			Help: "Total audio bytes refused because a session buffer was full",
		}),

		Flushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_flushes_total",
			Help: "Total number of buffer flushes submitted to the engine",
		}),
		FlushesDeferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_flushes_deferred_total",
			Help: "Total number of flush ticks deferred because one was in flight",
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stream_flush_duration_seconds",
			Help:    "Duration of engine transcription calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		EngineFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_engine_failures_total",
			Help: "Total number of failed engine transcription calls",
		}),
		EngineTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_engine_timeouts_total",
			Help: "Total number of engine transcription calls that timed out",
		}),
		CaptionsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_captions_emitted_total",
			Help: "Total number of captions emitted, by kind (partial, final)",
		}, []string{"kind"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stream_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_http_errors_total",
			Help: "Total number of HTTP error responses",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordControlFrame counts a received control frame.
func (m *Metrics) RecordControlFrame() {
	m.FramesReceived.WithLabelValues("control").Inc()
}

// RecordBinaryFrame counts a received binary audio frame.
func (m *Metrics) RecordBinaryFrame() {
	m.FramesReceived.WithLabelValues("binary").Inc()
}

// RecordDecodeError counts a control frame that failed to decode.
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordSessionCreated counts a new session and bumps the active gauge.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionClosed counts a closed session and its lifetime.
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	m.SessionsClosed.Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordAudioBuffered counts accepted audio bytes.
func (m *Metrics) RecordAudioBuffered(n int) {
	m.AudioBytesBuffered.Add(float64(n))
}

// RecordAudioRefused counts audio bytes refused by a full buffer.
func (m *Metrics) RecordAudioRefused(n int) {
	m.AudioBytesRefused.Add(float64(n))
}

// RecordFlush counts a completed flush and its outcome.
func (m *Metrics) RecordFlush(durationSeconds float64, err error, timedOut bool) {
	m.Flushes.Inc()
	m.FlushDuration.Observe(durationSeconds)
	if err != nil {
		m.EngineFailures.Inc()
		if timedOut {
			m.EngineTimeouts.Inc()
		}
	}
}

// RecordFlushDeferred counts a flush tick skipped because one was in flight.
func (m *Metrics) RecordFlushDeferred() {
	m.FlushesDeferred.Inc()
}

// RecordCaption counts an emitted caption frame.
func (m *Metrics) RecordCaption(kind string) {
	m.CaptionsEmitted.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records an HTTP API request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error response.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
