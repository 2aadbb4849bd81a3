package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/config"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/engine"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/metrics"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/session"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/store"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/summarize"
)

// HTTPServer provides HTTP API endpoints for monitoring and for querying
// recorded transcripts. It never touches the live session path beyond
// read-only snapshots.
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	registry   *Registry
	store      store.Store
	summarizer *summarize.Summarizer
	engine     *engine.HTTPEngine
	metrics    *metrics.Metrics
	registerer *prometheus.Registry

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. eng may be nil when the
// transcription engine exposes no stats.
func NewHTTPServer(cfg config.MonitorConfig, logger *slog.Logger, appConfig *config.Config,
	registry *Registry, st store.Store, summarizer *summarize.Summarizer,
	eng *engine.HTTPEngine, m *metrics.Metrics, reg *prometheus.Registry) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		registry:   registry,
		store:      st,
		summarizer: summarizer,
		engine:     eng,
		metrics:    m,
		registerer: reg,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	mux.HandleFunc("/sessions", h.withMetrics("/sessions", h.handleSessions))
	mux.HandleFunc("/sessions/", h.withMetrics("/sessions/{id}", h.handleSessionDetail))

	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Transcript query surface over recorded sessions.
	mux.HandleFunc("/v1/sessions/", h.withMetrics("/v1/sessions/{id}", h.handleSessionResource))

	mux.Handle("/metrics", promhttp.HandlerFor(h.registerer, promhttp.HandlerOpts{}))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// Handler exposes the routing for tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("response encoding failed", slog.String("error", err.Error()))
	}
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name": "streaming-transcription-service",
		},
		"components": map[string]any{
			"sessions": map[string]any{
				"status":       "running",
				"active_count": h.registry.Count(),
			},
			"summarizer": map[string]any{
				"enabled": h.summarizer.Enabled(),
			},
		},
	}
	if h.engine != nil {
		stats := h.engine.GetStats()
		health["components"].(map[string]any)["engine"] = map[string]any{
			"status":          "running",
			"total_requests":  stats.TotalRequests,
			"success_rate":    stats.SuccessRate,
			"active_requests": stats.ActiveRequests,
		}
	}

	h.writeJSON(w, http.StatusOK, health)
}

// handleSessions implements the /sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := h.registry.All()
	infos := make([]session.Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"total_sessions": len(infos),
		"timestamp":      time.Now().UTC(),
		"sessions":       infos,
	})
}

// handleSessionDetail implements the /sessions/{id} endpoint
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	s, ok := h.registry.Get(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, s.Info())
}

// handleConfig implements the /config endpoint. Credentials and DSNs are
// omitted.
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitized := map[string]any{
		"server": map[string]any{
			"port":          h.config.Server.Port,
			"bind_address":  h.config.Server.BindAddress,
			"stream_path":   h.config.Server.StreamPath,
			"max_sessions":  h.config.Server.MaxSessions,
			"write_timeout": h.config.Server.WriteTimeout,
		},
		"session": map[string]any{
			"default_buffer_seconds":   h.config.Session.DefaultBufferSeconds,
			"min_buffer_seconds":       h.config.Session.MinBufferSeconds,
			"max_buffer_seconds":       h.config.Session.MaxBufferSeconds,
			"max_buffer_bytes":         h.config.Session.MaxBufferBytes,
			"flush_window":             h.config.Session.FlushWindow,
			"flush_timeout":            h.config.Session.FlushTimeout,
			"stop_flush_timeout":       h.config.Session.StopFlushTimeout,
			"stop_grace":               h.config.Session.StopGrace,
			"engine_failure_threshold": h.config.Session.EngineFailureThreshold,
			"dedup_epsilon":            h.config.Session.DedupEpsilon,
			"merge_overwrite":          h.config.Session.MergeOverwrite,
		},
		"engine": map[string]any{
			"endpoint":       h.config.Engine.Endpoint,
			"model":          h.config.Engine.Model,
			"language":       h.config.Engine.Language,
			"timeout":        h.config.Engine.Timeout,
			"max_retries":    h.config.Engine.MaxRetries,
			"max_concurrent": h.config.Engine.MaxConcurrent,
			// Note: API key is intentionally omitted for security
		},
		"events": map[string]any{
			"enabled":       len(h.config.Events.Brokers) > 0,
			"topic_partial": h.config.Events.TopicPartial,
			"topic_final":   h.config.Events.TopicFinal,
		},
		"logging": map[string]any{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	h.writeJSON(w, http.StatusOK, sanitized)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"sessions": map[string]any{
			"active_count": h.registry.Count(),
		},
	}
	if h.engine != nil {
		stats["engine"] = h.engine.GetStats()
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// handleSessionResource routes /v1/sessions/{id}/{transcript|summary|qa}.
func (h *HTTPServer) handleSessionResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Expected /v1/sessions/{id}/{transcript|summary|qa}", http.StatusBadRequest)
		return
	}
	id, resource := parts[0], parts[1]

	text, err := h.resolveTranscript(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Transcript not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("transcript lookup failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		http.Error(w, "Transcript lookup failed", http.StatusInternalServerError)
		return
	}

	switch resource {
	case "transcript":
		h.writeJSON(w, http.StatusOK, map[string]any{
			"session_id": id,
			"text":       text,
		})
	case "summary":
		summary, err := h.summarizer.Summarize(r.Context(), text)
		if err != nil {
			h.writeSummarizerError(w, id, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"session_id": id,
			"summary":    summary,
		})
	case "qa":
		question := r.URL.Query().Get("q")
		answer, err := h.summarizer.Answer(r.Context(), text, question)
		if err != nil {
			if question == "" {
				http.Error(w, "Query parameter 'q' required", http.StatusBadRequest)
				return
			}
			h.writeSummarizerError(w, id, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"session_id": id,
			"question":   question,
			"answer":     answer,
		})
	default:
		http.Error(w, "Unknown resource", http.StatusNotFound)
	}
}

// resolveTranscript prefers the live session and falls back to the store.
func (h *HTTPServer) resolveTranscript(ctx context.Context, id string) (string, error) {
	if s, ok := h.registry.Get(id); ok {
		_, text := s.Transcript()
		return text, nil
	}
	return h.store.GetTranscript(ctx, id)
}

func (h *HTTPServer) writeSummarizerError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, summarize.ErrDisabled) {
		http.Error(w, "Summarization is not configured", http.StatusNotImplemented)
		return
	}
	h.logger.Error("summarization failed",
		slog.String("session_id", id),
		slog.String("error", err.Error()))
	http.Error(w, "Summarization failed", http.StatusBadGateway)
}
