package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/transcript"
)

// Config contains HTTP engine configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	Language      string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// HTTPEngine implements Engine against a whisper-style HTTP transcription
// API: the audio bytes are posted as a multipart file and the response is a
// JSON body with text and segments.
type HTTPEngine struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{}

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// Stats represents engine client statistics for monitoring.
type Stats struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	TotalRetries    uint64  `json:"total_retries"`
	SuccessRate     float64 `json:"success_rate"`
	ActiveRequests  int     `json:"active_requests"`
}

// apiResponse is the whisper-style JSON response body.
type apiResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// NewHTTPEngine creates an HTTP transcription engine client.
func NewHTTPEngine(config Config) (*HTTPEngine, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &HTTPEngine{
		config: config,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe implements Engine. Empty input fails immediately; transport and
// server failures are retried with exponential backoff within the context
// deadline.
func (e *HTTPEngine) Transcribe(ctx context.Context, audio []byte) (*Result, error) {
	if len(audio) == 0 {
		return nil, &EngineError{Op: "transcribe", Err: errors.New("empty audio buffer")}
	}

	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return nil, e.classify("transcribe", ctx.Err())
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	e.incTotal()

	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			e.incRetries()
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				e.incFailed()
				return nil, e.classify("transcribe", ctx.Err())
			}
		}

		result, err := e.doRequest(ctx, audio)
		if err == nil {
			e.incSuccess()
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}

	e.incFailed()
	return nil, e.classify("transcribe", lastErr)
}

// doRequest performs a single multipart POST to the transcription endpoint.
func (e *HTTPEngine) doRequest(ctx context.Context, audio []byte) (*Result, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "audio.webm")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{"response_format": "json"}
	if e.config.Model != "" {
		fields["model"] = e.config.Model
	}
	if e.config.Language != "" {
		fields["language"] = e.config.Language
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	result := &Result{Text: strings.TrimSpace(parsed.Text)}
	for _, s := range parsed.Segments {
		result.Segments = append(result.Segments, transcript.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return result, nil
}

// classify wraps a raw failure into an EngineError.
func (e *HTTPEngine) classify(op string, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded)
	if nerr, ok := err.(interface{ Timeout() bool }); ok && nerr.Timeout() {
		timeout = true
	}
	return &EngineError{Op: op, Timeout: timeout, Err: err}
}

// isRetryable reports whether a request failure is worth retrying. 5xx and
// rate limiting are; client errors are not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "HTTP error 5") || strings.Contains(msg, "HTTP error 429") {
		return true
	}
	if strings.Contains(msg, "connection") || strings.Contains(msg, "refused") {
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GetStats returns current engine client statistics.
func (e *HTTPEngine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rate := float64(0)
	if e.totalRequests > 0 {
		rate = float64(e.successRequests) / float64(e.totalRequests) * 100
	}
	return Stats{
		TotalRequests:   e.totalRequests,
		SuccessRequests: e.successRequests,
		FailedRequests:  e.failedRequests,
		TotalRetries:    e.totalRetries,
		SuccessRate:     rate,
		ActiveRequests:  len(e.semaphore),
	}
}

func (e *HTTPEngine) incTotal()   { e.mu.Lock(); e.totalRequests++; e.mu.Unlock() }
func (e *HTTPEngine) incSuccess() { e.mu.Lock(); e.successRequests++; e.mu.Unlock() }
func (e *HTTPEngine) incFailed()  { e.mu.Lock(); e.failedRequests++; e.mu.Unlock() }
func (e *HTTPEngine) incRetries() { e.mu.Lock(); e.totalRetries++; e.mu.Unlock() }
