package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, endpoint string, retries int) *HTTPEngine {
	t.Helper()

	eng, err := NewHTTPEngine(Config{
		Endpoint:   endpoint,
		Model:      "whisper-1",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	})
	if err != nil {
		t.Fatalf("NewHTTPEngine failed: %v", err)
	}
	return eng
}

func TestTranscribeParsesResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart request: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("expected model field whisper-1, got %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected file part: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" hello world ","segments":[` +
			`{"start":0,"end":1.2,"text":"hello"},` +
			`{"start":1.2,"end":2.0,"text":"world"}]}`))
	}))
	defer ts.Close()

	eng := newTestEngine(t, ts.URL, 0)

	result, err := eng.Transcribe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("expected trimmed text 'hello world', got %q", result.Text)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.Segments[1].Start != 1.2 || result.Segments[1].Text != "world" {
		t.Errorf("unexpected second segment: %+v", result.Segments[1])
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	eng := newTestEngine(t, "http://localhost:1", 0)

	if _, err := eng.Transcribe(context.Background(), nil); err == nil {
		t.Error("expected error for empty audio buffer")
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text":"recovered"}`))
	}))
	defer ts.Close()

	eng := newTestEngine(t, ts.URL, 2)

	result, err := eng.Transcribe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "recovered" {
		t.Errorf("expected 'recovered', got %q", result.Text)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}

	stats := eng.GetStats()
	if stats.TotalRetries != 1 {
		t.Errorf("expected 1 retry recorded, got %d", stats.TotalRetries)
	}
	if stats.SuccessRequests != 1 {
		t.Errorf("expected 1 success recorded, got %d", stats.SuccessRequests)
	}
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad audio format", http.StatusBadRequest)
	}))
	defer ts.Close()

	eng := newTestEngine(t, ts.URL, 3)

	_, err := eng.Transcribe(context.Background(), []byte("audio"))
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "HTTP error 400") {
		t.Errorf("expected HTTP error 400 in message, got %q", err.Error())
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected client error to fail without retry, got %d requests", got)
	}
}

func TestTranscribeTimeoutIsClassified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client disconnect
		// and cancel the request context; otherwise ts.Close hangs.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer ts.Close()

	eng, err := NewHTTPEngine(Config{
		Endpoint: ts.URL,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHTTPEngine failed: %v", err)
	}

	_, err = eng.Transcribe(context.Background(), []byte("audio"))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("expected IsTimeout to report true for %v", err)
	}
}

func TestNewHTTPEngineRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPEngine(Config{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
