package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/config"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/metrics"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/store"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/summarize"
)

func newMonitorServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.Endpoint = "http://localhost:9000/v1/transcribe"

	reg := prometheus.NewRegistry()
	h := NewHTTPServer(cfg.Monitor, quietLogger(), cfg, NewRegistry(),
		store.Noop{}, summarize.New(""), nil, metrics.New(reg), reg)

	ts := httptest.NewServer(h.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s response: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	ts := newMonitorServer(t)

	var health map[string]any
	if code := getJSON(t, ts.URL+"/health", &health); code != http.StatusOK {
		t.Fatalf("/health status = %d, want 200", code)
	}
	if health["status"] != "healthy" {
		t.Errorf("health status = %v, want healthy", health["status"])
	}
}

func TestSessionsEndpointEmpty(t *testing.T) {
	ts := newMonitorServer(t)

	var body map[string]any
	if code := getJSON(t, ts.URL+"/sessions", &body); code != http.StatusOK {
		t.Fatalf("/sessions status = %d, want 200", code)
	}
	if total, _ := body["total_sessions"].(float64); total != 0 {
		t.Errorf("total_sessions = %v, want 0", body["total_sessions"])
	}
}

func TestSessionDetailNotFound(t *testing.T) {
	ts := newMonitorServer(t)
	if code := getJSON(t, ts.URL+"/sessions/nope", nil); code != http.StatusNotFound {
		t.Errorf("/sessions/nope status = %d, want 404", code)
	}
}

func TestConfigOmitsSecrets(t *testing.T) {
	ts := newMonitorServer(t)

	var body map[string]any
	if code := getJSON(t, ts.URL+"/config", &body); code != http.StatusOK {
		t.Fatalf("/config status = %d, want 200", code)
	}
	engineCfg, ok := body["engine"].(map[string]any)
	if !ok {
		t.Fatal("/config response has no engine section")
	}
	if _, present := engineCfg["api_key"]; present {
		t.Error("/config exposes the engine API key")
	}
}

func TestTranscriptNotFound(t *testing.T) {
	ts := newMonitorServer(t)
	if code := getJSON(t, ts.URL+"/v1/sessions/unknown/transcript", nil); code != http.StatusNotFound {
		t.Errorf("transcript status = %d, want 404", code)
	}
}

func TestSummaryDisabled(t *testing.T) {
	ts := newMonitorServer(t)
	// No transcript recorded, so lookup fails before the summarizer runs.
	if code := getJSON(t, ts.URL+"/v1/sessions/unknown/summary", nil); code != http.StatusNotFound {
		t.Errorf("summary status = %d, want 404", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newMonitorServer(t)
	if code := getJSON(t, ts.URL+"/metrics", nil); code != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", code)
	}
}
