package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const minimalConfig = `
engine:
  endpoint: "http://localhost:9000/v1/transcribe"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Server.StreamPath != "/v1/stream" {
		t.Errorf("server.stream_path = %q, want default /v1/stream", cfg.Server.StreamPath)
	}
	if cfg.Session.DefaultBufferSeconds != 4.0 {
		t.Errorf("session.default_buffer_seconds = %v, want default 4.0", cfg.Session.DefaultBufferSeconds)
	}
	if cfg.Session.FlushWindow != "full" {
		t.Errorf("session.flush_window = %q, want default full", cfg.Session.FlushWindow)
	}
	if cfg.Session.DedupEpsilon != 0.25 {
		t.Errorf("session.dedup_epsilon = %v, want default 0.25", cfg.Session.DedupEpsilon)
	}
	if cfg.Engine.Endpoint != "http://localhost:9000/v1/transcribe" {
		t.Errorf("engine.endpoint = %q, file value not applied", cfg.Engine.Endpoint)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults not applied: %+v", cfg.Logging)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
  max_sessions: 8
session:
  default_buffer_seconds: 2.5
  merge_overwrite: true
engine:
  endpoint: "http://engine:9000/v1/transcribe"
  timeout: 15
events:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.MaxSessions != 8 {
		t.Errorf("server overrides not applied: %+v", cfg.Server)
	}
	if cfg.Session.DefaultBufferSeconds != 2.5 || !cfg.Session.MergeOverwrite {
		t.Errorf("session overrides not applied: %+v", cfg.Session)
	}
	if cfg.Engine.Timeout != 15 {
		t.Errorf("engine.timeout = %d, want 15", cfg.Engine.Timeout)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.TopicPartial != "captions.partial" {
		t.Errorf("events merge wrong: %+v", cfg.Events)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing engine endpoint", `server: {port: 8080}`},
		{"bad port", `
server:
  port: 99999
engine:
  endpoint: "http://localhost:9000"
`},
		{"bad flush window", `
session:
  flush_window: sliding
engine:
  endpoint: "http://localhost:9000"
`},
		{"bad backpressure policy", `
capture:
  backpressure_policy: discard
engine:
  endpoint: "http://localhost:9000"
`},
		{"bad log level", `
logging:
  level: verbose
engine:
  endpoint: "http://localhost:9000"
`},
		{"brokers without topics", `
events:
  brokers: ["kafka:9092"]
  topic_partial: ""
engine:
  endpoint: "http://localhost:9000"
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("invalid config passed validation")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file did not fail")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if got := cfg.Session.GetFlushTimeoutDuration().Seconds(); got != 30 {
		t.Errorf("flush timeout = %vs, want 30s", got)
	}
	if got := cfg.Capture.GetChunkIntervalDuration().Seconds(); got != 1 {
		t.Errorf("chunk interval = %vs, want 1s", got)
	}
}
