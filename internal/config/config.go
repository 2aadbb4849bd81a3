package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Session   SessionConfig   `yaml:"session"`
	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	Summarize SummarizeConfig `yaml:"summarize"`
	Events    EventsConfig    `yaml:"events"`
	Capture   CaptureConfig   `yaml:"capture"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains the streaming WebSocket server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	StreamPath   string `yaml:"stream_path"`
	MaxSessions  int    `yaml:"max_sessions"`
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// MonitorConfig contains the monitoring HTTP API configuration
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// SessionConfig contains the per-session state machine parameters
type SessionConfig struct {
	DefaultBufferSeconds   float64 `yaml:"default_buffer_seconds"`
	MinBufferSeconds       float64 `yaml:"min_buffer_seconds"`
	MaxBufferSeconds       float64 `yaml:"max_buffer_seconds"`
	MaxBufferBytes         int     `yaml:"max_buffer_bytes"`
	FlushWindow            string  `yaml:"flush_window"` // full or tail
	FlushTimeout           int     `yaml:"flush_timeout"`      // seconds
	StopFlushTimeout       int     `yaml:"stop_flush_timeout"` // seconds
	StopGrace              int     `yaml:"stop_grace"`         // seconds
	EngineFailureThreshold int     `yaml:"engine_failure_threshold"`
	DedupEpsilon           float64 `yaml:"dedup_epsilon"` // seconds
	MergeOverwrite         bool    `yaml:"merge_overwrite"`
}

// EngineConfig contains the transcription engine API configuration
type EngineConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// StoreConfig contains the transcript store configuration. An empty DSN
// selects the in-memory noop store.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// SummarizeConfig contains the summarization/QA configuration. An empty
// api_key disables summarization.
type SummarizeConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// EventsConfig contains the Kafka caption event configuration. No brokers
// means log-only mode.
type EventsConfig struct {
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topic_partial"`
	TopicFinal   string   `yaml:"topic_final"`
}

// CaptureConfig contains the capture client configuration
type CaptureConfig struct {
	ServerURL          string  `yaml:"server_url"`
	BufferSeconds      float64 `yaml:"buffer_seconds"`
	ChunkInterval      float64 `yaml:"chunk_interval"` // seconds
	QueueSize          int     `yaml:"queue_size"`
	BackpressurePolicy string  `yaml:"backpressure_policy"` // drop_oldest, drop_newest, block
	BlockTimeout       float64 `yaml:"block_timeout"`       // seconds, block policy only
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns a configuration with production defaults. A loaded file
// overrides only the fields it sets.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			BindAddress:  "0.0.0.0",
			StreamPath:   "/v1/stream",
			MaxSessions:  256,
			WriteTimeout: 10,
		},
		Monitor: MonitorConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    8081,
		},
		Session: SessionConfig{
			DefaultBufferSeconds:   4.0,
			MinBufferSeconds:       1.0,
			MaxBufferSeconds:       30.0,
			MaxBufferBytes:         32 << 20,
			FlushWindow:            "full",
			FlushTimeout:           30,
			StopFlushTimeout:       10,
			StopGrace:              5,
			EngineFailureThreshold: 5,
			DedupEpsilon:           0.25,
		},
		Engine: EngineConfig{
			Model:         "whisper-1",
			Timeout:       30,
			MaxRetries:    2,
			MaxConcurrent: 10,
		},
		Summarize: SummarizeConfig{
			Model: "gpt-4o-mini",
		},
		Events: EventsConfig{
			TopicPartial: "captions.partial",
			TopicFinal:   "captions.final",
		},
		Capture: CaptureConfig{
			ServerURL:          "ws://localhost:8080/v1/stream",
			BufferSeconds:      4.0,
			ChunkInterval:      1.0,
			QueueSize:          16,
			BackpressurePolicy: "drop_oldest",
			BlockTimeout:       2.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.StreamPath == "" || s.StreamPath[0] != '/' {
		return fmt.Errorf("stream_path must start with '/', got %q", s.StreamPath)
	}

	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}

	if s.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", s.WriteTimeout)
	}

	return nil
}

// Validate validates monitoring API configuration
func (m *MonitorConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", m.Port)
		}

		if m.Address == "" {
			return fmt.Errorf("address cannot be empty when the monitor API is enabled")
		}
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.DefaultBufferSeconds <= 0 {
		return fmt.Errorf("default_buffer_seconds must be positive, got %f", s.DefaultBufferSeconds)
	}

	if s.MinBufferSeconds <= 0 {
		return fmt.Errorf("min_buffer_seconds must be positive, got %f", s.MinBufferSeconds)
	}

	if s.MaxBufferSeconds < s.MinBufferSeconds {
		return fmt.Errorf("max_buffer_seconds (%f) must not be below min_buffer_seconds (%f)",
			s.MaxBufferSeconds, s.MinBufferSeconds)
	}

	if s.MaxBufferBytes < 1024 {
		return fmt.Errorf("max_buffer_bytes must be at least 1024, got %d", s.MaxBufferBytes)
	}

	if s.FlushWindow != "full" && s.FlushWindow != "tail" {
		return fmt.Errorf("flush_window must be 'full' or 'tail', got '%s'", s.FlushWindow)
	}

	if s.FlushTimeout < 1 {
		return fmt.Errorf("flush_timeout must be at least 1 second, got %d", s.FlushTimeout)
	}

	if s.StopFlushTimeout < 1 {
		return fmt.Errorf("stop_flush_timeout must be at least 1 second, got %d", s.StopFlushTimeout)
	}

	if s.StopGrace < 0 {
		return fmt.Errorf("stop_grace cannot be negative, got %d", s.StopGrace)
	}

	if s.EngineFailureThreshold < 1 {
		return fmt.Errorf("engine_failure_threshold must be at least 1, got %d", s.EngineFailureThreshold)
	}

	if s.DedupEpsilon <= 0 {
		return fmt.Errorf("dedup_epsilon must be positive, got %f", s.DedupEpsilon)
	}

	return nil
}

// Validate validates transcription engine configuration
func (e *EngineConfig) Validate() error {
	if e.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if e.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", e.Timeout)
	}

	if e.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", e.MaxRetries)
	}

	if e.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", e.MaxConcurrent)
	}

	return nil
}

// Validate validates events configuration
func (e *EventsConfig) Validate() error {
	if len(e.Brokers) == 0 {
		return nil
	}

	if e.TopicPartial == "" {
		return fmt.Errorf("topic_partial cannot be empty when brokers are configured")
	}

	if e.TopicFinal == "" {
		return fmt.Errorf("topic_final cannot be empty when brokers are configured")
	}

	return nil
}

// Validate validates capture client configuration
func (c *CaptureConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url cannot be empty")
	}

	if c.BufferSeconds <= 0 {
		return fmt.Errorf("buffer_seconds must be positive, got %f", c.BufferSeconds)
	}

	if c.ChunkInterval <= 0 {
		return fmt.Errorf("chunk_interval must be positive, got %f", c.ChunkInterval)
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}

	switch c.BackpressurePolicy {
	case "drop_oldest", "drop_newest", "block":
	default:
		return fmt.Errorf("backpressure_policy must be one of [drop_oldest, drop_newest, block], got '%s'",
			c.BackpressurePolicy)
	}

	if c.BackpressurePolicy == "block" && c.BlockTimeout <= 0 {
		return fmt.Errorf("block_timeout must be positive for the block policy, got %f", c.BlockTimeout)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetWriteTimeoutDuration returns the outbound write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetFlushTimeoutDuration returns the flush timeout as a time.Duration
func (s *SessionConfig) GetFlushTimeoutDuration() time.Duration {
	return time.Duration(s.FlushTimeout) * time.Second
}

// GetStopFlushTimeoutDuration returns the stop-pass timeout as a time.Duration
func (s *SessionConfig) GetStopFlushTimeoutDuration() time.Duration {
	return time.Duration(s.StopFlushTimeout) * time.Second
}

// GetStopGraceDuration returns the stop grace period as a time.Duration
func (s *SessionConfig) GetStopGraceDuration() time.Duration {
	return time.Duration(s.StopGrace) * time.Second
}

// GetTimeoutDuration returns the engine call timeout as a time.Duration
func (e *EngineConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}

// GetChunkIntervalDuration returns the capture chunk interval as a time.Duration
func (c *CaptureConfig) GetChunkIntervalDuration() time.Duration {
	return time.Duration(c.ChunkInterval * float64(time.Second))
}

// GetBlockTimeoutDuration returns the block-policy timeout as a time.Duration
func (c *CaptureConfig) GetBlockTimeoutDuration() time.Duration {
	return time.Duration(c.BlockTimeout * float64(time.Second))
}
