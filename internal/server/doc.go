// Package server exposes the streaming transcription service over the
// network. WSServer accepts WebSocket connections and supervises exactly one
// session per connection; HTTPServer serves the monitoring and transcript
// query API alongside Prometheus metrics.
package server
