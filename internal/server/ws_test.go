package server

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/engine"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/engine/mock"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/metrics"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/protocol"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/session"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/transcript"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.MinBufferSeconds = 0.01
	cfg.FlushTimeout = 2 * time.Second
	cfg.StopFlushTimeout = time.Second
	cfg.StopGrace = time.Second
	return cfg
}

// newStreamServer wires a WSServer onto an httptest server with a mock
// engine and returns the ws:// URL of the stream endpoint.
func newStreamServer(t *testing.T, eng engine.Engine) (string, *Registry) {
	t.Helper()
	registry := NewRegistry()
	ws := NewWSServer(WSConfig{
		Address:      "127.0.0.1",
		Port:         0,
		StreamPath:   "/v1/stream",
		MaxSessions:  4,
		WriteTimeout: 5 * time.Second,
	}, testSessionConfig(), eng, registry, quietLogger(), metrics.New(prometheus.NewRegistry()))

	ts := httptest.NewServer(ws.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream", registry
}

func dialStream(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func sendControl(t *testing.T, conn *websocket.Conn, frame *protocol.Control) {
	t.Helper()
	data, err := frame.Encode()
	if err != nil {
		t.Fatalf("encoding %s frame: %v", frame.Type, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("sending %s frame: %v", frame.Type, err)
	}
}

// readUntil reads frames until one of the wanted kind arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) *protocol.Control {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("reading while waiting for %s frame: %v", kind, err)
		}
		frame, err := protocol.DecodeControl(data)
		if err != nil {
			t.Fatalf("decoding server frame: %v", err)
		}
		if frame.Type == kind {
			return frame
		}
	}
}

func TestStreamRoundTrip(t *testing.T) {
	eng := mock.New(
		mock.Response{Result: &engine.Result{Segments: []transcript.Segment{
			{Start: 0, End: 1, Text: "hello"},
		}}},
		mock.Response{Result: &engine.Result{Segments: []transcript.Segment{
			{Start: 0, End: 1, Text: "hello"},
			{Start: 1, End: 2, Text: "world"},
		}}},
	)
	url, registry := newStreamServer(t, eng)
	conn := dialStream(t, url)

	sendControl(t, conn, protocol.Start(0.2))
	started := readUntil(t, conn, protocol.KindStarted)
	if started.SessionID == "" {
		t.Fatal("started frame carries no session_id")
	}
	if registry.Count() != 1 {
		t.Errorf("registry count = %d, want 1", registry.Count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, make([]byte, 2048)); err != nil {
		t.Fatalf("sending audio chunk: %v", err)
	}
	readUntil(t, conn, protocol.KindAck)

	partial := readUntil(t, conn, protocol.KindPartial)
	if partial.Text != "hello" {
		t.Errorf("partial text = %q, want %q", partial.Text, "hello")
	}

	sendControl(t, conn, protocol.Stop())
	final := readUntil(t, conn, protocol.KindFinal)
	if final.Text != "hello world" {
		t.Errorf("final text = %q, want %q", final.Text, "hello world")
	}

	// The supervisor removes the session once the connection drains.
	deadline := time.Now().Add(5 * time.Second)
	for registry.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session was not removed from the registry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBinaryBeforeStart(t *testing.T) {
	url, _ := newStreamServer(t, mock.New())
	conn := dialStream(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3}); err != nil {
		t.Fatalf("sending audio chunk: %v", err)
	}

	errFrame := readUntil(t, conn, protocol.KindError)
	if errFrame.Message != "no active session" {
		t.Errorf("error message = %q, want %q", errFrame.Message, "no active session")
	}
}

func TestMalformedControlIgnored(t *testing.T) {
	url, _ := newStreamServer(t, mock.New())
	conn := dialStream(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("sending malformed frame: %v", err)
	}

	// The connection survives and a valid start still goes through.
	sendControl(t, conn, protocol.Start(1))
	readUntil(t, conn, protocol.KindStarted)
}

func TestUnknownKindReportsError(t *testing.T) {
	url, _ := newStreamServer(t, mock.New())
	conn := dialStream(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"subscribe"}`)); err != nil {
		t.Fatalf("sending unknown frame: %v", err)
	}

	errFrame := readUntil(t, conn, protocol.KindError)
	if !strings.Contains(errFrame.Message, "subscribe") {
		t.Errorf("error message = %q, want it to name the unknown kind", errFrame.Message)
	}

	sendControl(t, conn, protocol.Start(1))
	readUntil(t, conn, protocol.KindStarted)
}
