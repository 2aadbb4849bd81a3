package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/engine"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/metrics"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/protocol"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/session"
)

// maxFrameBytes bounds one inbound WebSocket message. Capture clients send
// roughly one second of compressed audio per binary frame, so this leaves
// two orders of magnitude of headroom.
const maxFrameBytes = 4 << 20

// WSConfig contains the streaming WebSocket server configuration.
type WSConfig struct {
	Address      string
	Port         int
	StreamPath   string
	MaxSessions  int
	WriteTimeout time.Duration
}

// WSServer is the connection supervisor. Each accepted connection gets a
// fresh UUID, exactly one Session bound for its whole lifetime, and a read
// loop feeding frames to that session in arrival order. Connection close by
// either side guarantees session shutdown and registry removal; there are no
// resume semantics.
type WSServer struct {
	server      *http.Server
	cfg         WSConfig
	sessionCfg  session.Config
	engine      engine.Engine
	registry    *Registry
	logger      *slog.Logger
	metrics     *metrics.Metrics
	sessionOpts []session.Option
}

// NewWSServer creates the streaming server. sessionOpts are passed to every
// session, typically a transcript recorder and a caption event sink.
func NewWSServer(cfg WSConfig, sessionCfg session.Config, eng engine.Engine, registry *Registry,
	logger *slog.Logger, m *metrics.Metrics, sessionOpts ...session.Option) *WSServer {

	s := &WSServer{
		cfg:         cfg,
		sessionCfg:  sessionCfg,
		engine:      eng,
		registry:    registry,
		logger:      logger,
		metrics:     m,
		sessionOpts: sessionOpts,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.StreamPath, s.handleStream)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:     mux,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start starts the WebSocket server.
func (s *WSServer) Start() error {
	s.logger.Info("Starting streaming server",
		slog.String("address", s.server.Addr),
		slog.String("path", s.cfg.StreamPath),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Streaming server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the server: no new connections, then every live
// session is drained within ctx.
func (s *WSServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping streaming server...")

	err := s.server.Shutdown(ctx)
	for _, sess := range s.registry.All() {
		if cerr := sess.Close(ctx); cerr != nil {
			s.logger.Warn("session did not drain in time",
				slog.String("session_id", sess.ID()),
				slog.String("error", cerr.Error()))
		}
	}
	return err
}

// Handler exposes the routing for tests.
func (s *WSServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *WSServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.registry.Count() >= s.cfg.MaxSessions {
		s.logger.Warn("connection rejected, session limit reached",
			slog.Int("max_sessions", s.cfg.MaxSessions))
		http.Error(w, "session limit reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	id := uuid.NewString()
	sender := &wsSender{conn: conn, timeout: s.cfg.WriteTimeout}

	opts := append([]session.Option{
		session.WithLogger(s.logger),
		session.WithMetrics(s.metrics),
	}, s.sessionOpts...)
	sess, err := session.New(id, s.sessionCfg, s.engine, sender, opts...)
	if err != nil {
		s.logger.Error("session init failed", slog.String("error", err.Error()))
		conn.Close(websocket.StatusInternalError, "session init failed")
		return
	}

	s.registry.Add(sess)
	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}
	start := time.Now()
	sess.Start()
	s.logger.Info("connection established", slog.String("session_id", id))

	s.readLoop(r.Context(), conn, sess)

	// Connection is gone or shutting down; drain the session within the
	// stop bound (grace for an in-flight flush plus the final pass).
	closeCtx, cancel := context.WithTimeout(context.Background(),
		s.sessionCfg.StopGrace+s.sessionCfg.StopFlushTimeout+5*time.Second)
	if err := sess.Close(closeCtx); err != nil {
		s.logger.Error("session teardown timed out",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
	}
	cancel()

	s.registry.Remove(id)
	if s.metrics != nil {
		s.metrics.RecordSessionClosed(time.Since(start).Seconds())
	}
	conn.Close(websocket.StatusNormalClosure, "session closed")
	s.logger.Info("connection closed",
		slog.String("session_id", id),
		slog.Duration("duration", time.Since(start)))
}

// readLoop dispatches inbound frames until the connection fails or closes.
func (s *WSServer) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Debug("client closed connection", slog.String("session_id", sess.ID()))
			} else {
				s.logger.Debug("connection read failed",
					slog.String("session_id", sess.ID()),
					slog.String("error", err.Error()))
			}
			return
		}

		switch msgType {
		case websocket.MessageText:
			if s.metrics != nil {
				s.metrics.RecordControlFrame()
			}
			frame, err := protocol.DecodeControl(data)
			if errors.Is(err, protocol.ErrUnknownKind) {
				// Forward-compat: report the kind and keep going.
				s.logger.Warn("unknown control frame kind",
					slog.String("session_id", sess.ID()),
					slog.String("type", frame.Type))
				_ = (&wsSender{conn: conn, timeout: s.cfg.WriteTimeout}).SendControl(ctx,
					protocol.ErrorFrame(fmt.Sprintf("unknown frame kind %q", frame.Type)))
				continue
			}
			if err != nil {
				// Malformed control frames never crash the session.
				if s.metrics != nil {
					s.metrics.RecordDecodeError()
				}
				s.logger.Warn("malformed control frame ignored",
					slog.String("session_id", sess.ID()),
					slog.String("error", err.Error()))
				continue
			}
			sess.HandleControl(frame)
		case websocket.MessageBinary:
			if s.metrics != nil {
				s.metrics.RecordBinaryFrame()
			}
			sess.HandleBinary(data)
		}
	}
}

// wsSender adapts a WebSocket connection to the session.Sender interface.
// The connection serializes concurrent writers, so the session run loop and
// the read loop may both send through it.
type wsSender struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSender) SendControl(ctx context.Context, frame *protocol.Control) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s frame: %w", frame.Type, err)
	}
	return nil
}
