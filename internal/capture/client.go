package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/protocol"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/transcript"
)

// ClientConfig tunes the streaming client.
type ClientConfig struct {
	// ServerURL is the ws:// or wss:// stream endpoint.
	ServerURL string
	// BufferSeconds is the requested server-side flush interval. Zero
	// lets the server pick its default.
	BufferSeconds float64
	// WriteTimeout bounds each outbound frame write.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the start/started exchange.
	HandshakeTimeout time.Duration
}

// Caption is one transcription update delivered by the server.
type Caption struct {
	Kind     string
	Text     string
	Segments []transcript.Segment
}

// Client drives one streaming session: handshake, audio upload, and
// client-side transcript aggregation from caption frames.
type Client struct {
	conn      *websocket.Conn
	cfg       ClientConfig
	logger    *slog.Logger
	sessionID string
	agg       *transcript.Aggregator

	mu       sync.Mutex
	segments []transcript.Segment
	lastText string

	captions chan Caption
	finalCh  chan string
	readDone chan struct{}
}

// Dial connects to the server, performs the start handshake, and launches
// the caption read loop. The returned client is live until Stop.
func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("capture client: server URL is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.Dial(ctx, cfg.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("capture client: dial %s: %w", cfg.ServerURL, err)
	}

	c := &Client{
		conn:     conn,
		cfg:      cfg,
		logger:   logger,
		agg:      transcript.NewAggregator(),
		captions: make(chan Caption, 64),
		finalCh:  make(chan string, 1),
		readDone: make(chan struct{}),
	}

	if err := c.handshake(ctx); err != nil {
		conn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// handshake sends start and waits for started.
func (c *Client) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	if err := c.writeControl(ctx, protocol.Start(c.cfg.BufferSeconds)); err != nil {
		return fmt.Errorf("capture client: send start: %w", err)
	}

	for {
		frame, err := c.readControl(ctx)
		if err != nil {
			return fmt.Errorf("capture client: waiting for started: %w", err)
		}
		if frame == nil {
			continue
		}
		switch frame.Type {
		case protocol.KindStarted:
			c.sessionID = frame.SessionID
			c.logger.Info("session established", "session_id", c.sessionID)
			return nil
		case protocol.KindError:
			return fmt.Errorf("capture client: server rejected start: %s", frame.Message)
		}
	}
}

// SessionID returns the server-assigned session id.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Captions delivers partial and final captions in server order. Slow
// consumers lose captions rather than stalling the connection.
func (c *Client) Captions() <-chan Caption {
	return c.captions
}

// Transcript returns a copy of the aggregated segments and the latest text.
func (c *Client) Transcript() ([]transcript.Segment, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	segs := make([]transcript.Segment, len(c.segments))
	copy(segs, c.segments)
	return segs, c.lastText
}

// Stream uploads every chunk from the queue until it closes or ctx expires.
func (c *Client) Stream(ctx context.Context, chunks <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageBinary, chunk)
			cancel()
			if err != nil {
				return fmt.Errorf("capture client: send chunk: %w", err)
			}
		}
	}
}

// Stop sends the stop frame, waits for the final caption within ctx, and
// closes the connection. It returns the final transcript text.
func (c *Client) Stop(ctx context.Context) (string, error) {
	if err := c.writeControl(ctx, protocol.Stop()); err != nil {
		c.conn.Close(websocket.StatusProtocolError, "stop failed")
		return "", fmt.Errorf("capture client: send stop: %w", err)
	}

	var text string
	var err error
	select {
	case text = <-c.finalCh:
	case <-c.readDone:
		_, text = c.Transcript()
		err = errors.New("capture client: connection closed before final caption")
	case <-ctx.Done():
		_, text = c.Transcript()
		err = fmt.Errorf("capture client: waiting for final caption: %w", ctx.Err())
	}

	c.conn.Close(websocket.StatusNormalClosure, "session complete")
	return text, err
}

// readLoop consumes server frames until the connection closes. It is the
// single consumer dispatching on frame kind; all shared state is behind the
// client mutex.
func (c *Client) readLoop() {
	defer close(c.readDone)
	defer close(c.captions)

	for {
		frame, err := c.readControl(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != -1 {
				c.logger.Warn("connection closed", "status", int(status))
			}
			return
		}
		if frame == nil {
			continue
		}

		switch frame.Type {
		case protocol.KindPartial:
			text := c.fold(frame)
			c.emit(Caption{Kind: protocol.KindPartial, Text: text, Segments: frame.Segments})
		case protocol.KindFinal:
			text := c.foldFinal(frame)
			c.emit(Caption{Kind: protocol.KindFinal, Text: text})
			select {
			case c.finalCh <- text:
			default:
			}
			return
		case protocol.KindError:
			c.logger.Warn("server error", "message", frame.Message)
		case protocol.KindAck, protocol.KindStarted:
			// Receipt acknowledgements need no handling.
		}
	}
}

// fold merges a partial caption into the client-side transcript, mirroring
// the server-side aggregation so both ends converge on the same text.
func (c *Client) fold(frame *protocol.Control) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(frame.Segments) > 0 {
		c.segments = c.agg.Merge(c.segments, frame.Segments)
		c.lastText = transcript.Text(c.segments)
	} else if frame.Text != "" {
		c.lastText = frame.Text
	}
	return c.lastText
}

func (c *Client) foldFinal(frame *protocol.Control) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if frame.Text != "" {
		c.lastText = frame.Text
	}
	return c.lastText
}

func (c *Client) emit(caption Caption) {
	select {
	case c.captions <- caption:
	default:
		c.logger.Warn("caption consumer too slow, dropping caption", "kind", caption.Kind)
	}
}

// readControl reads one frame and decodes it if textual. Malformed and
// unknown control frames are dropped silently on the client side; binary
// frames from the server are ignored.
func (c *Client) readControl(ctx context.Context) (*protocol.Control, error) {
	msgType, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if msgType != websocket.MessageText {
		return nil, nil
	}
	frame, err := protocol.DecodeControl(data)
	if err != nil {
		c.logger.Debug("dropping undecodable frame", "error", err)
		return nil, nil
	}
	return frame, nil
}

func (c *Client) writeControl(ctx context.Context, frame *protocol.Control) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}
