package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/transcript"
)

// Frame kinds from the protocol specification. Control frames are JSON text
// messages; raw audio crosses the transport as binary messages and never
// passes through this codec.
const (
	KindStart   = "start"   // client -> server
	KindStop    = "stop"    // client -> server
	KindStarted = "started" // server -> client
	KindAck     = "ack"     // server -> client
	KindPartial = "partial" // server -> client
	KindFinal   = "final"   // server -> client
	KindError   = "error"   // server -> client
)

// ErrUnknownKind is returned by DecodeControl for a structurally valid frame
// whose type is not part of the protocol. Callers decide whether to answer
// with an error frame (server) or drop silently (client).
var ErrUnknownKind = errors.New("unknown control frame kind")

// Control is the wire representation of every control frame. Field presence
// depends on the kind; unknown fields in incoming frames are ignored for
// forward compatibility.
type Control struct {
	Type          string               `json:"type"`
	BufferSeconds float64              `json:"buffer_seconds,omitempty"` // start
	SessionID     string               `json:"session_id,omitempty"`     // started
	Text          string               `json:"text,omitempty"`           // partial, final
	Segments      []transcript.Segment `json:"segments,omitempty"`       // partial
	Message       string               `json:"message,omitempty"`        // error
}

// Start builds the client handshake frame negotiating the flush interval.
func Start(bufferSeconds float64) *Control {
	return &Control{Type: KindStart, BufferSeconds: bufferSeconds}
}

// Stop builds the client frame that ends a session cleanly.
func Stop() *Control {
	return &Control{Type: KindStop}
}

// Started builds the server acknowledgement carrying the new session id.
func Started(sessionID string) *Control {
	return &Control{Type: KindStarted, SessionID: sessionID}
}

// Ack builds an empty server acknowledgement frame.
func Ack() *Control {
	return &Control{Type: KindAck}
}

// Partial builds a non-final caption frame.
func Partial(text string, segments []transcript.Segment) *Control {
	return &Control{Type: KindPartial, Text: text, Segments: segments}
}

// Final builds the terminal caption frame.
func Final(text string) *Control {
	return &Control{Type: KindFinal, Text: text}
}

// ErrorFrame builds a server error report. The session continues unless the
// server closes the connection afterwards.
func ErrorFrame(message string) *Control {
	return &Control{Type: KindError, Message: message}
}

// Encode serializes a control frame for transmission as a text message.
func (c *Control) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", c.Type, err)
	}
	return data, nil
}

// DecodeControl parses a text message into a control frame.
//
// Malformed JSON and missing types are decode errors the caller should log
// and ignore. A well-formed frame with an unrecognized type is returned
// alongside ErrUnknownKind so callers can still inspect it.
func DecodeControl(data []byte) (*Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode control frame: %w", err)
	}
	if c.Type == "" {
		return nil, errors.New("decode control frame: missing type")
	}
	if !isKnownKind(c.Type) {
		return &c, fmt.Errorf("%w: %q", ErrUnknownKind, c.Type)
	}
	return &c, nil
}

func isKnownKind(kind string) bool {
	switch kind {
	case KindStart, KindStop, KindStarted, KindAck, KindPartial, KindFinal, KindError:
		return true
	}
	return false
}

// String returns a compact human-readable representation for logging.
func (c *Control) String() string {
	switch c.Type {
	case KindStart:
		return fmt.Sprintf("Control{start, buffer_seconds:%.2f}", c.BufferSeconds)
	case KindStarted:
		return fmt.Sprintf("Control{started, session_id:%s}", c.SessionID)
	case KindPartial:
		return fmt.Sprintf("Control{partial, segments:%d, text:%d bytes}", len(c.Segments), len(c.Text))
	case KindFinal:
		return fmt.Sprintf("Control{final, text:%d bytes}", len(c.Text))
	case KindError:
		return fmt.Sprintf("Control{error, message:%q}", c.Message)
	default:
		return fmt.Sprintf("Control{%s}", c.Type)
	}
}
