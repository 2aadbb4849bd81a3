package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/transcript"
)

// Result is a transcription of one audio window.
type Result struct {
	Text     string               `json:"text"`
	Segments []transcript.Segment `json:"segments,omitempty"`
}

// Engine transcribes an opaque audio buffer. Implementations must honor the
// context deadline and be safe for repeated calls over overlapping windows;
// the caller serializes calls per session.
type Engine interface {
	Transcribe(ctx context.Context, audio []byte) (*Result, error)
}

// EngineError classifies a transcription failure. Timeouts are distinguished
// because the session treats them as transient engine trouble, not as a
// session fault.
type EngineError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *EngineError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("engine %s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is an engine timeout.
func IsTimeout(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Timeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}
