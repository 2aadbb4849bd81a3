package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/transcript"
)

func TestDecodeStart(t *testing.T) {
	c, err := DecodeControl([]byte(`{"type":"start","buffer_seconds":3.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Type != KindStart {
		t.Errorf("expected start, got %q", c.Type)
	}
	if c.BufferSeconds != 3.5 {
		t.Errorf("expected buffer_seconds 3.5, got %f", c.BufferSeconds)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	c, err := DecodeControl([]byte(`{"type":"start","buffer_seconds":4,"future_field":{"a":1}}`))
	if err != nil {
		t.Fatalf("unknown fields must not fail decoding: %v", err)
	}
	if c.BufferSeconds != 4 {
		t.Errorf("expected buffer_seconds 4, got %f", c.BufferSeconds)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	c, err := DecodeControl([]byte(`{"type":"resume","session_id":"abc"}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if c == nil || c.Type != "resume" {
		t.Errorf("frame should still be returned for inspection, got %+v", c)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"truncated json", `{"type":"start"`},
		{"not json", `binary garbage`},
		{"missing type", `{"buffer_seconds":3}`},
		{"wrong type for field", `{"type":"start","buffer_seconds":"three"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeControl([]byte(tt.data)); err == nil {
				t.Error("expected decode error, got nil")
			}
		})
	}
}

func TestEncodeDecodePartial(t *testing.T) {
	segs := []transcript.Segment{
		{Start: 0, End: 1.2, Text: "hello"},
		{Start: 1.2, End: 2.8, Text: "world"},
	}
	data, err := Partial("hello world", segs).Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	c, err := DecodeControl(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if c.Type != KindPartial || c.Text != "hello world" || len(c.Segments) != 2 {
		t.Errorf("round trip mismatch: %+v", c)
	}
	if c.Segments[1].End != 2.8 {
		t.Errorf("segment timing lost: %+v", c.Segments[1])
	}
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	data, err := Ack().Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("encoded frame is not valid JSON: %v", err)
	}
	if len(raw) != 1 {
		t.Errorf("ack should carry only the type field, got %s", data)
	}
}

func TestFinalWithEmptyTextStillEncodesType(t *testing.T) {
	data, err := Final("").Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	c, err := DecodeControl(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if c.Type != KindFinal || c.Text != "" {
		t.Errorf("empty final round trip mismatch: %+v", c)
	}
}
