package store

import (
	"context"
	"errors"
	"testing"
)

func TestNoopStore(t *testing.T) {
	var s Store = Noop{}

	if err := s.RecordTranscript(context.Background(), "abc", "hello"); err != nil {
		t.Fatalf("RecordTranscript failed: %v", err)
	}
	_, err := s.GetTranscript(context.Background(), "abc")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTranscript error = %v, want ErrNotFound", err)
	}
	s.Close()
}
