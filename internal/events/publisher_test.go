package events

import (
	"context"
	"testing"
)

func TestDisabledPublisherIsSafe(t *testing.T) {
	p := New(Config{}, nil)
	if p.Enabled() {
		t.Fatal("publisher without brokers reports enabled")
	}

	if err := p.PublishPartial(context.Background(), "s1", "hello"); err != nil {
		t.Errorf("PublishPartial failed in log-only mode: %v", err)
	}
	if err := p.PublishFinal(context.Background(), "s1", "hello world"); err != nil {
		t.Errorf("PublishFinal failed in log-only mode: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close failed in log-only mode: %v", err)
	}
}
