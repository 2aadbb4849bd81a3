package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config holds the Kafka publisher settings.
type Config struct {
	Brokers      []string
	TopicPartial string
	TopicFinal   string
}

// Event is the payload written to both topics.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher writes caption events to Kafka, one topic per caption kind.
// With no brokers configured it only logs, which keeps local development and
// tests broker-free.
type Publisher struct {
	writerPartial *kafka.Writer
	writerFinal   *kafka.Writer
	logger        *slog.Logger
	enabled       bool
}

// New creates a publisher. Messages are keyed by session id so all events of
// one session land on one partition in order.
func New(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Brokers) == 0 {
		logger.Info("kafka disabled, caption events run in log-only mode")
		return &Publisher{logger: logger}
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
		}
	}

	logger.Info("kafka publisher initialized",
		"brokers", cfg.Brokers,
		"topic_partial", cfg.TopicPartial,
		"topic_final", cfg.TopicFinal)

	return &Publisher{
		writerPartial: newWriter(cfg.TopicPartial),
		writerFinal:   newWriter(cfg.TopicFinal),
		logger:        logger,
		enabled:       true,
	}
}

// Enabled reports whether events actually reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishPartial writes a partial caption event.
func (p *Publisher) PublishPartial(ctx context.Context, sessionID, text string) error {
	return p.publish(ctx, p.writerPartial, "partial", sessionID, text)
}

// PublishFinal writes a final caption event.
func (p *Publisher) PublishFinal(ctx context.Context, sessionID, text string) error {
	return p.publish(ctx, p.writerFinal, "final", sessionID, text)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, kind, sessionID, text string) error {
	event := Event{
		SessionID: sessionID,
		Kind:      kind,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}

	if !p.enabled {
		p.logger.Debug("caption event (log-only)",
			"session_id", sessionID, "kind", kind, "text_len", len(text))
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}
	msg := kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event for session %s: %w", kind, sessionID, err)
	}
	return nil
}

// Close flushes and closes both writers.
func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	var firstErr error
	for _, w := range []*kafka.Writer{p.writerPartial, p.writerFinal} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
