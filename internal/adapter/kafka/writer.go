package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/i474232898/boris-companion/internal/config"
	"github.com/i474232898/boris-companion/internal/device"
)

// messageWriter is the subset of *kafkago.Writer the adapter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes device payloads to the outbox topic.
// It implements device.Channel.
type Writer struct {
	writer   messageWriter
	deviceID string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewWriter creates a Kafka producer for the configured outbox topic.
func NewWriter(cfg *config.AppConfig, logger zerolog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaOutboxTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		// One attempt per send; kafka-go retries up to 10 times by default.
		MaxAttempts: 1,
	}
	return &Writer{writer: w, deviceID: cfg.DeviceID, logger: logger, now: time.Now}
}

// Send publishes one payload. A broker error is the delivery failure; it is
// returned as is and never retried here.
func (w *Writer) Send(ctx context.Context, p device.Payload) error {
	msg, err := serializeToMessage(w.deviceID, p, w.now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s message: %w", p.Kind(), err)
	}
	w.logger.Debug().Str("message_type", p.Kind()).Str("device_id", w.deviceID).Msg("published device message")
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a payload into a Kafka message keyed by device.
func serializeToMessage(deviceID string, p device.Payload, sentAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s message: %w", p.Kind(), err)
	}
	return kafkago.Message{
		Key:   []byte(deviceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "message_type", Value: []byte(p.Kind())},
			{Key: "sent_at", Value: []byte(sentAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
