package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/i474232898/boris-companion/internal/config"
)

// InboundFunc receives the decoded dictionary of one inbound device message.
type InboundFunc func(ctx context.Context, payload map[string]any)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Reader consumes inbound device messages from the inbox topic.
type Reader struct {
	reader messageReader
	logger zerolog.Logger
}

// NewReader creates a Kafka consumer for the configured inbox topic.
func NewReader(cfg *config.AppConfig, logger zerolog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaInboxTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &Reader{reader: r, logger: logger}
}

// Run hands every inbound message to fn until ctx is done. Offsets are
// committed on read, so a message is delivered at most once.
func (r *Reader) Run(ctx context.Context, fn InboundFunc) error {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		fn(ctx, mapMessageToPayload(msg, r.logger))
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToPayload decodes the message dictionary. The content never gates
// delivery: any message asks for a refresh, so undecodable bodies map to an
// empty dictionary.
func mapMessageToPayload(msg kafkago.Message, logger zerolog.Logger) map[string]any {
	payload := map[string]any{}
	if len(msg.Value) == 0 {
		return payload
	}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		logger.Debug().Err(err).Int64("offset", msg.Offset).Msg("inbound message is not a JSON dictionary")
		return map[string]any{}
	}
	if payload == nil { // "null"
		return map[string]any{}
	}
	return payload
}
