package device

import (
	"context"

	"github.com/rs/zerolog"
)

// LogChannel is a Channel that only writes payloads to the log. It is used
// when no device transport is configured.
type LogChannel struct {
	logger zerolog.Logger
}

func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Send(ctx context.Context, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.Info().Str("message_type", p.Kind()).Interface("payload", p).Msg("device message")
	return nil
}
